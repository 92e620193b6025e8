package sequence

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCode(t *testing.T) {
	code, err := formatCode("INV", "260301", 37)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^INV-260301-011[A-Z2-9]{2}$`), code)
}

func TestFormatCodePadsShortSequences(t *testing.T) {
	code, err := formatCode("INV", "260301", 1)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^INV-260301-001[A-Z2-9]{2}$`), code)
}
