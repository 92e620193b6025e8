package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextRunTime(t *testing.T) {
	before := time.Date(2024, 3, 10, 1, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC), nextRunTime(before, 2, 0))

	after := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC), nextRunTime(after, 2, 0))
}
