package celengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileAndEvaluate(t *testing.T) {
	attrs := map[string]any{
		"is_bot":       false,
		"network_type": "corporate",
		"time_on_site": 4.5,
		"visits":       int64(2),
	}
	env, err := BuildCelEnvFromAttributes(attrs)
	require.NoError(t, err)

	prg, err := Compile(env, `!is_bot && network_type != "hosting" && time_on_site >= 3.0 && visits > 1`)
	require.NoError(t, err)

	ok, err := prg.Evaluate(attrs)
	require.NoError(t, err)
	require.True(t, ok)

	attrs["is_bot"] = true
	ok, err = prg.Evaluate(attrs)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompileRejectsInvalidExpressions(t *testing.T) {
	env, err := BuildCelEnvFromAttributes(map[string]any{"is_bot": false})
	require.NoError(t, err)

	require.Error(t, ValidateExpression(env, `is_bot &&`))
	require.Error(t, ValidateExpression(env, `unknown_var`))
	require.Error(t, ValidateExpression(env, `"not a bool"`))
	require.NoError(t, ValidateExpression(env, `!is_bot`))
}
