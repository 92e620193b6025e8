package celengine

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

// BuildCelEnvFromAttributes declares one CEL variable per attribute, typed
// after the sample value.
func BuildCelEnvFromAttributes(attrs map[string]any) (*cel.Env, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	variables := make([]cel.EnvOption, 0, len(keys))
	for _, key := range keys {
		switch attrs[key].(type) {
		case string:
			variables = append(variables, cel.Variable(key, cel.StringType))
		case int, int32, int64:
			variables = append(variables, cel.Variable(key, cel.IntType))
		case float32, float64:
			variables = append(variables, cel.Variable(key, cel.DoubleType))
		case bool:
			variables = append(variables, cel.Variable(key, cel.BoolType))
		case []string:
			variables = append(variables, cel.Variable(key, cel.ListType(cel.StringType)))
		case map[string]any:
			variables = append(variables, cel.Variable(key, cel.MapType(cel.StringType, cel.DynType)))
		default:
			variables = append(variables, cel.Variable(key, cel.DynType))
		}
	}

	return cel.NewEnv(variables...)
}

// Program is a compiled boolean expression, safe for concurrent use.
type Program struct {
	expr string
	prg  cel.Program
}

// Compile parses and type-checks expr against env. The expression must
// produce a bool.
func Compile(env *cel.Env, expr string) (*Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string {
	return p.expr
}

func (p *Program) Evaluate(attrs map[string]any) (bool, error) {
	out, _, err := p.prg.Eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}
	return b, nil
}

func ValidateExpression(env *cel.Env, expr string) error {
	_, err := Compile(env, expr)
	return err
}
