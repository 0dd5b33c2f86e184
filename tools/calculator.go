package tools

import (
	"context"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/gsaaad/ag1-researchagent/errors"
)

// CalculatorTool evaluates arithmetic expressions. Expressions are parsed
// with go/parser and evaluated over go/constant values, so intermediate
// results are exact rationals: 10/4 yields 2.5, not 2.
type CalculatorTool struct{}

func (t *CalculatorTool) Name() string { return "calculator" }
func (t *CalculatorTool) Description() string {
	return "Evaluates an arithmetic expression. Supports +, -, *, /, unary minus and parentheses."
}

func (t *CalculatorTool) Schema() Schema {
	return Schema{
		Required: []string{"expression"},
		Properties: map[string]Property{
			"expression": {Type: "string", Description: "The expression to evaluate, e.g. '(2 + 3) * 4 / 5'"},
		},
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	expr, ok := args["expression"].(string)
	if !ok || strings.TrimSpace(expr) == "" {
		return "", errors.New("missing or invalid 'expression' argument")
	}

	result, err := evaluate(expr)
	if err != nil {
		return "", err
	}
	return result, nil
}

func evaluate(expr string) (string, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return "", errors.New("invalid expression '%s'", expr)
	}

	val, err := evalNode(node)
	if err != nil {
		return "", err
	}
	return formatValue(val), nil
}

func evalNode(node ast.Expr) (constant.Value, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return nil, errors.New("unsupported literal '%s'", n.Value)
		}
		v := constant.MakeFromLiteral(n.Value, n.Kind, 0)
		if v.Kind() == constant.Unknown {
			return nil, errors.New("invalid number '%s'", n.Value)
		}
		return v, nil

	case *ast.ParenExpr:
		return evalNode(n.X)

	case *ast.UnaryExpr:
		if n.Op != token.SUB && n.Op != token.ADD {
			return nil, errors.New("unsupported operator '%s'", n.Op)
		}
		x, err := evalNode(n.X)
		if err != nil {
			return nil, err
		}
		return constant.UnaryOp(n.Op, x, 0), nil

	case *ast.BinaryExpr:
		switch n.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO:
		default:
			return nil, errors.New("unsupported operator '%s'", n.Op)
		}
		x, err := evalNode(n.X)
		if err != nil {
			return nil, err
		}
		y, err := evalNode(n.Y)
		if err != nil {
			return nil, err
		}
		if n.Op == token.QUO {
			if constant.Compare(y, token.EQL, constant.MakeInt64(0)) {
				return nil, errors.New("division by zero")
			}
			// Force rational division even for integer operands.
			x = constant.ToFloat(x)
		}
		return constant.BinaryOp(x, n.Op, y), nil

	default:
		return nil, errors.New("unsupported expression")
	}
}

func formatValue(v constant.Value) string {
	if v.Kind() == constant.Int {
		return v.ExactString()
	}
	f, _ := constant.Float64Val(v)
	return strconv.FormatFloat(f, 'f', -1, 64)
}
