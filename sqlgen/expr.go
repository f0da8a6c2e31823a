package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/cgerrors"
)

var binaryOpSQL = map[string]string{
	"AND": "AND", "OR": "OR", "XOR": "xor",
	"=": "=", "<>": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
	"+": "+", "-": "-", "*": "*", "/": "/", "%": "%", "^": "pow",
	"IN": "IN",
	"STARTS WITH": "startsWith",
	"ENDS WITH":   "endsWith",
	"CONTAINS":    "position",
}

func exprSQL(e ast.Expression, queryID string) (string, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return literalSQL(v)
	case *ast.Variable:
		return quoteIdent(v.Name), nil
	case *ast.PropertyAccess:
		subj, err := exprSQL(v.Subject, queryID)
		if err != nil {
			return "", err
		}
		if _, isVar := v.Subject.(*ast.Variable); isVar {
			return subj + "." + quoteIdent(v.Property), nil
		}
		return subj + "." + quoteIdent(v.Property), nil
	case *ast.FunctionCall:
		return functionCallSQL(v, queryID)
	case *ast.BinaryOp:
		return binaryOpSQL_(v, queryID)
	case *ast.UnaryOp:
		operand, err := exprSQL(v.Operand, queryID)
		if err != nil {
			return "", err
		}
		switch v.Op {
		case "NOT":
			return "NOT (" + operand + ")", nil
		case "-":
			return "-(" + operand + ")", nil
		}
		return "", wrapErr(queryID, "unknown unary operator "+v.Op)
	case *ast.IsNullCheck:
		operand, err := exprSQL(v.Operand, queryID)
		if err != nil {
			return "", err
		}
		if v.Negated {
			return "(" + operand + ") IS NOT NULL", nil
		}
		return "(" + operand + ") IS NULL", nil
	case *ast.CaseExpr:
		return caseExprSQL(v, queryID)
	case *ast.ListLiteral:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			s, err := exprSQL(it, queryID)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *ast.MapLiteral:
		return mapLiteralSQL(v, queryID)
	}
	return "", wrapErr(queryID, fmt.Sprintf("unsupported expression shape %T in SQL emission", e))
}

func literalSQL(v *ast.Literal) (string, error) {
	switch v.Kind {
	case ast.LitInt:
		return strconv.FormatInt(v.Value.(int64), 10), nil
	case ast.LitFloat:
		return strconv.FormatFloat(v.Value.(float64), 'g', -1, 64), nil
	case ast.LitString:
		return quoteString(v.Value.(string)), nil
	case ast.LitBool:
		if v.Value.(bool) {
			return "true", nil
		}
		return "false", nil
	case ast.LitNull:
		return "NULL", nil
	}
	return "", fmt.Errorf("unknown literal kind %d", v.Kind)
}

func binaryOpSQL_(v *ast.BinaryOp, queryID string) (string, error) {
	left, err := exprSQL(v.Left, queryID)
	if err != nil {
		return "", err
	}
	right, err := exprSQL(v.Right, queryID)
	if err != nil {
		return "", err
	}
	switch v.Op {
	case "STARTS WITH":
		return "startsWith(" + left + ", " + right + ")", nil
	case "ENDS WITH":
		return "endsWith(" + left + ", " + right + ")", nil
	case "CONTAINS":
		return "position(" + left + ", " + right + ") > 0", nil
	case "^":
		return "pow(" + left + ", " + right + ")", nil
	}
	op, ok := binaryOpSQL[v.Op]
	if !ok {
		return "", wrapErr(queryID, "unknown binary operator "+v.Op)
	}
	return "(" + left + " " + op + " " + right + ")", nil
}

func caseExprSQL(v *ast.CaseExpr, queryID string) (string, error) {
	var b strings.Builder
	b.WriteString("CASE ")
	if v.Subject != nil {
		s, err := exprSQL(v.Subject, queryID)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		b.WriteString(" ")
	}
	for _, w := range v.Whens {
		cond, err := exprSQL(w.Condition, queryID)
		if err != nil {
			return "", err
		}
		res, err := exprSQL(w.Result, queryID)
		if err != nil {
			return "", err
		}
		b.WriteString("WHEN ")
		b.WriteString(cond)
		b.WriteString(" THEN ")
		b.WriteString(res)
		b.WriteString(" ")
	}
	if v.Else != nil {
		els, err := exprSQL(v.Else, queryID)
		if err != nil {
			return "", err
		}
		b.WriteString("ELSE ")
		b.WriteString(els)
		b.WriteString(" ")
	}
	b.WriteString("END")
	return b.String(), nil
}

// mapLiteralSQL packages a {k: v, ...} literal as a ClickHouse named tuple,
// the shape toJSONString turns into a JSON object (spec §4.7 "JSON
// packaging"). Plain (non-node-JSON) map literals in source Cypher take the
// same path; there is no dialect distinction between the two uses.
func mapLiteralSQL(v *ast.MapLiteral, queryID string) (string, error) {
	parts := make([]string, len(v.Keys))
	for i, k := range v.Keys {
		val, err := exprSQL(v.Values[i], queryID)
		if err != nil {
			return "", err
		}
		parts[i] = val + " AS " + quoteIdent(k)
	}
	return "tuple(" + strings.Join(parts, ", ") + ")", nil
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return "'" + s + "'"
}

func wrapErrExpr(queryID, msg string) error {
	return cgerrors.Wrap(queryID, "sqlgen", cgerrors.ErrUnsupportedConstruct.New(msg), nil)
}
