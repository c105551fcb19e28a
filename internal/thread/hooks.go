package thread

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// hookExprPattern matches a single comparison: "cost.current > 0.4",
// "error.type == permission_denied". The grammar is deliberately narrow —
// hooks gate on one observable at a time, chained conditions are out of
// scope per spec.md §4.H.
var hookExprPattern = regexp.MustCompile(`^\s*([\w.]+)\s*(>=|<=|==|!=|>|<)\s*(.+?)\s*$`)

// HookContext is the variable set hook <when> expressions are evaluated
// against.
type HookContext struct {
	CostCurrent float64
	CostLimit   float64
	LoopCount   int
	ErrorType   string
	ThreadEvent string
}

func (c HookContext) lookup(name string) (string, bool) {
	switch name {
	case "cost.current":
		return strconv.FormatFloat(c.CostCurrent, 'f', -1, 64), true
	case "cost.limit":
		return strconv.FormatFloat(c.CostLimit, 'f', -1, 64), true
	case "loop_count":
		return strconv.Itoa(c.LoopCount), true
	case "error.type":
		return c.ErrorType, true
	case "thread.event":
		return c.ThreadEvent, true
	default:
		return "", false
	}
}

// EvaluateHooks returns the hooks whose <when> expression is currently
// true, in declaration order.
func EvaluateHooks(hooks []ryemodels.Hook, ctx HookContext) []ryemodels.Hook {
	var matched []ryemodels.Hook
	for _, h := range hooks {
		ok, err := evalExpr(h.When, ctx)
		if err != nil {
			continue
		}
		if ok {
			matched = append(matched, h)
		}
	}
	return matched
}

func evalExpr(expr string, ctx HookContext) (bool, error) {
	m := hookExprPattern.FindStringSubmatch(expr)
	if m == nil {
		return false, fmt.Errorf("unparseable hook expression %q", expr)
	}
	name, op, rhs := m[1], m[2], strings.Trim(m[3], `"'`)

	lhs, ok := ctx.lookup(name)
	if !ok {
		return false, fmt.Errorf("unknown hook variable %q", name)
	}

	lhsNum, lhsIsNum := parseFloat(lhs)
	rhsNum, rhsIsNum := parseFloat(rhs)
	if lhsIsNum && rhsIsNum {
		return compareNum(lhsNum, op, rhsNum)
	}
	return compareStr(lhs, op, rhs)
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func compareNum(a float64, op string, b float64) (bool, error) {
	switch op {
	case ">":
		return a > b, nil
	case ">=":
		return a >= b, nil
	case "<":
		return a < b, nil
	case "<=":
		return a <= b, nil
	case "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

func compareStr(a, op, b string) (bool, error) {
	switch op {
	case "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	default:
		return false, fmt.Errorf("operator %q not valid for string comparison", op)
	}
}
