package expr

import (
	"fmt"
	"strconv"
	"strings"
)

func compare(left, right any, op tokenKind) (bool, error) {
	if left == nil || right == nil {
		both := left == nil && right == nil
		switch op {
		case tokenEq:
			return both, nil
		case tokenNeq:
			return !both, nil
		default:
			return false, nil
		}
	}

	_, lb := left.(bool)
	_, rb := right.(bool)
	if lb || rb {
		l, r := coerceBool(left), coerceBool(right)
		switch op {
		case tokenEq:
			return l == r, nil
		case tokenNeq:
			return l != r, nil
		default:
			return false, fmt.Errorf("expr: operator %s not supported for booleans", opString(op))
		}
	}

	if l, ok := coerceNumber(left); ok {
		if r, ok := coerceNumber(right); ok {
			return ordered(compareFloat(l, r), op), nil
		}
	}
	return ordered(strings.Compare(coerceString(left), coerceString(right)), op), nil
}

func compareFloat(l, r float64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func ordered(cmp int, op tokenKind) bool {
	switch op {
	case tokenEq:
		return cmp == 0
	case tokenNeq:
		return cmp != 0
	case tokenLt:
		return cmp < 0
	case tokenLte:
		return cmp <= 0
	case tokenGt:
		return cmp > 0
	case tokenGte:
		return cmp >= 0
	default:
		return false
	}
}

func opString(op tokenKind) string {
	switch op {
	case tokenEq:
		return "=="
	case tokenNeq:
		return "!="
	case tokenLt:
		return "<"
	case tokenLte:
		return "<="
	case tokenGt:
		return ">"
	case tokenGte:
		return ">="
	default:
		return "?"
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return v != 0
	default:
		return true
	}
}

func coerceBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
		return strings.TrimSpace(v) != ""
	default:
		return truthy(value)
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
