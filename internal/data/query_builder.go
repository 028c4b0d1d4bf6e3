package data

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corvidmail/mail-backend/internal/entities"
)

// sqlArgs accumulates positional query arguments while a filter tree is
// compiled into a WHERE fragment.
type sqlArgs struct {
	args []interface{}
}

// bind appends v and returns its placeholder.
func (a *sqlArgs) bind(v interface{}) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

// leafCompiler turns one leaf condition into a WHERE fragment. It is total
// over the collection's closed condition type; unknown predicate keys fail
// with unsupportedFilter during decoding.
type leafCompiler func(raw json.RawMessage, a *sqlArgs) (string, error)

// compileFilter walks the filter tree and produces a WHERE fragment.
func compileFilter(f entities.Filter, leaf leafCompiler, a *sqlArgs) (string, error) {
	if f.IsNone() {
		return "TRUE", nil
	}

	if f.Operator == "" {
		return leaf(f.Condition, a)
	}

	fragments := make([]string, 0, len(f.Conditions))
	for _, sub := range f.Conditions {
		fragment, err := compileFilter(sub, leaf, a)
		if err != nil {
			return "", err
		}
		fragments = append(fragments, fragment)
	}

	switch f.Operator {
	case entities.FilterOperatorAnd:
		return "(" + strings.Join(fragments, " AND ") + ")", nil
	case entities.FilterOperatorOr:
		return "(" + strings.Join(fragments, " OR ") + ")", nil
	case entities.FilterOperatorNot:
		return "NOT (" + strings.Join(fragments, " AND ") + ")", nil
	default:
		return "", entities.NewMethodError(entities.ErrCodeUnsupportedFilter, "unknown filter operator %q", f.Operator)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring match pattern.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
