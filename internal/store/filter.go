package store

import (
	"fmt"
	"strings"
)

// Predicate filters journaled actions.
//
// This is a sealed interface: only types in this package implement it,
// so compilePredicate can switch over every case.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose Field equals Value.
// Field must be one of the filterable action columns.
type Equals struct {
	Field string
	Value any
}

// SeqRange matches actions with From <= seq <= To. A zero bound is open.
type SeqRange struct {
	From int64
	To   int64
}

// Failed matches actions that did (or did not) record an error.
type Failed struct {
	Failed bool
}

// And matches rows satisfying every predicate. An empty And matches all.
type And struct {
	Predicates []Predicate
}

func (Equals) predicateNode()   {}
func (SeqRange) predicateNode() {}
func (Failed) predicateNode()   {}
func (And) predicateNode()      {}

// filterableColumns are the action columns Equals may name. Column names
// are never taken from callers verbatim.
var filterableColumns = map[string]string{
	"component":      "component",
	"action":         "action",
	"essential_hash": "essential_hash",
	"id":             "id",
}

// ActionQuery selects journaled actions of one document.
type ActionQuery struct {
	DocumentID string
	Filter     Predicate

	// Limit caps the number of rows; zero means no limit.
	Limit int
}

const actionColumns = "id, document_id, seq, component, action, args, essential_hash, error"

// compileActionQuery converts q to parameterized SQL.
//
// Every query ends in ORDER BY seq ASC, id COLLATE BINARY ASC and every
// value is bound with a ? placeholder, never interpolated.
func compileActionQuery(q ActionQuery) (string, []any, error) {
	where := "document_id = ?"
	params := []any{q.DocumentID}

	if q.Filter != nil {
		sql, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + sql
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT %s FROM actions WHERE %s ORDER BY seq ASC, id COLLATE BINARY ASC",
		actionColumns, where)
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

// compilePredicate compiles p to a WHERE clause fragment.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case SeqRange:
		return compileSeqRange(pred)
	case *SeqRange:
		return compileSeqRange(*pred)
	case Failed:
		return compileFailed(pred), nil, nil
	case *Failed:
		return compileFailed(*pred), nil, nil
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	column, ok := filterableColumns[eq.Field]
	if !ok {
		return "", nil, fmt.Errorf("field %q is not filterable", eq.Field)
	}
	switch eq.Value.(type) {
	case string, int, int64, float64, bool:
	default:
		return "", nil, fmt.Errorf("field %q: unsupported value type %T", eq.Field, eq.Value)
	}
	return column + " = ?", []any{eq.Value}, nil
}

func compileSeqRange(r SeqRange) (string, []any, error) {
	if r.From > 0 && r.To > 0 && r.From > r.To {
		return "", nil, fmt.Errorf("empty seq range [%d, %d]", r.From, r.To)
	}
	var parts []string
	var params []any
	if r.From > 0 {
		parts = append(parts, "seq >= ?")
		params = append(params, r.From)
	}
	if r.To > 0 {
		parts = append(parts, "seq <= ?")
		params = append(params, r.To)
	}
	if len(parts) == 0 {
		return "1 = 1", nil, nil
	}
	return strings.Join(parts, " AND "), params, nil
}

func compileFailed(f Failed) string {
	if f.Failed {
		return "error <> ''"
	}
	return "error = ''"
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}
