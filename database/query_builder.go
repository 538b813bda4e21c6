package database

import (
	"fmt"
	"strings"
	"time"

	"checklist/apierr"
)

// QueryBuilder collects AND-ed WHERE conditions with numbered placeholders.
// Column names and expressions are trusted; values always travel as args.
type QueryBuilder struct {
	conditions []string
	args       []interface{}
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		conditions: []string{},
		args:       []interface{}{},
	}
}

// add formats cond with the next placeholder number and binds value to it.
func (qb *QueryBuilder) add(cond string, value interface{}) {
	qb.conditions = append(qb.conditions, fmt.Sprintf(cond, qb.NextArgNum()))
	qb.args = append(qb.args, value)
}

func (qb *QueryBuilder) AddCondition(column string, value interface{}) {
	qb.add(column+" = $%d", value)
}

// AddExpr adds a condition whose single placeholder is written as $%d in expr,
// e.g. "type_id IN (SELECT type_id FROM project_types WHERE project_id = $%d)".
func (qb *QueryBuilder) AddExpr(expr string, value interface{}) {
	qb.add(expr, value)
}

// AddTimeRange bounds column by RFC3339 start and end; empty bounds are skipped.
func (qb *QueryBuilder) AddTimeRange(column, start, end string) error {
	for _, bound := range []struct {
		name, value, op string
	}{
		{"start_time", start, ">="},
		{"end_time", end, "<="},
	} {
		if bound.value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.value)
		if err != nil {
			return apierr.Invalidf("invalid %s %q: expected RFC3339", bound.name, bound.value)
		}
		qb.add(column+" "+bound.op+" $%d", t)
	}
	return nil
}

func (qb *QueryBuilder) AddFullTextSearch(column, tsQuery string) {
	qb.add("to_tsvector('english', "+column+") @@ to_tsquery('english', $%d)", tsQuery)
}

func (qb *QueryBuilder) WhereClause() string {
	if len(qb.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(qb.conditions, " AND ")
}

func (qb *QueryBuilder) Args() []interface{} {
	return qb.args
}

// NextArgNum is the placeholder number the next bound value will get.
func (qb *QueryBuilder) NextArgNum() int {
	return len(qb.args) + 1
}

func validateLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func validateOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// NormalizePage applies the default and maximum page size of audit log queries.
func NormalizePage(limit, offset int) (int, int) {
	return validateLimit(limit, defaultLimit, maxLimit), validateOffset(offset)
}
