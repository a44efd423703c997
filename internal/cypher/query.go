package cypher

import (
	"strconv"
	"strings"
)

// DefaultAlias is used when a compilation names no candidate alias.
const DefaultAlias = "this"

// CompiledQuery is the result of one compile.
//
// Each clause carries its own completeness flag. A clause that is not
// complete has empty text and must be evaluated in memory by the caller.
// The range is only set when filter and order are both complete.
type CompiledQuery struct {
	Text string `json:"text"`

	Candidate  string `json:"candidate"`
	Alias      string `json:"alias"`
	Subclasses bool   `json:"subclasses"`

	Filter string `json:"filter,omitempty"`
	Result string `json:"result,omitempty"`
	Order  string `json:"order,omitempty"`

	FilterComplete bool `json:"filter_complete"`
	ResultComplete bool `json:"result_complete"`
	OrderComplete  bool `json:"order_complete"`
	RangeComplete  bool `json:"range_complete"`

	RangeFrom *int64 `json:"range_from,omitempty"`
	RangeTo   *int64 `json:"range_to,omitempty"`

	// Reusable is false once a parameter value was substituted into the
	// text; such a query must be recompiled for other values.
	Reusable bool `json:"reusable"`

	// Excluded lists subclass labels filtered out when Subclasses is false.
	Excluded []string `json:"excluded,omitempty"`
}

// Complete reports whether the whole query runs server-side.
func (q *CompiledQuery) Complete() bool {
	return q.FilterComplete && q.ResultComplete && q.OrderComplete
}

// Limit returns the LIMIT implied by the range, if any.
func (q *CompiledQuery) Limit() (int64, bool) {
	if q.RangeTo == nil {
		return 0, false
	}
	var from int64
	if q.RangeFrom != nil {
		from = *q.RangeFrom
	}
	return max(*q.RangeTo-from, 0), true
}

// assemble renders
//
//	MATCH (a:Label) [WHERE ...] RETURN ... [ORDER BY ...] [SKIP n] [LIMIT m]
func (c *QueryCompiler) assemble(q *CompiledQuery) string {
	alias := Identifier(q.Alias)
	var b strings.Builder
	b.WriteString("MATCH (" + alias + ":" + Identifier(c.candidate.Labels()[0]) + ")")

	var where []string
	if q.FilterComplete && q.Filter != "" {
		where = append(where, q.Filter)
	}
	if !q.Subclasses {
		for _, sub := range c.repo.Subclasses(c.candidate.Name) {
			label := sub.Labels()[0]
			q.Excluded = append(q.Excluded, label)
			where = append(where, "NOT "+alias+":"+Identifier(label))
		}
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	// A projection over a partially filtered match would be wrong, so the
	// candidate is returned unless the filter is server-side too.
	b.WriteString(" RETURN ")
	if q.FilterComplete && q.ResultComplete && q.Result != "" {
		b.WriteString(q.Result)
	} else {
		b.WriteString(alias)
	}

	if q.OrderComplete && q.Order != "" {
		b.WriteString(" ORDER BY " + q.Order)
	}
	if q.RangeFrom != nil {
		b.WriteString(" SKIP " + strconv.FormatInt(*q.RangeFrom, 10))
	}
	if limit, ok := q.Limit(); ok {
		b.WriteString(" LIMIT " + strconv.FormatInt(limit, 10))
	}
	return b.String()
}
