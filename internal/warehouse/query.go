package warehouse

import "strings"

// Query pairs a base SELECT with an optional key filter. The base text
// must contain a single uppercase WHERE; the filter's join is spliced in
// front of it.
type Query struct {
	Base   string
	Filter Expr
}

// SQL renders the final query text.
func (q Query) SQL() string {
	if q.Filter == nil {
		return q.Base
	}
	head, tail, found := strings.Cut(q.Base, "WHERE")
	if !found {
		// No WHERE to anchor on: the join still applies, the filter
		// header leads.
		return "WITH " + q.Filter.Header() + "\n" +
			strings.TrimRight(q.Base, " \n") + "\n" + q.Filter.JoinClause()
	}
	return "WITH " + q.Filter.Header() + "\n" +
		strings.TrimRight(head, " \n\t") + "\n" +
		q.Filter.JoinClause() + "\nWHERE" + tail
}
