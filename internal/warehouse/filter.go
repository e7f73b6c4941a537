package warehouse

import "fmt"

// Expr is a filter over a query's join key, expressed as a tagged tree
// of CTE-backed conditions. Rendering is separate from construction so
// query text can be tested without a database.
type Expr interface {
	// Header renders the WITH-clause bodies this filter contributes.
	Header() string
	// JoinClause renders the JOIN fragment spliced into the base query.
	JoinClause() string

	key() string
	selectSet() string
}

// Cond is a leaf filter: a named CTE whose rows carry the join key.
type Cond struct {
	Table string // CTE name
	Alias string
	Key   string // join key column
	Body  string // CTE select body
}

func (c Cond) Header() string {
	return fmt.Sprintf("%s AS (%s)", c.Table, c.Body)
}

func (c Cond) JoinClause() string {
	return fmt.Sprintf("JOIN %s %s USING (%s)", c.Table, c.Alias, c.Key)
}

func (c Cond) key() string { return c.Key }

func (c Cond) selectSet() string {
	return fmt.Sprintf("SELECT %s FROM %s", c.Key, c.Table)
}

type compound struct {
	op          string // INTERSECT or UNION
	left, right Expr
}

// And keeps join keys present in both filters (set intersection).
func And(left, right Expr) Expr {
	return compound{op: "INTERSECT", left: left, right: right}
}

// Or keeps join keys present in either filter (set union).
func Or(left, right Expr) Expr {
	return compound{op: "UNION", left: left, right: right}
}

func (c compound) Header() string {
	return c.left.Header() + ", " + c.right.Header()
}

func (c compound) JoinClause() string {
	return fmt.Sprintf("JOIN (%s) p USING (%s)", c.selectSet(), c.key())
}

func (c compound) key() string { return c.left.key() }

func (c compound) selectSet() string {
	return fmt.Sprintf("%s %s %s", c.left.selectSet(), c.op, c.right.selectSet())
}
