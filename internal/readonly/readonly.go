// Package readonly is the pool's second line of defense behind the token
// scanner: it parses the statement with PostgreSQL's own parser and rejects
// anything that is not a single plain SELECT. A statement that slipped past
// text-level validation is rejected here rather than silently demoted.
package readonly

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Check parses sql and returns nil only for a single SELECT statement.
// CTE subqueries are verified recursively so a WITH clause cannot smuggle
// data-modifying statements.
func Check(sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("SQL parse error: %w", err)
	}
	if len(result.Stmts) == 0 {
		return fmt.Errorf("SQL parse error: empty query")
	}
	if len(result.Stmts) > 1 {
		return fmt.Errorf("multi-statement queries are not allowed: found %d statements", len(result.Stmts))
	}

	node := result.Stmts[0].Stmt
	sel, ok := node.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return fmt.Errorf("statement is not a SELECT")
	}
	return checkCTEs(sel.SelectStmt.WithClause)
}

func checkCTEs(with *pg_query.WithClause) error {
	if with == nil {
		return nil
	}
	for _, cte := range with.Ctes {
		cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
		if !ok {
			continue
		}
		sub := cteNode.CommonTableExpr.Ctequery
		if sub == nil {
			continue
		}
		innerSel, ok := sub.Node.(*pg_query.Node_SelectStmt)
		if !ok {
			return fmt.Errorf("CTE %q is not a SELECT", cteNode.CommonTableExpr.Ctename)
		}
		if err := checkCTEs(innerSel.SelectStmt.WithClause); err != nil {
			return err
		}
	}
	return nil
}
