package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spinsa/inventario/internal/database"
)

// setList accumulates the assignments of an UPDATE statement in the order
// they are added, so the generated SQL is stable for a given input.
type setList struct {
	cols []string
	args []any
}

// add assigns a bound value to col.
func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

// addExpr assigns expr to col; expr must contain exactly one placeholder.
func (s *setList) addExpr(col, expr string, v any) {
	s.cols = append(s.cols, col+" = "+expr)
	s.args = append(s.args, v)
}

// addNull assigns NULL to col.
func (s *setList) addNull(col string) {
	s.cols = append(s.cols, col+" = NULL")
}

func (s *setList) empty() bool { return len(s.cols) == 0 }

func (s *setList) clause() string { return strings.Join(s.cols, ", ") }

// updateExisting checks that the row exists and applies the assignments in
// one transaction.  RowsAffected cannot stand in for the check: MySQL reports
// 0 when the new values equal the old ones.
func updateExisting(ctx context.Context, db *database.DB, table, idCol string, id int64, set *setList, notFound error) (err error) {
	if set.empty() {
		return ErrNoChange
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var one int
	check := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?%s", table, idCol, db.Dialect().ForUpdate())
	if err = tx.QueryRowContext(ctx, check, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		return err
	}

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, set.clause(), idCol)
	args := append(append([]any{}, set.args...), id)
	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		return err
	}
	return nil
}

// deleteByID removes one row and reports notFound when nothing matched.
func deleteByID(ctx context.Context, db *database.DB, table, idCol string, id int64, notFound error) error {
	res, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, idCol), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
