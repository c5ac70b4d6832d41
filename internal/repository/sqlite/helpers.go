package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
)

// buildUpdate renders "UPDATE table SET a = ?, ..., updated_at = ? WHERE id = ?"
// for the assigned columns. Column names are checked against allowed since
// they are interpolated into the statement.
func buildUpdate(table string, cols mapper.Columns, allowed []string, id string, now time.Time) (string, []interface{}, error) {
	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)
	for _, c := range cols {
		if !contains(allowed, c.Name) {
			return "", nil, fmt.Errorf("column %q cannot be updated on %s", c.Name, table)
		}
		sets = append(sets, c.Name+" = ?")
		args = append(args, c.Value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	return query, args, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// getOne runs a single-row query, returning nil, nil when there is no row
func getOne[T any](ctx context.Context, q sqlx.QueryerContext, what, query string, args ...interface{}) (*T, error) {
	var v T
	err := sqlx.GetContext(ctx, q, &v, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return &v, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// requireAffected turns a statement that touched no row into domain.ErrNotFound
func requireAffected(res sql.Result, op string) error {
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
