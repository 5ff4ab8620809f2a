package repository

import (
	"context"
	"fmt"
	"strings"

	"intelplatform/internal/models"
)

// groupCountQuery describes a GROUP BY aggregate over one whitelisted column.
type groupCountQuery struct {
	table    string
	column   string
	where    string
	having   string
	orderKey bool
	args     []any
}

func (q groupCountQuery) sql() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT COALESCE(%s::text, ''), COUNT(*) AS count FROM %s", q.column, q.table)
	if q.where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.where)
	}
	fmt.Fprintf(&b, " GROUP BY %s", q.column)
	if q.having != "" {
		b.WriteString(" HAVING ")
		b.WriteString(q.having)
	}
	if q.orderKey {
		fmt.Fprintf(&b, " ORDER BY %s ASC", q.column)
	} else {
		b.WriteString(" ORDER BY count DESC")
	}
	return b.String()
}

func groupCount(ctx context.Context, db DB, q groupCountQuery) ([]models.GroupCount, error) {
	rows, err := db.Query(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]models.GroupCount, 0)
	for rows.Next() {
		var gc models.GroupCount
		if err := rows.Scan(&gc.Key, &gc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, gc)
	}
	return counts, rows.Err()
}

// whereBuilder accumulates equality filters with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) eq(column, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf("LOWER(%s) = LOWER($%d)", column, len(w.args)))
}

func (w *whereBuilder) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		w.args = append(w.args, strings.ToLower(v))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(w.args)))
	}
	w.clauses = append(w.clauses, fmt.Sprintf("LOWER(%s) IN (%s)", column, strings.Join(placeholders, ", ")))
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *whereBuilder) page(limit, offset int) string {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	w.args = append(w.args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}
