package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zjrosen/agentdesk/internal/library"
)

type cwdRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ library.CwdRepository = (*cwdRepository)(nil)

func (r *cwdRepository) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *cwdRepository) RecordCwd(ctx context.Context, cwd string) error {
	cwd = strings.TrimSpace(cwd)
	if cwd == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recent_cwds (path, used_at, use_count) VALUES (?, ?, 1)
		ON CONFLICT(path) DO UPDATE SET used_at = excluded.used_at, use_count = use_count + 1`,
		cwd, r.clock().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record cwd: %w", err)
	}
	return nil
}

func (r *cwdRepository) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT path FROM recent_cwds ORDER BY used_at DESC, path LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent cwds: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan cwd: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
