package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zjrosen/agentdesk/internal/library"
)

const promptColumns = `id, title, content, created_at, updated_at`

type promptRepository struct {
	db *sql.DB
}

var _ library.PromptRepository = (*promptRepository)(nil)

func scanPrompt(scanner interface{ Scan(...any) error }) (PromptModel, error) {
	var m PromptModel
	err := scanner.Scan(&m.ID, &m.Title, &m.Content, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *promptRepository) Save(ctx context.Context, p *library.Prompt) error {
	m := toPromptModel(p)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO prompts (`+promptColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			updated_at = excluded.updated_at`,
		m.ID, m.Title, m.Content, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}

// FindByID matches the full id first, then a unique prefix.
func (r *promptRepository) FindByID(ctx context.Context, id string) (*library.Prompt, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &library.PromptNotFoundError{ID: id}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+promptColumns+` FROM prompts WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, len(id), id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find prompt: %w", err)
	}
	defer rows.Close()

	var found []PromptModel
	for rows.Next() {
		m, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find prompt: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, &library.PromptNotFoundError{ID: id}
	case found[0].ID == id || len(found) == 1:
		return found[0].toDomain(), nil
	default:
		return nil, &library.AmbiguousIDError{Prefix: id, Matches: len(found)}
	}
}

func (r *promptRepository) List(ctx context.Context) ([]*library.Prompt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+promptColumns+` FROM prompts ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var out []*library.Prompt
	for rows.Next() {
		m, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		out = append(out, m.toDomain())
	}
	return out, rows.Err()
}

func (r *promptRepository) Delete(ctx context.Context, id string) error {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	return nil
}
