// Package library is the domain layer for saved prompts and recently used
// working directories. It has no storage dependencies; see
// internal/infrastructure/sqlite for persistence.
package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prompt is a saved prompt template.
type Prompt struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPrompt validates and creates a Prompt with a fresh id.
func NewPrompt(title, content string, now time.Time) (*Prompt, error) {
	p := &Prompt{ID: uuid.NewString(), CreatedAt: now}
	if err := p.Update(title, content, now); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces title and content. Both must be non-blank. Title is
// trimmed; content is stored as given.
func (p *Prompt) Update(title, content string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	p.Title = title
	p.Content = content
	p.UpdatedAt = now
	return nil
}

// ValidationError reports an invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// PromptNotFoundError is returned when no prompt matches an id.
type PromptNotFoundError struct {
	ID string
}

func (e *PromptNotFoundError) Error() string {
	return fmt.Sprintf("prompt not found: %s", e.ID)
}

// AmbiguousIDError is returned when an id prefix matches several prompts.
type AmbiguousIDError struct {
	Prefix  string
	Matches int
}

func (e *AmbiguousIDError) Error() string {
	return fmt.Sprintf("id prefix %q matches %d prompts", e.Prefix, e.Matches)
}

// PromptRepository persists prompts.
type PromptRepository interface {
	// Save inserts or updates p by id.
	Save(ctx context.Context, p *Prompt) error
	// FindByID accepts a full id or a unique prefix.
	FindByID(ctx context.Context, id string) (*Prompt, error)
	// List returns all prompts, most recently updated first.
	List(ctx context.Context) ([]*Prompt, error)
	Delete(ctx context.Context, id string) error
}

// CwdRepository remembers working directories used to start sessions.
type CwdRepository interface {
	RecordCwd(ctx context.Context, cwd string) error
	// Recent returns up to limit directories, most recent first.
	Recent(ctx context.Context, limit int) ([]string, error)
}
