package presentation

import (
	"time"

	"github.com/zjrosen/agentdesk/internal/library"
)

// PromptDTO represents a saved prompt for presentation
type PromptDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromDomainPrompt converts a domain prompt to a DTO.
func FromDomainPrompt(p *library.Prompt) PromptDTO {
	return PromptDTO{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

// FromDomainPrompts converts a list of prompts, preserving order. The result
// is never nil so an empty library encodes as [].
func FromDomainPrompts(prompts []*library.Prompt) []PromptDTO {
	out := make([]PromptDTO, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, FromDomainPrompt(p))
	}
	return out
}
