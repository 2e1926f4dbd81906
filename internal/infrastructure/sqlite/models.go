package sqlite

import (
	"time"

	"github.com/zjrosen/agentdesk/internal/library"
)

// PromptModel is a row of the prompts table. Times are Unix milliseconds.
type PromptModel struct {
	ID        string
	Title     string
	Content   string
	CreatedAt int64
	UpdatedAt int64
}

func toPromptModel(p *library.Prompt) PromptModel {
	return PromptModel{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UnixMilli(),
		UpdatedAt: p.UpdatedAt.UnixMilli(),
	}
}

func (m PromptModel) toDomain() *library.Prompt {
	return &library.Prompt{
		ID:        m.ID,
		Title:     m.Title,
		Content:   m.Content,
		CreatedAt: time.UnixMilli(m.CreatedAt),
		UpdatedAt: time.UnixMilli(m.UpdatedAt),
	}
}
