package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-room-service/internal/domain"
)

// QuestionSetRow maps the question_sets table.
type QuestionSetRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	ID        string            `bun:"id,pk"`
	Title     string            `bun:"title,notnull"`
	Data      []domain.Question `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time         `bun:"updated_at,notnull,default:current_timestamp"`
}

// SetImporter upserts question sets.
type SetImporter struct {
	db *bun.DB
}

func NewSetImporter(db *bun.DB) *SetImporter {
	return &SetImporter{db: db}
}

// Import writes every set in one transaction, replacing existing rows with the same id.
func (i *SetImporter) Import(ctx context.Context, sets []domain.QuestionSet) error {
	if len(sets) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]QuestionSetRow, 0, len(sets))
	for _, s := range sets {
		rows = append(rows, QuestionSetRow{ID: s.ID, Title: s.Title, Data: s.Questions, UpdatedAt: now})
	}
	return i.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("data = EXCLUDED.data").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert question sets: %w", err)
		}
		return nil
	})
}
