package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/audit"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/pg"
)

var auditColumns = []string{
	"id", "user_id", "actor_id", "action", "resource", "resource_id",
	"result", "error", "request_id", "metadata", "created_at",
}

func auditRow(e audit.Event) ([]any, error) {
	var meta []byte
	if len(e.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return nil, err
		}
	}
	return []any{
		e.ID, e.UserID, e.ActorID, e.Action, e.Resource, e.ResourceID,
		string(e.Result), e.Error, e.RequestID, meta, e.CreatedAt,
	}, nil
}

// Store implements audit.Writer.
func (s *Store) Store(ctx context.Context, e audit.Event) error {
	return s.StoreBatch(ctx, []audit.Event{e})
}

// StoreBatch implements audit.BatchWriter with a single COPY in one
// transaction.
func (s *Store) StoreBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		row, err := auditRow(e)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"audit_events"}, auditColumns, pgx.CopyFromRows(rows))
		return err
	})
}
