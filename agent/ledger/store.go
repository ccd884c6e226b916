// Package ledger is the append-only action log every agent writes to.
// Entries are immutable once written; ordering within one RMA is the
// store's insertion order, not wall-clock time.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

// Store is the ledger contract: append one entry, or reconstruct the
// full history of one RMA in write order.
type Store interface {
	Append(ctx context.Context, action contractx.Action) error
	Query(ctx context.Context, rmaID string) ([]contractx.Action, error)
}

type actionRow struct {
	bun.BaseModel `bun:"table:agent_logs,alias:al"`

	ID           int64          `bun:"id,pk,autoincrement"`
	AgentID      string         `bun:"agent_id,notnull"`
	ActionType   string         `bun:"action_type,notnull"`
	ActionData   map[string]any `bun:"action_data,type:jsonb"`
	RMAID        sql.NullString `bun:"rma_id"`
	Status       string         `bun:"status,notnull"`
	ErrorMessage string         `bun:"error_message,nullzero"`
	Timestamp    time.Time      `bun:"timestamp,notnull"`
}

// BunStore persists the ledger in the agent_logs table.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) (*BunStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &BunStore{db: db}, nil
}

func (s *BunStore) Append(ctx context.Context, action contractx.Action) error {
	ts := action.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	row := &actionRow{
		AgentID:      action.AgentID,
		ActionType:   string(action.Type),
		ActionData:   action.Data,
		Status:       string(action.Status),
		ErrorMessage: action.ErrorMessage,
		Timestamp:    ts,
	}
	if action.RMAID != "" {
		row.RMAID = sql.NullString{String: action.RMAID, Valid: true}
	}

	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (s *BunStore) Query(ctx context.Context, rmaID string) ([]contractx.Action, error) {
	var rows []actionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("rma_id = ?", rmaID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	actions := make([]contractx.Action, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, contractx.Action{
			ID:           row.ID,
			AgentID:      row.AgentID,
			Type:         contractx.ActionType(row.ActionType),
			Data:         row.ActionData,
			RMAID:        row.RMAID.String,
			Status:       contractx.ActionStatus(row.Status),
			ErrorMessage: row.ErrorMessage,
			Timestamp:    row.Timestamp,
		})
	}
	return actions, nil
}
