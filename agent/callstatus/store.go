// Package callstatus stores captured call results. The telephony
// webhook upserts a row keyed by call sid; the capture state machine
// polls it until a non-empty RMA number appears.
package callstatus

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

var ErrResultNotFound = errors.New("call result not found")

type Store interface {
	Upsert(ctx context.Context, result contractx.CallResult) error
	Lookup(ctx context.Context, callSID string) (*contractx.CallResult, error)
}

type statusRow struct {
	bun.BaseModel `bun:"table:vendor_status,alias:vs"`

	CallSID       string `bun:"call_sid,pk"`
	RMANumber     string `bun:"rma_number,nullzero"`
	TranscriptURL string `bun:"transcript_url,nullzero"`
}

type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) (*BunStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &BunStore{db: db}, nil
}

func (s *BunStore) Upsert(ctx context.Context, result contractx.CallResult) error {
	row := &statusRow{
		CallSID:       result.CallSID,
		RMANumber:     result.RMANumber,
		TranscriptURL: result.TranscriptURL,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (call_sid) DO UPDATE").
		Set("rma_number = EXCLUDED.rma_number").
		Set("transcript_url = EXCLUDED.transcript_url").
		Exec(ctx)
	return err
}

func (s *BunStore) Lookup(ctx context.Context, callSID string) (*contractx.CallResult, error) {
	row := new(statusRow)
	err := s.db.NewSelect().Model(row).Where("call_sid = ?", callSID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}

	return &contractx.CallResult{
		CallSID:       row.CallSID,
		RMANumber:     row.RMANumber,
		TranscriptURL: row.TranscriptURL,
	}, nil
}
