// Package rma reads and mutates RMA request records. The vendor RMA
// number is write-once: the update only matches rows where it is
// still empty, so a captured value is never replaced.
package rma

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

type Store interface {
	Get(ctx context.Context, id string) (*contractx.RMARecord, error)
	// SetVendorRMAID records the captured vendor RMA number. Returns
	// false when the record already carries one (the value on disk
	// wins; nothing is overwritten).
	SetVendorRMAID(ctx context.Context, id string, vendorRMAID string) (bool, error)
	// SetCallSID attaches the in-flight call correlation id.
	SetCallSID(ctx context.Context, id string, callSID string) error
}

type requestRow struct {
	bun.BaseModel `bun:"table:rma_requests,alias:rr"`

	ID               string         `bun:"id,pk"`
	Vendor           string         `bun:"vendor,notnull"`
	SerialNumber     string         `bun:"serial_number,notnull"`
	ModelNumber      string         `bun:"model_number,notnull"`
	IssueDescription string         `bun:"issue_description,notnull"`
	SubmittedBy      string         `bun:"submitted_by,notnull"`
	CreatedAt        sql.NullTime   `bun:"created_at"`
	Status           string         `bun:"status,nullzero"`
	VendorRMAID      sql.NullString `bun:"vendor_rma_id"`
	CallSID          sql.NullString `bun:"call_sid"`
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

func (s *BunStore) Get(ctx context.Context, id string) (*contractx.RMARecord, error) {
	row := new(requestRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", contractx.ErrRMANotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return &contractx.RMARecord{
		ID:               row.ID,
		Vendor:           row.Vendor,
		SerialNumber:     row.SerialNumber,
		ModelNumber:      row.ModelNumber,
		IssueDescription: row.IssueDescription,
		SubmittedBy:      row.SubmittedBy,
		CreatedAt:        row.CreatedAt.Time,
		Status:           row.Status,
		VendorRMAID:      row.VendorRMAID.String,
		CallSID:          row.CallSID.String,
	}, nil
}

func (s *BunStore) SetVendorRMAID(ctx context.Context, id string, vendorRMAID string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*requestRow)(nil)).
		Set("vendor_rma_id = ?", vendorRMAID).
		Set("status = ?", "submitted").
		Where("id = ?", id).
		Where("vendor_rma_id IS NULL OR vendor_rma_id = ''").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *BunStore) SetCallSID(ctx context.Context, id string, callSID string) error {
	_, err := s.db.NewUpdate().
		Model((*requestRow)(nil)).
		Set("call_sid = ?", callSID).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
