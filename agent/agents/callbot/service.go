// Package callbot places an outbound call to a vendor's support line
// and waits, under a hard deadline, for the RMA number captured by
// the voice flow.
package callbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	callstatusx "github.com/claimr-app/claimr-mesh/agent/callstatus"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
)

// PhoneDirectory resolves a vendor id to its support line.
type PhoneDirectory interface {
	PhoneNumber(vendorID string) (string, bool)
}

type Config struct {
	// FlowURL is the voice-flow endpoint handed to the telephony
	// provider at call creation.
	FlowURL      string
	PollInterval time.Duration
	MaxAttempts  int
}

type Service struct {
	placer contractx.CallPlacer
	phones PhoneDirectory
	status callstatusx.Store
	ledger ledgerx.Store
	rmas   rmax.Store

	flowURL      string
	pollInterval time.Duration
	maxAttempts  int
}

func New(
	placer contractx.CallPlacer,
	phones PhoneDirectory,
	status callstatusx.Store,
	ledger ledgerx.Store,
	rmas rmax.Store,
	cfg Config,
) (*Service, error) {
	if placer == nil {
		return nil, errors.New("call placer is required")
	}
	if phones == nil {
		return nil, errors.New("phone directory is required")
	}
	if status == nil {
		return nil, errors.New("call status store is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	if rmas == nil {
		return nil, errors.New("rma store is required")
	}
	if cfg.FlowURL == "" {
		return nil, errors.New("voice flow url is required")
	}

	return &Service{
		placer:       placer,
		phones:       phones,
		status:       status,
		ledger:       ledger,
		rmas:         rmas,
		flowURL:      cfg.FlowURL,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
	}, nil
}

type Output struct {
	RMANumber     string
	TranscriptURL string
	CallSID       string
}

// Capture dials the vendor and returns the captured RMA number.
// Placement rejection is terminal (ErrCallPlacement); a deadline
// expiry surfaces as ErrCaptureTimeout. Both are written to the
// ledger with the raw error text before returning.
func (s *Service) Capture(ctx context.Context, record *contractx.RMARecord) (*Output, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: rma record is required", contractx.ErrValidation)
	}

	phone, ok := s.phones.PhoneNumber(record.Vendor)
	if !ok {
		err := fmt.Errorf("%w: vendor phone not found for %q", contractx.ErrCallPlacement, record.Vendor)
		s.logFailure(ctx, record, "", err)
		return nil, err
	}

	callSID, err := s.placer.PlaceCall(ctx, phone, s.flowURL+"?vendor="+record.Vendor)
	if err != nil {
		err = fmt.Errorf("%w: %v", contractx.ErrCallPlacement, err)
		s.logFailure(ctx, record, "", err)
		return nil, err
	}

	log.Info().
		Str("agent", contractx.AgentCallBot).
		Str("rma_id", record.ID).
		Str("vendor", record.Vendor).
		Str("call_sid", callSID).
		Msg("outbound call placed")

	if err := s.rmas.SetCallSID(ctx, record.ID, callSID); err != nil {
		log.Warn().Err(err).Str("rma_id", record.ID).Msg("failed to record call sid")
	}

	session := NewSession(callSID, record.ID, s.pollInterval, s.maxAttempts)
	result, err := session.Wait(ctx, s.status)
	if err != nil {
		s.logFailure(ctx, record, callSID, err)
		return nil, err
	}

	if err := s.ledger.Append(ctx, contractx.Action{
		AgentID: contractx.AgentCallBot,
		Type:    contractx.ActionToolUse,
		Data: map[string]any{
			"action":     "capture_rma",
			"vendor":     record.Vendor,
			"rma_number": result.RMANumber,
			"call_sid":   callSID,
		},
		RMAID:  record.ID,
		Status: contractx.StatusSuccess,
	}); err != nil {
		log.Warn().Err(err).Str("rma_id", record.ID).Msg("failed to log capture")
	}

	return &Output{
		RMANumber:     result.RMANumber,
		TranscriptURL: result.TranscriptURL,
		CallSID:       callSID,
	}, nil
}

func (s *Service) logFailure(ctx context.Context, record *contractx.RMARecord, callSID string, cause error) {
	data := map[string]any{
		"action": "capture_rma",
		"vendor": record.Vendor,
	}
	if callSID != "" {
		data["call_sid"] = callSID
	}

	if err := s.ledger.Append(ctx, contractx.Action{
		AgentID:      contractx.AgentCallBot,
		Type:         contractx.ActionError,
		Data:         data,
		RMAID:        record.ID,
		Status:       contractx.StatusFailure,
		ErrorMessage: cause.Error(),
	}); err != nil {
		log.Warn().Err(err).Str("rma_id", record.ID).Msg("failed to log capture failure")
	}
}
