// Package formbot is the dispatch engine: it resolves the vendor's
// capability descriptor and executes either the REST submission or
// the voice capture path, recording every outcome in the ledger.
package formbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	a2ax "github.com/claimr-app/claimr-mesh/agent/a2a"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
)

// Submitter executes one vendor submission per its descriptor.
type Submitter interface {
	Submit(ctx context.Context, d *contractx.Descriptor, rma *contractx.RMARecord) (string, error)
}

type Service struct {
	registry  contractx.Registry
	submitter Submitter
	transport contractx.Transport
	ledger    ledgerx.Store
	rmas      rmax.Store
}

func New(
	registry contractx.Registry,
	submitter Submitter,
	transport contractx.Transport,
	ledger ledgerx.Store,
	rmas rmax.Store,
) (*Service, error) {
	if registry == nil {
		return nil, errors.New("vendor registry is required")
	}
	if submitter == nil {
		return nil, errors.New("submitter is required")
	}
	if transport == nil {
		return nil, errors.New("a2a transport is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	if rmas == nil {
		return nil, errors.New("rma store is required")
	}

	return &Service{
		registry:  registry,
		submitter: submitter,
		transport: transport,
		ledger:    ledger,
		rmas:      rmas,
	}, nil
}

// Dispatch returns the vendor RMA id for the record. Re-dispatching a
// record that already carries one is a no-op returning the existing
// value. Every failure is appended to the ledger with the raw vendor
// error text before it propagates; a retried attempt writes a second
// failure entry on purpose, that is the audit trail.
func (s *Service) Dispatch(ctx context.Context, record *contractx.RMARecord, traceID string) (string, error) {
	if record == nil {
		return "", fmt.Errorf("%w: rma record is required", contractx.ErrValidation)
	}

	if record.VendorRMAID != "" {
		log.Debug().
			Str("agent", contractx.AgentFormBot).
			Str("rma_id", record.ID).
			Str("vendor_rma_id", record.VendorRMAID).
			Msg("vendor rma id already captured, skipping dispatch")
		return record.VendorRMAID, nil
	}

	descriptor, err := s.registry.Resolve(record.Vendor)
	if err != nil {
		s.logFailure(ctx, record, err)
		return "", err
	}

	var vendorRMAID string
	if descriptor.RequiresVoice {
		vendorRMAID, err = s.dispatchVoice(ctx, record, traceID)
	} else {
		vendorRMAID, err = s.submitter.Submit(ctx, descriptor, record)
	}
	if err != nil {
		s.logFailure(ctx, record, err)
		return "", err
	}

	updated, err := s.rmas.SetVendorRMAID(ctx, record.ID, vendorRMAID)
	if err != nil {
		s.logFailure(ctx, record, err)
		return "", err
	}
	if !updated {
		// A concurrent dispatch won the write-once race; the value on
		// disk is authoritative.
		existing, err := s.rmas.Get(ctx, record.ID)
		if err != nil {
			return "", err
		}
		log.Warn().
			Str("agent", contractx.AgentFormBot).
			Str("rma_id", record.ID).
			Str("kept", existing.VendorRMAID).
			Str("discarded", vendorRMAID).
			Msg("vendor rma id already set, keeping existing value")
		return existing.VendorRMAID, nil
	}

	if err := s.ledger.Append(ctx, contractx.Action{
		AgentID: contractx.AgentFormBot,
		Type:    contractx.ActionToolUse,
		Data: map[string]any{
			"action":        "submit_rma",
			"vendor":        record.Vendor,
			"vendor_rma_id": vendorRMAID,
		},
		RMAID:  record.ID,
		Status: contractx.StatusSuccess,
	}); err != nil {
		log.Warn().Err(err).Str("rma_id", record.ID).Msg("failed to log dispatch success")
	}

	return vendorRMAID, nil
}

// dispatchVoice hands the record to the callbot over A2A and reads
// the captured number out of the response envelope.
func (s *Service) dispatchVoice(ctx context.Context, record *contractx.RMARecord, traceID string) (string, error) {
	msg := a2ax.NewMessage(contractx.AgentFormBot, contractx.AgentCallBot, contractx.MessageRequest, map[string]any{
		"vendor": record.Vendor,
		"rma_id": record.ID,
	}, traceID)

	reply, err := s.transport.Send(ctx, msg)
	if err != nil {
		return "", err
	}

	if err := s.ledger.Append(ctx, contractx.Action{
		AgentID: contractx.AgentFormBot,
		Type:    contractx.ActionA2AMessage,
		Data: map[string]any{
			"recipient": contractx.AgentCallBot,
			"trace_id":  traceID,
		},
		RMAID:  record.ID,
		Status: contractx.StatusSuccess,
	}); err != nil {
		log.Warn().Err(err).Str("rma_id", record.ID).Msg("failed to log a2a exchange")
	}

	if reply.Type == contractx.MessageError {
		cause, _ := reply.Payload["error"].(string)
		if cause == "" {
			cause = "callbot failed to obtain rma number"
		}
		return "", fmt.Errorf("%w: %s", contractx.ErrVoiceCapture, cause)
	}

	rmaNumber, _ := reply.Payload["rma_number"].(string)
	if rmaNumber == "" {
		return "", fmt.Errorf("%w: response missing rma_number", contractx.ErrVoiceCapture)
	}
	return rmaNumber, nil
}

func (s *Service) logFailure(ctx context.Context, record *contractx.RMARecord, cause error) {
	if err := s.ledger.Append(ctx, contractx.Action{
		AgentID: contractx.AgentFormBot,
		Type:    contractx.ActionError,
		Data: map[string]any{
			"action": "submit_rma",
			"vendor": record.Vendor,
		},
		RMAID:        record.ID,
		Status:       contractx.StatusFailure,
		ErrorMessage: cause.Error(),
	}); err != nil {
		log.Warn().Err(err).Str("rma_id", record.ID).Msg("failed to log dispatch failure")
	}
}
