// Package failsafe classifies reported failures: one automated retry
// per step, then escalation to human review. The policy holds no
// state between invocations; the caller supplies whether a retry was
// already attempted.
package failsafe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
)

type Policy struct {
	ledger ledgerx.Store
}

func New(ledger ledgerx.Store) (*Policy, error) {
	if ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	return &Policy{ledger: ledger}, nil
}

// Classify writes the failure to the ledger and returns the verdict:
// retry on the first failure, escalate once a retry has been burned.
// A report missing any required field is the caller's bug and comes
// back as ErrMalformedReport.
func (p *Policy) Classify(ctx context.Context, report contractx.FailureReport) (contractx.Verdict, error) {
	if strings.TrimSpace(report.Agent) == "" ||
		strings.TrimSpace(report.RMAID) == "" ||
		strings.TrimSpace(report.Err) == "" {
		return contractx.Verdict{}, fmt.Errorf("%w: agent, rma_id and error are required", contractx.ErrMalformedReport)
	}

	action := "retry_attempt"
	retryStatus := "pending"
	status := contractx.StatusPending
	if report.RetryAttempted {
		action = "escalation"
		retryStatus = "failed"
		status = contractx.StatusFailure
	}

	if err := p.ledger.Append(ctx, contractx.Action{
		AgentID: contractx.AgentFailsafe,
		Type:    contractx.ActionStateChange,
		Data: map[string]any{
			"action":        action,
			"failed_agent":  report.Agent,
			"error_message": report.Err,
			"retry_status":  retryStatus,
		},
		RMAID:  report.RMAID,
		Status: status,
	}); err != nil {
		log.Warn().Err(err).Str("rma_id", report.RMAID).Msg("failed to log failure report")
	}

	if !report.RetryAttempted {
		log.Info().
			Str("agent", contractx.AgentFailsafe).
			Str("rma_id", report.RMAID).
			Str("failed_agent", report.Agent).
			Msg("recommending retry")
		return contractx.Verdict{
			Retry:   true,
			Message: "Retry recommended before escalation",
		}, nil
	}

	log.Info().
		Str("agent", contractx.AgentFailsafe).
		Str("rma_id", report.RMAID).
		Str("failed_agent", report.Agent).
		Msg("escalating to human review")
	return contractx.Verdict{
		Escalate: true,
		Message:  "Retry failed, escalation required",
	}, nil
}
