// Package echo sends the confirmation e-mail once a vendor RMA
// number exists. Strictly best effort: callers log a failure here but
// never fail the workflow on it.
package echo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	resendx "github.com/claimr-app/claimr-mesh/pkg/resend"
)

type Mailer interface {
	Send(ctx context.Context, email resendx.Email) (string, error)
}

type Notifier struct {
	mailer Mailer
	ledger ledgerx.Store
}

func New(mailer Mailer, ledger ledgerx.Store) (*Notifier, error) {
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	return &Notifier{mailer: mailer, ledger: ledger}, nil
}

func (n *Notifier) Notify(ctx context.Context, rma *contractx.RMARecord, vendorRMAID string) error {
	if rma == nil {
		return fmt.Errorf("%w: rma record is required", contractx.ErrValidation)
	}

	email := resendx.Email{
		To:      rma.SubmittedBy,
		Subject: fmt.Sprintf("RMA Confirmation – %s", rma.Vendor),
		HTML:    confirmationBody(rma, vendorRMAID),
	}

	emailID, err := n.mailer.Send(ctx, email)
	if err != nil {
		if lerr := n.ledger.Append(ctx, contractx.Action{
			AgentID:      contractx.AgentEcho,
			Type:         contractx.ActionError,
			Data:         map[string]any{"action": "send_confirmation", "to": rma.SubmittedBy},
			RMAID:        rma.ID,
			Status:       contractx.StatusFailure,
			ErrorMessage: err.Error(),
		}); lerr != nil {
			log.Warn().Err(lerr).Str("rma_id", rma.ID).Msg("failed to log notification failure")
		}
		return err
	}

	log.Info().
		Str("agent", contractx.AgentEcho).
		Str("rma_id", rma.ID).
		Str("email_id", emailID).
		Msg("confirmation email sent")

	if err := n.ledger.Append(ctx, contractx.Action{
		AgentID: contractx.AgentEcho,
		Type:    contractx.ActionToolUse,
		Data: map[string]any{
			"action":   "send_confirmation",
			"to":       rma.SubmittedBy,
			"email_id": emailID,
		},
		RMAID:  rma.ID,
		Status: contractx.StatusSuccess,
	}); err != nil {
		log.Warn().Err(err).Str("rma_id", rma.ID).Msg("failed to log notification")
	}

	return nil
}

func confirmationBody(rma *contractx.RMARecord, vendorRMAID string) string {
	details := fmt.Sprintf(
		"<strong>Equipment:</strong> %s<br><strong>Serial Number:</strong> %s<br><strong>Vendor:</strong> %s<br><strong>Issue:</strong> %s<br>",
		rma.ModelNumber, rma.SerialNumber, rma.Vendor, rma.IssueDescription,
	)
	if vendorRMAID != "" {
		details += fmt.Sprintf("<strong>Vendor RMA Number:</strong> %s<br>", vendorRMAID)
	}
	details += fmt.Sprintf("<strong>Submitted:</strong> %s<br>", rma.CreatedAt.Format(time.RFC1123))

	return fmt.Sprintf(
		"<h2>Your RMA Request Has Been Processed</h2><p>We've submitted your RMA request to %s. Here are the details:</p><div>%s</div><p>We'll notify you of any status updates. If you have questions, reply to this email.</p><p>Thank you for using Claimr!</p>",
		rma.Vendor, details,
	)
}
