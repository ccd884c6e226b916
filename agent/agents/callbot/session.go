package callbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	callstatusx "github.com/claimr-app/claimr-mesh/agent/callstatus"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

type State string

const (
	StatePlaced   State = "placed"
	StatePolling  State = "polling"
	StateCaptured State = "captured"
	StateExpired  State = "expired"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 12
)

// Session is the bounded wait for one placed call's captured result.
// Single use: it moves placed -> polling -> captured|expired and no
// state is ever re-entered.
type Session struct {
	CallSID  string
	RMAID    string
	PlacedAt time.Time

	pollInterval time.Duration
	maxAttempts  int
	state        State
}

func NewSession(callSID, rmaID string, pollInterval time.Duration, maxAttempts int) *Session {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Session{
		CallSID:      callSID,
		RMAID:        rmaID,
		PlacedAt:     time.Now().UTC(),
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		state:        StatePlaced,
	}
}

func (s *Session) State() State {
	return s.state
}

// Wait polls the result store for a correlated capture. It blocks the
// calling task only; each session waits independently, and ctx
// cancellation aborts the wait without leaking it.
func (s *Session) Wait(ctx context.Context, store callstatusx.Store) (*contractx.CallResult, error) {
	if s.state != StatePlaced {
		return nil, fmt.Errorf("call session already %s", s.state)
	}
	s.state = StatePolling

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		result, err := store.Lookup(ctx, s.CallSID)
		if err != nil && !errors.Is(err, callstatusx.ErrResultNotFound) {
			s.state = StateExpired
			return nil, err
		}
		if result != nil && result.RMANumber != "" {
			s.state = StateCaptured
			return result, nil
		}

		select {
		case <-ctx.Done():
			s.state = StateExpired
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}

	s.state = StateExpired
	return nil, fmt.Errorf("%w: call_sid=%s attempts=%d", contractx.ErrCaptureTimeout, s.CallSID, s.maxAttempts)
}
