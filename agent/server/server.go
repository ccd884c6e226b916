// Package server exposes the agent mesh over HTTP: one endpoint per
// agent under /api/agents, plus the telephony webhooks that feed the
// call-status store.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	callbotx "github.com/claimr-app/claimr-mesh/agent/agents/callbot"
	failsafex "github.com/claimr-app/claimr-mesh/agent/agents/failsafe"
	formbotx "github.com/claimr-app/claimr-mesh/agent/agents/formbot"
	orchestratorx "github.com/claimr-app/claimr-mesh/agent/agents/orchestrator"
	traceroutex "github.com/claimr-app/claimr-mesh/agent/agents/traceroute"
	callstatusx "github.com/claimr-app/claimr-mesh/agent/callstatus"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

type Server struct {
	orchestrator *orchestratorx.Orchestrator
	formbot      *formbotx.Service
	callbot      *callbotx.Service
	failsafe     *failsafex.Policy
	notifier     contractx.Notifier
	ledger       ledgerx.Store
	rmas         rmax.Store
	callStatus   callstatusx.Store
}

func New(
	orchestrator *orchestratorx.Orchestrator,
	formbot *formbotx.Service,
	callbot *callbotx.Service,
	failsafe *failsafex.Policy,
	notifier contractx.Notifier,
	ledger ledgerx.Store,
	rmas rmax.Store,
	callStatus callstatusx.Store,
) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if formbot == nil {
		return nil, errors.New("formbot service is required")
	}
	if callbot == nil {
		return nil, errors.New("callbot service is required")
	}
	if failsafe == nil {
		return nil, errors.New("failsafe policy is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	if rmas == nil {
		return nil, errors.New("rma store is required")
	}
	if callStatus == nil {
		return nil, errors.New("call status store is required")
	}

	return &Server{
		orchestrator: orchestrator,
		formbot:      formbot,
		callbot:      callbot,
		failsafe:     failsafe,
		notifier:     notifier,
		ledger:       ledger,
		rmas:         rmas,
		callStatus:   callStatus,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/agents", func(r chi.Router) {
		r.Post("/orchestrator", s.handleOrchestrator)
		r.Post("/formbot", s.handleFormBot)
		r.Post("/callbot", s.handleCallBot)
		r.Post("/traceroute", s.handleTraceRoute)
		r.Post("/failsafe", s.handleFailsafe)
		r.Post("/echo", s.handleEcho)
		r.Post("/ledger", s.handleLedger)
		r.Get("/{agent}/introspect", s.handleIntrospect)
	})

	r.Route("/api/twilio", func(r chi.Router) {
		r.Get("/callflow", s.handleCallFlow)
		r.Post("/collect", s.handleCollect)
	})

	return r
}

func (s *Server) handleOrchestrator(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID      string `json:"id"`
		TraceID string `json:"trace_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "Missing RMA ID")
		return
	}

	out, err := s.orchestrator.HandleRequest(r.Context(), body.ID, body.TraceID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contractx.ErrRMANotFound) || errors.Is(err, contractx.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"rma_id":        out.RMAID,
		"vendor_rma_id": out.VendorRMAID,
		"escalated":     out.Escalated,
		"trace_id":      out.TraceID,
	})
}

func (s *Server) handleFormBot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID      string `json:"id"`
		TraceID string `json:"trace_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "Missing RMA ID")
		return
	}

	record, err := s.rmas.Get(r.Context(), body.ID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contractx.ErrRMANotFound) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	vendorRMAID, err := s.formbot.Dispatch(r.Context(), record, body.TraceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process RMA: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"vendor_rma_id": vendorRMAID,
	})
}

// handleCallBot speaks the A2A envelope: a request from the dispatch
// engine comes in, a response or error envelope goes back. Failures
// are reported inside the envelope, not as HTTP errors, so the
// transport layer stays a pure delivery mechanism.
func (s *Server) handleCallBot(w http.ResponseWriter, r *http.Request) {
	var msg contractx.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid a2a envelope")
		return
	}

	rmaID, _ := msg.Payload["rma_id"].(string)
	if rmaID == "" {
		writeJSON(w, http.StatusOK, s.callbotError(msg, "payload missing rma_id"))
		return
	}

	record, err := s.rmas.Get(r.Context(), rmaID)
	if err != nil {
		writeJSON(w, http.StatusOK, s.callbotError(msg, err.Error()))
		return
	}

	out, err := s.callbot.Capture(r.Context(), record)
	if err != nil {
		writeJSON(w, http.StatusOK, s.callbotError(msg, err.Error()))
		return
	}

	reply := contractx.Message{
		Sender:    contractx.AgentCallBot,
		Recipient: msg.Sender,
		Type:      contractx.MessageResponse,
		Payload: map[string]any{
			"status":     "SUCCESS",
			"vendor":     record.Vendor,
			"rma_number": out.RMANumber,
			"call_sid":   out.CallSID,
		},
		Timestamp: time.Now().UTC(),
		TraceID:   msg.TraceID,
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) callbotError(msg contractx.Message, cause string) contractx.Message {
	return contractx.Message{
		Sender:    contractx.AgentCallBot,
		Recipient: msg.Sender,
		Type:      contractx.MessageError,
		Payload: map[string]any{
			"status": "FAILED",
			"error":  cause,
		},
		Timestamp: time.Now().UTC(),
		TraceID:   msg.TraceID,
	}
}

func (s *Server) handleTraceRoute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "Missing RMA ID")
		return
	}

	record, err := s.rmas.Get(r.Context(), body.ID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contractx.ErrRMANotFound) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"next_step": traceroutex.Route(record),
		"rma_id":    record.ID,
	})
}

func (s *Server) handleFailsafe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Agent          string `json:"agent"`
		RMAID          string `json:"rma_id"`
		Error          string `json:"error"`
		RetryAttempted *bool  `json:"retry_attempted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RetryAttempted == nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	verdict, err := s.failsafe.Classify(r.Context(), contractx.FailureReport{
		Agent:          body.Agent,
		RMAID:          body.RMAID,
		Err:            body.Error,
		RetryAttempted: *body.RetryAttempted,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contractx.ErrMalformedReport) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID          string `json:"id"`
		VendorRMAID string `json:"vendor_rma_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "Missing RMA ID")
		return
	}

	record, err := s.rmas.Get(r.Context(), body.ID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contractx.ErrRMANotFound) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	if err := s.notifier.Notify(r.Context(), record, body.VendorRMAID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to send confirmation email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	var action contractx.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, "invalid ledger entry")
		return
	}
	if action.AgentID == "" || action.Type == "" || action.RMAID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if err := s.ledger.Append(r.Context(), action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to write log entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

var agentCapabilities = map[string][]string{
	contractx.AgentOrchestrator: {"workflow_execution", "failure_recovery"},
	contractx.AgentTraceRoute:   {"routing_decision"},
	contractx.AgentFormBot:      {"vendor_form_submission", "voice_delegation"},
	contractx.AgentCallBot:      {"outbound_call", "rma_capture"},
	contractx.AgentFailsafe:     {"retry_classification", "escalation"},
	contractx.AgentEcho:         {"email_confirmation"},
	contractx.AgentLedger:       {"action_logging"},
}

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")
	capabilities, ok := agentCapabilities[agent]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown agent")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"agent":        agent,
		"version":      "1.0",
		"capabilities": capabilities,
		"lastUpdated":  time.Now().UTC(),
	})
}

// handleCallFlow returns the TwiML gather prompt the provider fetches
// when the outbound call connects.
func (s *Server) handleCallFlow(w http.ResponseWriter, _ *http.Request) {
	const twiml = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Gather numDigits="8" input="speech dtmf" action="/api/twilio/collect" method="POST" timeout="8">
    <Say>Please enter or speak your R M A number, followed by the pound sign.</Say>
  </Gather>
  <Say>We did not receive any input. Goodbye.</Say>
</Response>`

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twiml))
}

// handleCollect is the inbound webhook delivering the captured input
// for a call. It upserts the result row the capture state machine is
// polling for.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	callSID := r.PostFormValue("CallSid")
	if callSID == "" {
		writeError(w, http.StatusBadRequest, "Missing CallSid")
		return
	}

	captured := r.PostFormValue("Digits")
	if captured == "" {
		captured = r.PostFormValue("SpeechResult")
	}
	rmaNumber := nonAlnum.ReplaceAllString(captured, "")

	result := contractx.CallResult{
		CallSID:       callSID,
		RMANumber:     rmaNumber,
		TranscriptURL: r.PostFormValue("RecordingUrl"),
	}
	if err := s.callStatus.Upsert(r.Context(), result); err != nil {
		log.Error().Err(err).Str("call_sid", callSID).Msg("failed to store call result")
		writeError(w, http.StatusInternalServerError, "failed to store call result")
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<Response><Hangup/></Response>"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
