package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jonathan/yecs/internal/server/middleware"
	"github.com/jonathan/yecs/internal/types"
	"github.com/jonathan/yecs/internal/workflow"
	"go.uber.org/zap"
)

// Score history page size bounds.
const (
	defaultScoreHistory = 20
	maxScoreHistory     = 100
)

// handleAnonymousAuth issues a token for a fresh anonymous identity.
func (s *Server) handleAnonymousAuth(w http.ResponseWriter, r *http.Request) {
	issued, err := s.deps.Tokens.IssueAnonymous()
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.logger.Info("anonymous session started", zap.String("identity", issued.Identity))
	s.jsonResponse(w, http.StatusCreated, issued)
}

// session returns the caller's workflow session.
func (s *Server) session(r *http.Request) (*workflow.Session, error) {
	identity, err := middleware.GetIdentity(r)
	if err != nil {
		return nil, err
	}
	if s.deps.Registry == nil {
		return nil, errors.New("workflow registry is not configured")
	}
	return s.deps.Registry.Get(r.Context(), identity), nil
}

// handleGetWorkflow returns the caller's workflow snapshot.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.Workflow.Snapshot())
}

// handleSubmitSection validates one section form and advances the workflow.
func (s *Server) handleSubmitSection(w http.ResponseWriter, r *http.Request) {
	section, err := types.ParseSection(r.PathValue("section"))
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	if err := validateSection(section, raw); err != nil {
		s.errorFrom(w, r, err)
		return
	}
	sess, err := s.session(r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	wf := sess.Workflow
	var snap workflow.Snapshot
	switch section {
	case types.SectionPersonal:
		snap, err = wf.SubmitPersonal(r.Context(), raw)
	case types.SectionBusiness:
		snap, err = wf.SubmitBusiness(r.Context(), raw)
	case types.SectionFinancials:
		snap, err = wf.SubmitFinancials(r.Context(), raw)
	case types.SectionDocuments:
		snap, err = wf.AddDocuments(r.Context(), raw)
	}
	if err != nil {
		s.workflowError(w, r, wf, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}

// handleContinue moves from results to the dashboard, or refreshes insights.
func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	snap, err := sess.Workflow.Continue(r.Context())
	if err != nil {
		s.workflowError(w, r, sess.Workflow, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, snap)
}

// workflowError responds with the error and the current snapshot so the
// client can re-render the step it is actually on.
func (s *Server) workflowError(w http.ResponseWriter, r *http.Request, wf *workflow.Workflow, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("workflow request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.jsonResponse(w, status, map[string]any{
		"error":    PublicMessage(err),
		"workflow": wf.Snapshot(),
	})
}

// handleInsightsStream sends the current snapshot, waits for the pending
// insights request to settle and sends the snapshot again.
func (s *Server) handleInsightsStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sse.WriteEvent(EventState, sess.Workflow.Snapshot()); err != nil {
		return
	}

	snap, err := sess.Workflow.AwaitInsights(r.Context())
	if err != nil {
		// Client went away
		return
	}
	if err := sse.WriteEvent(EventInsights, snap); err != nil {
		s.logger.Debug("insights stream write failed", zap.Error(err))
	}
}

// handleScoreHistory lists the caller's stored scores, newest first.
func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.GetIdentity(r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	limit := defaultScoreHistory
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxScoreHistory)
	}
	if s.deps.Store == nil {
		s.jsonResponse(w, http.StatusOK, map[string]any{"scores": []any{}})
		return
	}

	records, err := s.deps.Store.ListScores(r.Context(), identity, limit)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"scores": records})
}

// chatRequest is the body of a chat send.
type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse is the chat log and pending state.
type chatResponse struct {
	Reply    *types.ChatMessage  `json:"reply,omitempty"`
	Messages []types.ChatMessage `json:"messages"`
	Thinking bool                `json:"thinking"`
}

// handleGetChat returns the chat log.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, chatResponse{
		Messages: sess.Assistant.Messages(),
		Thinking: sess.Assistant.Thinking(),
	})
}

// handleSendChat sends one message and waits for the reply.
func (s *Server) handleSendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorFrom(w, r, err)
		return
	}
	sess, err := s.session(r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	reply, err := sess.Assistant.Send(r.Context(), req.Message)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, chatResponse{
		Reply:    &reply,
		Messages: sess.Assistant.Messages(),
		Thinking: sess.Assistant.Thinking(),
	})
}

// validateSection decodes a section form and applies its field rules.
// Documents may be posted as one object or an array.
func validateSection(section types.Section, raw json.RawMessage) error {
	invalid := func(err error) error {
		return &BadRequestError{Message: "invalid " + string(section) + " section", Cause: err}
	}

	switch section {
	case types.SectionPersonal:
		var p types.Personal
		if err := json.Unmarshal(raw, &p); err != nil {
			return invalid(err)
		}
		return p.Validate()
	case types.SectionBusiness:
		var b types.Business
		if err := json.Unmarshal(raw, &b); err != nil {
			return invalid(err)
		}
		return b.Validate()
	case types.SectionFinancials:
		var f types.Financials
		if err := json.Unmarshal(raw, &f); err != nil {
			return invalid(err)
		}
		return f.Validate()
	case types.SectionDocuments:
		var docs []types.Document
		if err := json.Unmarshal(raw, &docs); err != nil {
			var doc types.Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return invalid(err)
			}
			docs = []types.Document{doc}
		}
		if len(docs) == 0 {
			return &BadRequestError{Message: "no documents provided"}
		}
		for i := range docs {
			if err := docs[i].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
