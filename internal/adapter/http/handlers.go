package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/attestia/gatekeep/internal/domain/decision"
	"github.com/attestia/gatekeep/internal/domain/review"
	"github.com/attestia/gatekeep/internal/domain/tool"
	"github.com/attestia/gatekeep/internal/service"
)

const bodyLimit = 1 << 20

// Handlers bundles the HTTP handlers over the governance services.
type Handlers struct {
	orchestrator *service.Orchestrator
	reviews      *service.ReviewService
	decisions    *service.DecisionService
}

// NewHandlers creates the handler set.
func NewHandlers(o *service.Orchestrator, r *service.ReviewService, d *service.DecisionService) *Handlers {
	return &Handlers{orchestrator: o, reviews: r, decisions: d}
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/agents/{id}/run", h.RunAgent)

		r.Get("/reviews", h.ListReviews)
		r.Get("/reviews/{id}", h.GetReview)
		r.Post("/reviews/{id}/approve", h.ApproveReview)
		r.Post("/reviews/{id}/reject", h.RejectReview)

		r.Post("/projects/{id}/decisions", h.CreateDecisionDraft)
		r.Get("/projects/{id}/decisions", h.ListDecisions)
		r.Get("/decisions/{id}", h.GetDecision)
	})
}

type runRequest struct {
	UserID         string                  `json:"user_id"`
	ProjectID      string                  `json:"project_id,omitempty"`
	ClientID       string                  `json:"client_id,omitempty"`
	UserMessage    string                  `json:"user_message,omitempty"`
	IntendedAction *service.IntendedAction `json:"intended_action,omitempty"`
}

// RunAgent submits one agent action request to the orchestrator.
func (h *Handlers) RunAgent(w http.ResponseWriter, r *http.Request) {
	agentID := urlParam(r, "id")
	req, ok := readJSON[runRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.UserID, "user_id") {
		return
	}

	tc := tool.Context{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
	}
	result, err := h.orchestrator.Run(r.Context(), tc, service.RunInput{
		AgentID:        agentID,
		UserMessage:    req.UserMessage,
		IntendedAction: req.IntendedAction,
	})
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListReviews lists review requests by status (default pending).
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	status := review.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = review.StatusPending
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reviews, err := h.reviews.List(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if reviews == nil {
		reviews = []review.Request{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

// GetReview returns one review request.
func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	req, err := h.reviews.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type resolveRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Comment    string `json:"comment,omitempty"`
}

// ApproveReview approves a pending review. The response carries the
// plaintext commit token; it is shown exactly once.
func (h *Handlers) ApproveReview(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resolveRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.ReviewerID, "reviewer_id") {
		return
	}

	secret, err := h.reviews.Approve(r.Context(), urlParam(r, "id"), req.ReviewerID, req.Comment)
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"commit_token": secret})
}

// RejectReview rejects a pending review.
func (h *Handlers) RejectReview(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resolveRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.ReviewerID, "reviewer_id") {
		return
	}

	if err := h.reviews.Reject(r.Context(), urlParam(r, "id"), req.ReviewerID, req.Comment); err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// CreateDecisionDraft creates a draft decision in the project.
func (h *Handlers) CreateDecisionDraft(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decision.CreateDraftRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	req.ProjectID = urlParam(r, "id")

	d, err := h.decisions.CreateDraft(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListDecisions lists decisions for a project.
func (h *Handlers) ListDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.decisions.ListByProject(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	if decisions == nil {
		decisions = []decision.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// GetDecision returns one decision.
func (h *Handlers) GetDecision(w http.ResponseWriter, r *http.Request) {
	d, err := h.decisions.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "decision not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
