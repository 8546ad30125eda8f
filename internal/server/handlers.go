package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"queryflow/internal/domain"
	"queryflow/internal/reconcile"
	"queryflow/internal/storage"
)

type Handler struct {
	reconciler   *reconcile.Reconciler
	generator    reconcile.DemoGenerator
	store        storage.TicketStore
	logger       *logrus.Logger
	demoInterval time.Duration

	mu      sync.Mutex
	session *reconcile.DemoSession
}

func NewHandler(r *reconcile.Reconciler, gen reconcile.DemoGenerator, store storage.TicketStore, logger *logrus.Logger, demoInterval time.Duration) *Handler {
	return &Handler{
		reconciler:   r,
		generator:    gen,
		store:        store,
		logger:       logger,
		demoInterval: demoInterval,
	}
}

type errorResponse struct {
	Error  string         `json:"error"`
	Ticket *domain.Ticket `json:"ticket,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// ClassifyAndRoute accepts one customer message, runs the classification
// pipeline synchronously and returns the settled ticket. A pipeline
// failure still yields a persisted error ticket, returned with 502 so
// clients can show it.
func (h *Handler) ClassifyAndRoute(w http.ResponseWriter, r *http.Request) {
	var msg domain.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg.UserID == "" {
		writeError(w, http.StatusBadRequest, "Missing field: userId")
		return
	}
	if msg.Channel == "" {
		writeError(w, http.StatusBadRequest, "Missing field: channel")
		return
	}
	if msg.Body == "" {
		writeError(w, http.StatusBadRequest, "Missing field: message")
		return
	}

	ticket, err := h.reconciler.Submit(r.Context(), msg)
	switch {
	case errors.Is(err, reconcile.ErrEmptyMessage), errors.Is(err, reconcile.ErrInvalidChannel):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Ticket: &ticket})
	default:
		writeJSON(w, http.StatusOK, ticket)
	}
}

// GenerateDemoQuery produces one batch of synthetic messages and pushes
// each through the pipeline, returning the settled tickets.
func (h *Handler) GenerateDemoQuery(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.reconciler.RunDemoBatch(r.Context(), h.generator)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	status := domain.TicketStatus(r.URL.Query().Get("status"))

	tickets, err := h.store.ListTickets(r.Context(), limit, status)
	if err != nil {
		h.logger.WithError(err).Error("listing tickets")
		writeError(w, http.StatusInternalServerError, "Failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) DeleteQueries(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAll(r.Context()); err != nil {
		h.logger.WithError(err).Error("clearing tickets")
		writeError(w, http.StatusInternalServerError, "Failed to clear tickets")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateQuery applies an operator mutation: status transition and/or
// assignment. Only operator-ownable statuses are accepted; pending and
// error remain pipeline-owned.
func (h *Handler) UpdateQuery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var update domain.TicketUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if update.Status == nil && update.AssignedTo == nil {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	if update.Status != nil && !update.Status.OperatorAssignable() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	ticket, err := h.store.UpdateTicket(r.Context(), id, update)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Ticket not found")
	case err != nil:
		h.logger.WithError(err).Error("updating ticket")
		writeError(w, http.StatusInternalServerError, "Failed to update ticket")
	default:
		writeJSON(w, http.StatusOK, ticket)
	}
}

// ResubmitQuery starts a fresh pipeline run for an existing ticket's
// message, typically one that settled as an error. The run gets a new
// ticket; the original is left in place.
func (h *Handler) ResubmitQuery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ticket, err := h.reconciler.Resubmit(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Ticket not found")
	case err != nil:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Ticket: &ticket})
	default:
		writeJSON(w, http.StatusOK, ticket)
	}
}

func (h *Handler) StartDemoSession(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session != nil {
		writeError(w, http.StatusConflict, "Demo session already running")
		return
	}
	h.session = h.reconciler.StartDemoSession(h.generator, h.demoInterval)
	h.logger.WithField("interval", h.demoInterval.String()).Info("demo session started")
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (h *Handler) StopDemoSession(w http.ResponseWriter, _ *http.Request) {
	// Detach before stopping: Stop waits for an in-flight batch, which can
	// take a full gateway round trip, and must not hold the lock that the
	// session endpoints share.
	h.mu.Lock()
	session := h.session
	h.session = nil
	h.mu.Unlock()

	if session == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not running"})
		return
	}
	session.Stop()
	h.logger.Info("demo session stopped")
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
