// Package reconcile drives the submission lifecycle: an optimistic
// pending ticket is registered immediately, the classification pipeline
// runs, and the pending entry is settled into a classified ticket or an
// error ticket. The pending ledger keeps insertion order so callers see
// a stable view regardless of how settlement interleaves.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"queryflow/internal/domain"
	"queryflow/internal/llm"
	"queryflow/internal/metrics"
	"queryflow/internal/storage"
)

var (
	ErrEmptyMessage   = errors.New("message body must not be empty")
	ErrInvalidChannel = errors.New("unknown channel")
)

// Classifier is the slice of the LLM client the reconciler needs.
type Classifier interface {
	Classify(ctx context.Context, msg domain.Message) (domain.ClassificationResult, error)
}

type Reconciler struct {
	classifier Classifier
	store      storage.TicketStore
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(classifier Classifier, store storage.TicketStore, logger *logrus.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		classifier: classifier,
		store:      store,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Submit runs the full pipeline for one message. The pending ticket is
// persisted before classification starts so a crash mid-pipeline leaves
// an inspectable row rather than losing the submission. The returned
// ticket is the settled one; err is non-nil only when the pipeline
// failed, in which case the ticket carries status error and the failure
// reason.
func (r *Reconciler) Submit(ctx context.Context, msg domain.Message) (domain.Ticket, error) {
	if strings.TrimSpace(msg.Body) == "" {
		return domain.Ticket{}, ErrEmptyMessage
	}
	if !msg.Channel.Valid() {
		return domain.Ticket{}, ErrInvalidChannel
	}

	pending := domain.Ticket{
		ID:        uuid.NewString(),
		Message:   msg,
		Status:    domain.StatusPending,
		CreatedAt: r.now().UTC(),
	}
	if _, err := r.store.InsertTicket(ctx, pending); err != nil {
		return domain.Ticket{}, err
	}

	return r.settle(ctx, pending)
}

// Resubmit starts a brand-new pipeline run for an existing ticket's
// message, typically after it settled as an error. The new run gets its
// own identifier; the old ticket is left untouched.
func (r *Reconciler) Resubmit(ctx context.Context, id string) (domain.Ticket, error) {
	stored, err := r.store.GetTicket(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	return r.Submit(ctx, stored.Message)
}

func (r *Reconciler) settle(ctx context.Context, pending domain.Ticket) (domain.Ticket, error) {
	r.metrics.SubmissionsInFlight.Inc()
	defer r.metrics.SubmissionsInFlight.Dec()

	started := r.now()
	result, err := r.classifier.Classify(ctx, pending.Message)
	r.metrics.ClassifyDuration.Observe(r.now().Sub(started).Seconds())

	if err != nil {
		return r.fail(ctx, pending, err)
	}

	classified := pending
	classified.Classification = &result
	classified.Status = domain.StatusNew
	classified.FailureReason = ""

	stored, err := r.store.InsertTicket(ctx, classified)
	if err != nil {
		return r.fail(ctx, pending, err)
	}

	r.metrics.ClassificationsTotal.WithLabelValues(result.Department).Inc()
	r.logger.WithFields(logrus.Fields{
		"ticket_id":  stored.ID,
		"department": result.Department,
		"urgency":    result.Urgency,
		"channel":    string(pending.Channel),
	}).Info("ticket classified")

	return stored, nil
}

// fail settles the pending ticket as an error ticket. The original
// pipeline error is returned alongside so HTTP callers can shape the
// response; the ticket itself is still persisted.
func (r *Reconciler) fail(ctx context.Context, pending domain.Ticket, cause error) (domain.Ticket, error) {
	kind := errorKind(cause)
	r.metrics.PipelineFailures.WithLabelValues(kind).Inc()
	r.logger.WithFields(logrus.Fields{
		"ticket_id": pending.ID,
		"kind":      kind,
	}).WithError(cause).Error("classification pipeline failed")

	failed := pending
	failed.Status = domain.StatusError
	failed.FailureReason = cause.Error()
	failed.Classification = nil

	stored, storeErr := r.store.InsertTicket(ctx, failed)
	if storeErr != nil {
		r.logger.WithError(storeErr).Error("recording error ticket")
		return failed, cause
	}
	return stored, cause
}

func errorKind(err error) string {
	var gateway *llm.GatewayError
	var empty *llm.EmptyOutputError
	var malformed *llm.MalformedResponseError
	var schema *llm.SchemaViolationError
	switch {
	case errors.As(err, &gateway):
		return "gateway"
	case errors.As(err, &empty):
		return "empty_output"
	case errors.As(err, &malformed):
		return "malformed_response"
	case errors.As(err, &schema):
		return "schema_violation"
	default:
		return "other"
	}
}
