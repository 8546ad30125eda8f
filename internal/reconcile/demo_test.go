package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryflow/internal/domain"
)

type stubGenerator struct {
	calls int64
	batch []domain.Message
	err   error
}

func (s *stubGenerator) GenerateDemoBatch(context.Context) ([]domain.Message, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.batch, s.err
}

func (s *stubGenerator) callCount() int64 {
	return atomic.LoadInt64(&s.calls)
}

func okClassifier(_ context.Context, msg domain.Message) (domain.ClassificationResult, error) {
	return domain.ClassificationResult{Department: "General Inquiry", Urgency: 1, Summary: msg.Body}, nil
}

func TestRunDemoBatchSubmitsEveryMessage(t *testing.T) {
	r, store := newTestReconciler(okClassifier)
	gen := &stubGenerator{batch: []domain.Message{
		{UserID: "user-001", Channel: domain.ChannelWeb, Body: "site is slow"},
		{UserID: "user-002", Channel: domain.ChannelTwitter, Body: "love the product", SourceHandle: "@fan"},
	}}

	tickets, err := r.RunDemoBatch(context.Background(), gen)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	for _, ticket := range tickets {
		assert.Equal(t, domain.StatusNew, ticket.Status)
	}

	listed, err := store.ListTickets(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestRunDemoBatchGeneratorFailure(t *testing.T) {
	r, _ := newTestReconciler(okClassifier)
	gen := &stubGenerator{err: errors.New("model unavailable")}

	_, err := r.RunDemoBatch(context.Background(), gen)
	assert.Error(t, err)
}

func TestRunDemoBatchKeepsGoingAfterSubmitFailure(t *testing.T) {
	r, _ := newTestReconciler(func(_ context.Context, msg domain.Message) (domain.ClassificationResult, error) {
		if msg.Body == "poison" {
			return domain.ClassificationResult{}, errors.New("boom")
		}
		return domain.ClassificationResult{Department: "Billing", Urgency: 2}, nil
	})
	gen := &stubGenerator{batch: []domain.Message{
		{Channel: domain.ChannelWeb, Body: "poison"},
		{Channel: domain.ChannelWeb, Body: "fine"},
	}}

	tickets, err := r.RunDemoBatch(context.Background(), gen)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, domain.StatusError, tickets[0].Status)
	assert.Equal(t, domain.StatusNew, tickets[1].Status)
}

func TestDemoSessionRunsBatchPerTick(t *testing.T) {
	r, _ := newTestReconciler(okClassifier)
	gen := &stubGenerator{batch: []domain.Message{{Channel: domain.ChannelWeb, Body: "tick"}}}

	tick := make(chan time.Time)
	session := r.startDemoSession(gen, time.Second, func(time.Duration) <-chan time.Time { return tick })
	defer session.Stop()

	tick <- time.Now()
	require.Eventually(t, func() bool { return gen.callCount() == 1 }, time.Second, 5*time.Millisecond)

	tick <- time.Now()
	require.Eventually(t, func() bool { return gen.callCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDemoSessionStopPreventsFurtherBatches(t *testing.T) {
	r, _ := newTestReconciler(okClassifier)
	gen := &stubGenerator{batch: []domain.Message{{Channel: domain.ChannelWeb, Body: "tick"}}}

	tick := make(chan time.Time)
	session := r.startDemoSession(gen, time.Second, func(time.Duration) <-chan time.Time { return tick })

	tick <- time.Now()
	require.Eventually(t, func() bool { return gen.callCount() == 1 }, time.Second, 5*time.Millisecond)

	session.Stop()

	// The loop goroutine has exited, so a pending tick finds no receiver.
	select {
	case tick <- time.Now():
		t.Fatal("tick was consumed after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int64(1), gen.callCount())
}

func TestDemoSessionStopIsIdempotent(t *testing.T) {
	r, _ := newTestReconciler(okClassifier)
	gen := &stubGenerator{}

	session := r.startDemoSession(gen, time.Second, func(time.Duration) <-chan time.Time {
		return make(chan time.Time)
	})
	session.Stop()
	session.Stop()
}

func TestStartDemoSchedulerValidation(t *testing.T) {
	r, _ := newTestReconciler(okClassifier)
	gen := &stubGenerator{}

	assert.NoError(t, r.StartDemoScheduler(gen, ""))
	assert.Error(t, r.StartDemoScheduler(gen, "not a schedule"))
}

func TestDemoBatchTicketsCarryGeneratedContent(t *testing.T) {
	r, _ := newTestReconciler(okClassifier)
	var batch []domain.Message
	for i := 0; i < 3; i++ {
		batch = append(batch, domain.Message{
			UserID:  fmt.Sprintf("user-%03d", i),
			Channel: domain.ChannelEmail,
			Body:    fmt.Sprintf("synthetic issue %d", i),
			Subject: "Demo",
		})
	}
	gen := &stubGenerator{batch: batch}

	tickets, err := r.RunDemoBatch(context.Background(), gen)
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	for i, ticket := range tickets {
		assert.Equal(t, batch[i].UserID, ticket.UserID)
		assert.Equal(t, batch[i].Body, ticket.Body)
		require.NotNil(t, ticket.Classification)
		assert.Equal(t, batch[i].Body, ticket.Classification.Summary)
	}
}
