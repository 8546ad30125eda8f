package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"queryflow/internal/domain"
)

// DemoGenerator is the slice of the LLM client the demo loop needs.
type DemoGenerator interface {
	GenerateDemoBatch(ctx context.Context) ([]domain.Message, error)
}

// DemoSession is a running synthetic-traffic loop. Stop is idempotent
// and guarantees no batch starts after it returns.
type DemoSession struct {
	done chan struct{}
	stop sync.Once
	wg   sync.WaitGroup
}

func (s *DemoSession) Stop() {
	s.stop.Do(func() { close(s.done) })
	s.wg.Wait()
}

// StartDemoSession begins generating a batch of synthetic messages every
// interval until Stop is called. Each generated message goes through the
// full submission pipeline.
func (r *Reconciler) StartDemoSession(gen DemoGenerator, interval time.Duration) *DemoSession {
	return r.startDemoSession(gen, interval, time.After)
}

// after is injectable so tests can drive ticks without real time.
func (r *Reconciler) startDemoSession(gen DemoGenerator, interval time.Duration, after func(time.Duration) <-chan time.Time) *DemoSession {
	session := &DemoSession{done: make(chan struct{})}
	session.wg.Add(1)
	go func() {
		defer session.wg.Done()
		for {
			select {
			case <-session.done:
				return
			case <-after(interval):
			}
			// A tick may have raced a concurrent Stop; re-check before
			// starting a batch so Stop means no further invocations.
			select {
			case <-session.done:
				return
			default:
			}
			if _, err := r.RunDemoBatch(context.Background(), gen); err != nil {
				r.logger.WithError(err).Warn("demo batch failed")
			}
		}
	}()
	return session
}

// RunDemoBatch generates one batch of synthetic messages and submits
// each through the pipeline. Submission failures settle as error
// tickets and do not abort the rest of the batch.
func (r *Reconciler) RunDemoBatch(ctx context.Context, gen DemoGenerator) ([]domain.Ticket, error) {
	messages, err := gen.GenerateDemoBatch(ctx)
	if err != nil {
		return nil, err
	}
	r.metrics.DemoBatches.Inc()

	tickets := make([]domain.Ticket, 0, len(messages))
	for _, msg := range messages {
		ticket, err := r.Submit(ctx, msg)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"ticket_id": ticket.ID,
			}).WithError(err).Warn("demo submission failed")
		}
		if ticket.ID != "" {
			tickets = append(tickets, ticket)
		}
	}
	return tickets, nil
}

// StartDemoScheduler runs demo batches on a cron schedule, for
// deployments that want steady background traffic rather than an
// operator-driven session. An empty schedule disables it.
func (r *Reconciler) StartDemoScheduler(gen DemoGenerator, schedule string) error {
	if schedule == "" {
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return err
	}

	go func() {
		for {
			next := sched.Next(time.Now())
			time.Sleep(time.Until(next))
			r.logger.WithField("schedule", schedule).Info("running scheduled demo batch")
			if _, err := r.RunDemoBatch(context.Background(), gen); err != nil {
				r.logger.WithError(err).Warn("scheduled demo batch failed")
			}
		}
	}()
	r.logger.WithField("schedule", schedule).Info("demo scheduler started")
	return nil
}
