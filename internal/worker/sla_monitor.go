package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/events"
	"github.com/spec-kit/incident-router/internal/observability"
	"github.com/spec-kit/incident-router/internal/repository"
)

const defaultScanLimit = 200

// States whose tickets no longer run against their deadline.
var slaExemptStates = []string{domain.StateResolved, domain.StateClosed}

// SLAMonitorDependencies wires the monitor.
type SLAMonitorDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Schedule   string
	Location   *time.Location
	ScanLimit  int
	Now        func() time.Time
}

// SLAMonitor flags tickets that passed their deadline while still open. It
// never touches ownership or area.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	schedule   string
	limit      int
	now        func() time.Time
	cron       *cron.Cron

	stopOnce sync.Once
}

// NewSLAMonitor builds the monitor. The schedule uses standard cron syntax or
// descriptors such as "@every 1m".
func NewSLAMonitor(deps SLAMonitorDependencies) *SLAMonitor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	limit := deps.ScanLimit
	if limit <= 0 {
		limit = defaultScanLimit
	}
	return &SLAMonitor{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		schedule:   deps.Schedule,
		limit:      limit,
		now:        now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger.Sugar()}),
			cron.WithChain(
				cron.Recover(cronLogger{logger.Sugar()}),
				cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
			),
		),
	}
}

// cronLogger routes the scheduler's own logging, including recovered job
// panics, into zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Run schedules the scan and blocks until ctx is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) error {
	if _, err := m.cron.AddFunc(m.schedule, func() {
		if _, err := m.Scan(ctx); err != nil {
			m.logger.Error("sla scan failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("sla monitor started", zap.String("schedule", m.schedule))

	<-ctx.Done()
	m.stop()
	return nil
}

func (m *SLAMonitor) stop() {
	m.stopOnce.Do(func() {
		done := m.cron.Stop()
		select {
		case <-done.Done():
		case <-time.After(5 * time.Second):
			m.logger.Warn("sla monitor: timed out waiting for scan to finish")
		}
	})
}

// Scan flags every overdue ticket once and returns how many were newly flagged.
func (m *SLAMonitor) Scan(ctx context.Context) (int, error) {
	now := m.now()
	overdue, err := m.tickets.ListOverdue(ctx, now, slaExemptStates, m.limit)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, ticket := range overdue {
		if !ticket.Overdue(now) {
			continue
		}
		marked, err := m.tickets.MarkBreached(ctx, ticket.ID, now)
		if err != nil {
			m.logger.Warn("unable to flag sla breach", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if !marked {
			continue
		}
		flagged++
		m.metrics.RecordSLABreach()
		m.logger.Info("ticket breached sla",
			zap.Int64("ticket_id", ticket.ID),
			zap.Time("sla_deadline", ticket.SLADeadline),
			zap.Int64("area_id", ticket.AreaID))
		m.publish(ctx, ticket, now)
	}
	return flagged, nil
}

func (m *SLAMonitor) publish(ctx context.Context, ticket domain.Ticket, at time.Time) {
	if m.dispatcher == nil {
		return
	}
	err := m.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketSLABreached,
		TicketID:  ticket.ID,
		Timestamp: at,
		Payload: events.TicketSLABreachedPayload{
			SLADeadline: ticket.SLADeadline,
			AreaID:      ticket.AreaID,
			OperatorID:  ticket.OperatorID,
		},
	})
	if err != nil {
		m.logger.Warn("sla breach handler failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
}
