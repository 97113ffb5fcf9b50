package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrJamesThe3rd/cobrador/internal/metrics"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=reminder
type Billing interface {
	SearchInvoices(ctx context.Context, q InvoiceQuery) (*InvoicePage, error)
}

type Directory interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
}

type SendLog interface {
	// FindSent returns the subset of invoiceIDs with a sent record for stageID.
	FindSent(ctx context.Context, stageID string, invoiceIDs []string) ([]string, error)
	Append(ctx context.Context, rec *SendLogRecord) error
	List(ctx context.Context, filter LogFilter) ([]*SendLogRecord, error)
}

type Gateway interface {
	// Send delivers text to phone and returns the provider message id.
	Send(ctx context.Context, phone, text string) (string, error)
}

// RunLocker guards against overlapping runs across processes. Optional.
type RunLocker interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}

type InvoiceQuery struct {
	DueDate time.Time
	Status  StatusClass
	Offset  int
	Limit   int
}

type InvoicePage struct {
	Invoices []Invoice
	HasMore  bool
}

type Options struct {
	Schedule          Schedule
	Gate              Gate
	Location          *time.Location
	Interval          time.Duration
	SendTimeout       time.Duration
	PageSize          int
	MaxPages          int
	DedupBatch        int
	LookupConcurrency int
	Locker            RunLocker
	Logger            *slog.Logger
	Now               func() time.Time
}

const (
	defaultInterval          = 3 * time.Minute
	defaultSendTimeout       = 30 * time.Second
	defaultPageSize          = 100
	defaultMaxPages          = 50
	defaultDedupBatch        = 100
	defaultLookupConcurrency = 8
	logWriteTimeout          = 10 * time.Second
)

type Service struct {
	billing   Billing
	directory Directory
	sendLog   SendLog
	gateway   Gateway
	renderer  *Renderer

	schedule          Schedule
	gate              Gate
	loc               *time.Location
	interval          time.Duration
	sendTimeout       time.Duration
	pageSize          int
	maxPages          int
	dedupBatch        int
	lookupConcurrency int
	locker            RunLocker
	logger            *slog.Logger
	now               func() time.Time

	busy     atomic.Bool
	progress tracker

	// Background dispatches run on baseCtx so they outlive the triggering request.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(billing Billing, directory Directory, sendLog SendLog, gateway Gateway, renderer *Renderer, opts Options) *Service {
	if opts.Schedule.Len() == 0 {
		opts.Schedule = DefaultSchedule()
	}

	if opts.Location == nil {
		opts.Location = time.Local
	}

	if opts.Gate == (Gate{}) {
		opts.Gate = DefaultGate(opts.Location)
	}

	if opts.Gate.Location == nil {
		opts.Gate.Location = opts.Location
	}

	if opts.Interval < 0 {
		opts.Interval = 0
	}

	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}

	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}

	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}

	if opts.DedupBatch <= 0 {
		opts.DedupBatch = defaultDedupBatch
	}

	if opts.LookupConcurrency <= 0 {
		opts.LookupConcurrency = defaultLookupConcurrency
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if renderer == nil {
		renderer = NewRenderer("")
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Service{
		billing:           billing,
		directory:         directory,
		sendLog:           sendLog,
		gateway:           gateway,
		renderer:          renderer,
		schedule:          opts.Schedule,
		gate:              opts.Gate,
		loc:               opts.Location,
		interval:          opts.Interval,
		sendTimeout:       opts.SendTimeout,
		pageSize:          opts.PageSize,
		maxPages:          opts.MaxPages,
		dedupBatch:        opts.DedupBatch,
		lookupConcurrency: opts.LookupConcurrency,
		locker:            opts.Locker,
		logger:            opts.Logger,
		now:               opts.Now,
		progress:          tracker{p: Progress{State: StateIdle}},
		baseCtx:           baseCtx,
		cancel:            cancel,
	}
}

// DefaultInterval is the pause between two gateway sends.
func DefaultInterval() time.Duration { return defaultInterval }

func (s *Service) Schedule() Schedule { return s.schedule }

func (s *Service) Interval() time.Duration { return s.interval }

// Ticket acknowledges a background dispatch.
type Ticket struct {
	Planned           int           `json:"planned"`
	EstimatedDuration time.Duration `json:"-"`
	EstimatedSeconds  int64         `json:"estimated_duration_seconds"`
	Summary           *Summary      `json:"summary"`
}

func (s *Service) validate() error {
	if s.billing == nil || s.directory == nil || s.sendLog == nil || s.gateway == nil {
		return ErrNotConfigured
	}

	return nil
}

// Run executes one full reminder run and blocks until every candidate has been dispatched.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	if err := s.validate(); err != nil {
		metrics.Runs.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	now := s.now()
	if !s.gate.Allowed(now) {
		return s.blocked(now), nil
	}

	if !s.busy.CompareAndSwap(false, true) {
		metrics.Runs.WithLabelValues(metrics.OutcomeOverlapping).Inc()
		return &Summary{AlreadyRunning: true, StartedAt: now, Stages: []StageSummary{}}, nil
	}
	defer s.busy.Store(false)

	release, ok, err := s.lock(ctx)
	if err != nil {
		metrics.Runs.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	if !ok {
		metrics.Runs.WithLabelValues(metrics.OutcomeOverlapping).Inc()
		return &Summary{AlreadyRunning: true, StartedAt: now, Stages: []StageSummary{}}, nil
	}
	defer release()

	plan := s.plan(ctx, now)

	if err := s.dispatch(ctx, plan); err != nil {
		metrics.Runs.WithLabelValues(metrics.OutcomeFailed).Inc()
		return plan.Summary, err
	}

	metrics.Runs.WithLabelValues(metrics.OutcomeCompleted).Inc()

	return plan.Summary, nil
}

// Start plans synchronously and dispatches in the background. The returned
// ticket holds the planned count and a duration estimate; final outcomes are
// only observable through the send log and Progress.
func (s *Service) Start(ctx context.Context) (*Ticket, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	if !s.gate.Allowed(now) {
		return &Ticket{Summary: s.blocked(now)}, nil
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrDispatchInProgress
	}

	release, ok, err := s.lock(ctx)
	if err != nil {
		s.busy.Store(false)
		return nil, err
	}

	if !ok {
		s.busy.Store(false)
		return nil, ErrDispatchInProgress
	}

	plan := s.plan(ctx, now)
	planned := len(plan.Candidates)
	estimate := s.Estimate(planned)

	ticket := &Ticket{
		Planned:           planned,
		EstimatedDuration: estimate,
		EstimatedSeconds:  int64(estimate.Seconds()),
		Summary:           plan.Summary.clone(),
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)
		defer release()

		if err := s.dispatch(s.baseCtx, plan); err != nil {
			metrics.Runs.WithLabelValues(metrics.OutcomeFailed).Inc()
			s.logger.Error("background dispatch aborted", "error", err)

			return
		}

		metrics.Runs.WithLabelValues(metrics.OutcomeCompleted).Inc()
		s.logger.Info("background dispatch finished",
			"sent", plan.Summary.Sent,
			"failed", plan.Summary.Failed,
			"skipped", plan.Summary.Skipped,
		)
	}()

	return ticket, nil
}

// Preview plans a run without sending anything.
func (s *Service) Preview(ctx context.Context) (*Plan, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	plan := s.plan(ctx, now)
	plan.Summary.BlockedByBusinessHours = !s.gate.Allowed(now)

	return plan, nil
}

// Estimate returns how long dispatching n candidates takes at the configured interval.
func (s *Service) Estimate(n int) time.Duration {
	if n <= 1 {
		return 0
	}

	return time.Duration(n-1) * s.interval
}

func (s *Service) Progress() Progress {
	return s.progress.snapshot()
}

func (s *Service) Log(ctx context.Context, filter LogFilter) ([]*SendLogRecord, error) {
	if s.sendLog == nil {
		return nil, ErrNotConfigured
	}

	return s.sendLog.List(ctx, filter)
}

// Close stops any background dispatch at its next wait and waits for it to return.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) blocked(now time.Time) *Summary {
	s.logger.Info("reminder run blocked outside business hours",
		"hour", now.In(s.loc).Hour(),
		"start_hour", s.gate.StartHour,
		"end_hour", s.gate.EndHour,
	)
	metrics.Runs.WithLabelValues(metrics.OutcomeBlocked).Inc()

	return &Summary{BlockedByBusinessHours: true, StartedAt: now, Stages: []StageSummary{}}
}

func (s *Service) lock(ctx context.Context) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}

	release, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquiring run lock: %w", err)
	}

	if !ok {
		s.logger.Warn("another reminder run holds the lock")
		return nil, false, nil
	}

	return release, true, nil
}
