// Package dispatch turns bus notifications into agent runs. The
// dispatcher listens for new-message and resolved-request notifications,
// polls for anything a lost notification left behind, and reconciles
// expired human requests and stuck agents on a timer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/events"
	"github.com/openclaw/openclaw/internal/events/bus"
	"github.com/openclaw/openclaw/internal/runner"
)

// Common errors
var (
	ErrAlreadyRunning = errors.New("dispatcher is already running")
	ErrNotRunning     = errors.New("dispatcher is not running")
)

// pollBatchSize bounds how many pending agents one poll tick dispatches.
const pollBatchSize = 10

// TaskRunner executes one agent turn. *runner.Runner satisfies it.
type TaskRunner interface {
	Run(ctx context.Context, req runner.RunRequest) (*runner.RunResult, error)
}

// Config holds dispatcher tuning.
type Config struct {
	MaxConcurrent     int           // max dispatches holding a permit at once
	PollInterval      time.Duration // fallback poll for unprocessed inboxes
	ReconcileInterval time.Duration // expiry + stuck-agent sweep cadence
	StuckAgentTimeout time.Duration // working longer than this gets reset
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     32,
		PollInterval:      5 * time.Second,
		ReconcileInterval: 60 * time.Second,
		StuckAgentTimeout: 30 * time.Minute,
	}
}

// Stats is a point-in-time snapshot of the dispatcher counters.
type Stats struct {
	Dispatched    int64     `json:"dispatched"`
	Skipped       int64     `json:"skipped"`
	Errors        int64     `json:"errors"`
	InFlight      int64     `json:"in_flight"`
	MaxConcurrent int       `json:"max_concurrent"`
	StartedAt     time.Time `json:"started_at"`
}

// Dispatcher routes notifications to agent runs under a global
// concurrency cap with per-agent dedup.
type Dispatcher struct {
	svc      *service.Service
	runner   TaskRunner
	eventBus bus.EventBus
	logger   *logger.Logger
	config   Config

	sem      *semaphore.Weighted
	flightMu sync.Mutex
	flight   map[string]struct{}

	// Statistics
	dispatched int64
	skipped    int64
	errCount   int64
	inFlight   int64

	subs []bus.Subscription

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a dispatcher. Zero config fields fall back to defaults.
func New(svc *service.Service, run TaskRunner, eventBus bus.EventBus, log *logger.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = def.ReconcileInterval
	}
	if cfg.StuckAgentTimeout <= 0 {
		cfg.StuckAgentTimeout = def.StuckAgentTimeout
	}
	return &Dispatcher{
		svc:      svc,
		runner:   run,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "dispatcher")),
		config:   cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		flight:   make(map[string]struct{}),
	}
}

// Start subscribes the notification listeners and begins the poll and
// reconcile loops.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.startedAt = time.Now().UTC()
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	if err := d.subscribe(); err != nil {
		d.unsubscribe()
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		return err
	}

	d.logger.Info("dispatcher starting",
		zap.Int("max_concurrent", d.config.MaxConcurrent),
		zap.Duration("poll_interval", d.config.PollInterval),
		zap.Duration("reconcile_interval", d.config.ReconcileInterval))

	d.wg.Add(2)
	go d.pollLoop(ctx)
	go d.reconcileLoop(ctx)

	return nil
}

// Stop removes the listeners and stops the loops. In-flight runners are
// not waited for; they own their own lifetime.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	d.unsubscribe()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
	return nil
}

// IsRunning returns true if the dispatcher is active.
func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	started := d.startedAt
	d.mu.RUnlock()
	return Stats{
		Dispatched:    atomic.LoadInt64(&d.dispatched),
		Skipped:       atomic.LoadInt64(&d.skipped),
		Errors:        atomic.LoadInt64(&d.errCount),
		InFlight:      atomic.LoadInt64(&d.inFlight),
		MaxConcurrent: d.config.MaxConcurrent,
		StartedAt:     started,
	}
}

func (d *Dispatcher) subscribe() error {
	for _, it := range []struct {
		subject string
		handler bus.EventHandler
	}{
		{events.SubjectNewMessage, d.handleNewMessage},
		{events.SubjectHumanRequestResolved, d.handleRequestResolved},
		{events.SubjectTaskStatusChanged, d.handleStatusChanged},
	} {
		sub, err := d.eventBus.Subscribe(it.subject, it.handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", it.subject, err)
		}
		d.subs = append(d.subs, sub)
	}
	return nil
}

func (d *Dispatcher) unsubscribe() {
	for _, sub := range d.subs {
		if err := sub.Unsubscribe(); err != nil {
			d.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	}
	d.subs = nil
}

// handleNewMessage dispatches the recipient of a freshly created message.
// Only agent recipients are dispatchable; human recipients wait in their
// inbox. The publisher's context may already be cancelled by the time the
// handler runs, so dispatch detaches from it.
func (d *Dispatcher) handleNewMessage(_ context.Context, event *bus.Event) error {
	if eventString(event, "recipient_type") != string(models.ActorAgent) {
		return nil
	}
	agentID := eventString(event, "recipient_id")
	if agentID == "" {
		return nil
	}
	d.Dispatch(context.Background(), agentID, eventString(event, "team_id"), "new_message")
	return nil
}

// handleRequestResolved wakes the agent whose human request was answered.
func (d *Dispatcher) handleRequestResolved(_ context.Context, event *bus.Event) error {
	agentID := eventString(event, "agent_id")
	if agentID == "" {
		return nil
	}
	d.Dispatch(context.Background(), agentID, eventString(event, "team_id"), "human_request_resolved")
	return nil
}

// handleStatusChanged traces task flow. Status changes never trigger a
// dispatch, and the control plane already mirrors them onto the team
// feed, so there is nothing to re-publish.
func (d *Dispatcher) handleStatusChanged(_ context.Context, event *bus.Event) error {
	d.logger.Debug("task status changed",
		zap.Any("task_id", event.Data["task_id"]),
		zap.String("old_status", eventString(event, "old_status")),
		zap.String("new_status", eventString(event, "new_status")))
	return nil
}

// Dispatch runs one agent if it is idle. Safe to call concurrently for
// the same agent: the in-flight set serialises the dispatch window and
// the working flip serialises the run itself.
func (d *Dispatcher) Dispatch(ctx context.Context, agentID, teamID, reason string) {
	d.flightMu.Lock()
	if _, busy := d.flight[agentID]; busy {
		d.flightMu.Unlock()
		atomic.AddInt64(&d.skipped, 1)
		d.logger.Debug("dispatch skipped, agent already in flight",
			zap.String("agent_id", agentID), zap.String("reason", reason))
		return
	}
	d.flight[agentID] = struct{}{}
	d.flightMu.Unlock()
	defer d.clearFlight(agentID)

	if err := d.sem.Acquire(ctx, 1); err != nil {
		atomic.AddInt64(&d.errCount, 1)
		d.logger.Warn("dispatch aborted waiting for a permit",
			zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	// Released when the runner goroutine is scheduled, not when the run
	// completes. The permit bounds concurrent dispatch windows; running
	// agents are bounded by their working status.
	defer d.sem.Release(1)

	agent, err := d.svc.GetAgent(ctx, agentID)
	if err != nil {
		atomic.AddInt64(&d.errCount, 1)
		d.logger.Error("dispatch failed to reload agent",
			zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	if agent.Status != models.AgentStatusIdle {
		atomic.AddInt64(&d.skipped, 1)
		d.logger.Debug("dispatch skipped, agent not idle",
			zap.String("agent_id", agentID),
			zap.String("status", string(agent.Status)))
		return
	}
	if teamID == "" {
		teamID = agent.TeamID
	}

	if err := d.svc.Repository().UpdateAgentStatus(ctx, agentID, models.AgentStatusWorking); err != nil {
		atomic.AddInt64(&d.errCount, 1)
		d.logger.Error("dispatch failed to mark agent working",
			zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	d.publishStatusChange(ctx, agentID, teamID, reason)

	var taskID *int64
	task, err := d.svc.Repository().FindActiveTaskForAgent(ctx, agentID)
	switch {
	case err == nil:
		taskID = &task.ID
	case errors.Is(err, models.ErrNotFound):
		// No in-progress task; the agent runs from its inbox alone.
	default:
		atomic.AddInt64(&d.errCount, 1)
		d.logger.Error("dispatch failed to find active task",
			zap.String("agent_id", agentID), zap.Error(err))
		d.resetToIdle(agentID)
		return
	}

	go d.runAgent(agentID, teamID, taskID, reason)
	atomic.AddInt64(&d.dispatched, 1)

	fields := []zap.Field{
		zap.String("agent_id", agentID),
		zap.String("team_id", teamID),
		zap.String("reason", reason),
	}
	if taskID != nil {
		fields = append(fields, zap.Int64("task_id", *taskID))
	}
	d.logger.Info("agent dispatched", fields...)
}

// runAgent executes one runner turn. The runner owns the agent from
// here: ending the session flips it back to idle.
func (d *Dispatcher) runAgent(agentID, teamID string, taskID *int64, reason string) {
	atomic.AddInt64(&d.inFlight, 1)
	defer atomic.AddInt64(&d.inFlight, -1)

	result, err := d.runner.Run(context.Background(), runner.RunRequest{
		AgentID: agentID,
		TeamID:  teamID,
		TaskID:  taskID,
	})
	if err != nil {
		atomic.AddInt64(&d.errCount, 1)
		d.logger.Error("agent run failed",
			zap.String("agent_id", agentID),
			zap.String("reason", reason),
			zap.Error(err))
		// A failure before the session opened leaves the agent working
		// with nothing to end it; a failure after leaves it idle already.
		d.resetToIdle(agentID)
		return
	}

	d.logger.Info("agent run finished",
		zap.String("agent_id", agentID),
		zap.String("session_id", result.SessionID),
		zap.String("classification", result.Classification))
}

// resetToIdle returns a working agent to idle after a failed dispatch.
// Reload-then-write: an agent some other actor moved past working is
// left alone.
func (d *Dispatcher) resetToIdle(agentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agent, err := d.svc.GetAgent(ctx, agentID)
	if err != nil {
		d.logger.Error("failed to reload agent for reset",
			zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	if agent.Status != models.AgentStatusWorking {
		return
	}
	if err := d.svc.Repository().UpdateAgentStatus(ctx, agentID, models.AgentStatusIdle); err != nil {
		d.logger.Error("failed to reset agent to idle",
			zap.String("agent_id", agentID), zap.Error(err))
	}
}

// publishStatusChange mirrors the working flip onto the team feed.
// Best-effort: a publish failure never fails the dispatch.
func (d *Dispatcher) publishStatusChange(ctx context.Context, agentID, teamID, reason string) {
	if teamID == "" {
		return
	}
	event := bus.NewEvent(events.AgentStatusChanged, "dispatcher", map[string]interface{}{
		"agent_id": agentID,
		"status":   string(models.AgentStatusWorking),
		"reason":   reason,
	})
	if err := d.eventBus.Publish(ctx, events.BuildTeamFeedSubject(teamID), event); err != nil {
		d.logger.Debug("failed to publish agent status change",
			zap.String("agent_id", agentID), zap.Error(err))
	}
}

// pollLoop catches agents whose notification was lost: any idle agent
// with unprocessed messages gets dispatched on the next tick.
func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	pending, err := d.svc.Repository().ListPendingDispatches(ctx, pollBatchSize)
	if err != nil {
		d.logger.Error("pending dispatch poll failed", zap.Error(err))
		return
	}
	for _, p := range pending {
		d.Dispatch(ctx, p.AgentID, p.TeamID, "poll")
	}
}

// reconcileLoop sweeps expired human requests and agents stuck working.
func (d *Dispatcher) reconcileLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.reconcile(ctx)
		}
	}
}

func (d *Dispatcher) reconcile(ctx context.Context) {
	expired, err := d.svc.ExpireStaleRequests(ctx)
	if err != nil {
		d.logger.Error("human request expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		d.logger.Info("expired stale human requests", zap.Int("count", expired))
	}

	cutoff := time.Now().UTC().Add(-d.config.StuckAgentTimeout)
	reset, err := d.svc.Repository().ResetStuckAgents(ctx, cutoff)
	if err != nil {
		d.logger.Error("stuck agent reset failed", zap.Error(err))
	} else if reset > 0 {
		d.logger.Warn("reset stuck agents to idle",
			zap.Int64("count", reset),
			zap.Time("cutoff", cutoff))
	}
}

func (d *Dispatcher) clearFlight(agentID string) {
	d.flightMu.Lock()
	delete(d.flight, agentID)
	d.flightMu.Unlock()
}

func eventString(event *bus.Event, key string) string {
	if v, ok := event.Data[key].(string); ok {
		return v
	}
	return ""
}
