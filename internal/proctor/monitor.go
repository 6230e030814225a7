package proctor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrMonitorStopped is returned for work submitted to a stopped monitor.
var ErrMonitorStopped = errors.New("session monitor stopped")

// ViolationReport is the payload delivered to a ViolationSink.
type ViolationReport struct {
	SessionID string        `json:"session_id"`
	Type      ViolationType `json:"type"`
	Severity  Severity      `json:"severity"`
	Count     int           `json:"count"`
	Detail    string        `json:"detail"`
	Timestamp time.Time     `json:"timestamp"`
}

// ViolationSink receives violation reports. Delivery is best effort.
type ViolationSink interface {
	Report(ctx context.Context, report ViolationReport) error
}

// LiveStatus is the candidate-safe view of a running session.
type LiveStatus struct {
	SessionID     string    `json:"session_id"`
	Active        bool      `json:"active"`
	ProviderReady bool      `json:"provider_ready"`
	FaceOK        bool      `json:"face_ok"`
	FaceCount     int       `json:"face_count"`
	Gaze          GazeZone  `json:"gaze"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MonitorConfig controls the polling task.
type MonitorConfig struct {
	TickInterval       time.Duration
	CheckpointInterval time.Duration
	SinkTimeout        time.Duration
	SinkBuffer         int
	Backoff            BackoffConfig
}

// DefaultMonitorConfig ticks every 250ms and checkpoints every 3s.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickInterval:       250 * time.Millisecond,
		CheckpointInterval: 3 * time.Second,
		SinkTimeout:        2 * time.Second,
		SinkBuffer:         64,
		Backoff:            DefaultBackoffConfig(),
	}
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	def := DefaultMonitorConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = def.CheckpointInterval
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = def.SinkTimeout
	}
	if c.SinkBuffer <= 0 {
		c.SinkBuffer = def.SinkBuffer
	}
	return c
}

// MonitorHooks receive monitor telemetry. Every field is optional.
type MonitorHooks struct {
	OnTick          func(latency time.Duration)
	OnSkippedTick   func()
	OnViolation     func(ev ViolationEvent)
	OnReportDropped func()
	OnReportFailed  func(err error)
}

// MonitorDeps wires a monitor to its collaborators.
type MonitorDeps struct {
	Engine     *Engine
	Detector   *Detector
	Aggregator *Aggregator
	Provider   LandmarkProvider
	Sink       ViolationSink
	// Checkpoint receives a copy of the state on every checkpoint interval.
	// It runs on the monitor goroutine and must not block.
	Checkpoint func(state SessionState)
	Hooks      MonitorHooks
	Logger     zerolog.Logger
	Clock      func() time.Time
}

type tickResult struct {
	metrics FrameMetrics
	latency time.Duration
}

type request struct {
	fn   func(state *SessionState)
	err  error
	done chan struct{}
}

// Monitor runs the detection loop of one session. The monitor goroutine is
// the only writer of the session state; other goroutines reach it through
// the mailbox.
type Monitor struct {
	cfg        MonitorConfig
	engine     *Engine
	detector   *Detector
	aggregator *Aggregator
	provider   LandmarkProvider
	sink       ViolationSink
	checkpoint func(SessionState)
	hooks      MonitorHooks
	logger     zerolog.Logger
	now        func() time.Time

	state      *SessionState
	typeCounts map[ViolationType]int

	inFlight atomic.Bool
	ready    atomic.Bool
	status   atomic.Pointer[LiveStatus]

	results chan tickResult
	mailbox chan *request
	reports chan ViolationReport

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	final   SessionState
}

// NewMonitor builds a monitor that takes ownership of state. Nil engine,
// detector or aggregator fall back to defaults.
func NewMonitor(state *SessionState, cfg MonitorConfig, deps MonitorDeps) *Monitor {
	cfg = cfg.withDefaults()
	if deps.Engine == nil {
		deps.Engine = NewEngine(DefaultGeometryConfig())
	}
	if deps.Detector == nil {
		deps.Detector = NewDetector(DefaultDetectorConfig())
	}
	if deps.Aggregator == nil {
		deps.Aggregator = NewAggregator(DefaultAggregatorConfig())
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}

	counts := make(map[ViolationType]int)
	for _, ev := range state.Counters.Log {
		counts[ev.Type]++
	}

	m := &Monitor{
		cfg:        cfg,
		engine:     deps.Engine,
		detector:   deps.Detector,
		aggregator: deps.Aggregator,
		provider:   deps.Provider,
		sink:       deps.Sink,
		checkpoint: deps.Checkpoint,
		hooks:      deps.Hooks,
		logger:     deps.Logger.With().Str("component", "session_monitor").Str("session_id", state.SessionID).Logger(),
		now:        deps.Clock,
		state:      state,
		typeCounts: counts,
		results:    make(chan tickResult, 1),
		mailbox:    make(chan *request),
		reports:    make(chan ViolationReport, cfg.SinkBuffer),
		done:       make(chan struct{}),
	}
	m.status.Store(&LiveStatus{SessionID: state.SessionID, Gaze: GazeCenter, UpdatedAt: m.now()})
	return m
}

// Start launches the polling loop. It may be called once.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("session monitor already started")
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.publishStatus(m.state.LastMetrics, true)

	go m.dispatch()
	go m.warmUp()
	go m.run()

	m.logger.Info().Dur("tick_interval", m.cfg.TickInterval).Msg("session monitor started")
	return nil
}

// Stop cancels the polling loop, waits for it to exit, releases the provider
// and returns the final state. Later calls return the same state.
func (m *Monitor) Stop() SessionState {
	m.mu.Lock()
	if !m.started {
		m.started = true
		m.final = m.state.Clone()
		m.closeProvider()
		m.publishStatus(m.state.LastMetrics, false)
		close(m.reports)
		close(m.done)
		m.mu.Unlock()
		return m.final
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-m.done
	return m.final
}

// Done is closed once the monitor has stopped.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Status returns the latest live status.
func (m *Monitor) Status() LiveStatus {
	return *m.status.Load()
}

// RecordTabSwitch records a focus-loss report.
func (m *Monitor) RecordTabSwitch(ctx context.Context) (ViolationEvent, error) {
	var out ViolationEvent
	err := m.do(ctx, func(state *SessionState) {
		out = m.aggregator.RecordTabSwitch(&state.Counters, m.now())
		m.emit(out)
	})
	return out, err
}

// RecordAIAnswer records an authorship verdict. The bool result reports
// whether the verdict was strong enough to be logged.
func (m *Monitor) RecordAIAnswer(ctx context.Context, aiGenerated bool, confidence int, reasoning string) (ViolationEvent, bool, error) {
	var (
		out      ViolationEvent
		recorded bool
	)
	err := m.do(ctx, func(state *SessionState) {
		out, recorded = m.aggregator.RecordAIAnswer(&state.Counters, aiGenerated, confidence, reasoning, m.now())
		if recorded {
			m.emit(out)
		}
	})
	return out, recorded, err
}

// RecordVoiceAnomaly records a multi-speaker report.
func (m *Monitor) RecordVoiceAnomaly(ctx context.Context, speakers int, confidence float64) (ViolationEvent, error) {
	var out ViolationEvent
	err := m.do(ctx, func(state *SessionState) {
		out = m.aggregator.RecordVoiceAnomaly(&state.Counters, speakers, confidence, m.now())
		m.emit(out)
	})
	return out, err
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot(ctx context.Context) (SessionState, error) {
	var out SessionState
	err := m.do(ctx, func(state *SessionState) {
		out = state.Clone()
	})
	return out, err
}

func (m *Monitor) do(ctx context.Context, fn func(state *SessionState)) error {
	req := &request{fn: fn, done: make(chan struct{})}
	select {
	case m.mailbox <- req:
	case <-m.done:
		return ErrMonitorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return req.err
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	checkpoints := time.NewTicker(m.cfg.CheckpointInterval)
	defer checkpoints.Stop()

	defer m.finish()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if m.ctx.Err() != nil {
				return
			}
			m.startTick()
		case res := <-m.results:
			if m.ctx.Err() != nil {
				return
			}
			m.apply(res)
		case req := <-m.mailbox:
			if m.ctx.Err() != nil {
				req.err = ErrMonitorStopped
				close(req.done)
				return
			}
			req.fn(m.state)
			close(req.done)
		case <-checkpoints.C:
			if m.ctx.Err() != nil {
				return
			}
			if m.checkpoint != nil {
				m.checkpoint(m.state.Clone())
			}
		}
	}
}

func (m *Monitor) startTick() {
	if !m.inFlight.CompareAndSwap(false, true) {
		if m.hooks.OnSkippedTick != nil {
			m.hooks.OnSkippedTick()
		}
		return
	}

	at := m.now()
	go func() {
		frame := m.detect()
		metrics := m.engine.Analyze(frame, at)
		res := tickResult{metrics: metrics, latency: m.now().Sub(at)}
		select {
		case m.results <- res:
		case <-m.ctx.Done():
		}
	}()
}

// detect never fails: every error degrades to an empty frame.
func (m *Monitor) detect() LandmarkFrame {
	if m.provider == nil {
		return LandmarkFrame{}
	}
	frame, err := m.provider.Detect(m.ctx)
	if err != nil {
		if !errors.Is(err, ErrProviderUnavailable) && m.ctx.Err() == nil {
			m.logger.Debug().Err(err).Msg("landmark detection failed")
		}
		return LandmarkFrame{}
	}
	m.ready.Store(true)
	if frame == nil {
		return LandmarkFrame{}
	}
	return *frame
}

func (m *Monitor) apply(res tickResult) {
	defer m.inFlight.Store(false)

	if m.hooks.OnTick != nil {
		m.hooks.OnTick(res.latency)
	}
	for _, ev := range m.detector.Observe(m.state, res.metrics) {
		m.emit(m.aggregator.RecordViolation(&m.state.Counters, ev))
	}
	m.publishStatus(res.metrics, true)
}

// emit runs on the monitor goroutine after ev has been logged.
func (m *Monitor) emit(ev ViolationEvent) {
	m.typeCounts[ev.Type]++
	if m.hooks.OnViolation != nil {
		m.hooks.OnViolation(ev)
	}
	if m.sink == nil {
		return
	}
	report := ViolationReport{
		SessionID: m.state.SessionID,
		Type:      ev.Type,
		Severity:  ev.Severity,
		Count:     m.typeCounts[ev.Type],
		Detail:    ev.Details,
		Timestamp: ev.DetectedAt,
	}
	select {
	case m.reports <- report:
	default:
		if m.hooks.OnReportDropped != nil {
			m.hooks.OnReportDropped()
		}
		m.logger.Warn().Str("type", string(ev.Type)).Msg("violation report dropped: sink backlog full")
	}
}

func (m *Monitor) dispatch() {
	for report := range m.reports {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SinkTimeout)
		err := m.sink.Report(ctx, report)
		cancel()
		if err != nil {
			if m.hooks.OnReportFailed != nil {
				m.hooks.OnReportFailed(err)
			}
			m.logger.Warn().Err(err).Str("type", string(report.Type)).Msg("failed to deliver violation report")
		}
	}
}

func (m *Monitor) warmUp() {
	if m.provider == nil {
		return
	}
	if _, ok := m.provider.(Warmer); !ok {
		m.ready.Store(true)
		return
	}

	cfg := m.cfg.Backoff
	cfg.OnRetry = func(attempt int, err error) {
		m.logger.Debug().Int("attempt", attempt).Err(err).Msg("landmark provider not ready")
	}
	for m.ctx.Err() == nil && !m.ready.Load() {
		err := WarmUp(m.ctx, m.provider, cfg)
		if err == nil {
			m.ready.Store(true)
			return
		}
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Warn().Err(err).Msg("landmark provider still unavailable")
	}
}

func (m *Monitor) publishStatus(metrics FrameMetrics, active bool) {
	m.status.Store(&LiveStatus{
		SessionID:     m.state.SessionID,
		Active:        active,
		ProviderReady: m.ready.Load(),
		FaceOK:        metrics.FaceCount == 1,
		FaceCount:     metrics.FaceCount,
		Gaze:          metrics.Gaze,
		UpdatedAt:     m.now(),
	})
}

func (m *Monitor) finish() {
	m.final = m.state.Clone()
	close(m.reports)
	m.closeProvider()
	m.publishStatus(m.state.LastMetrics, false)
	m.logger.Info().Int("ticks", m.state.Ticks).Int("violations", len(m.state.Counters.Log)).Msg("session monitor stopped")
	close(m.done)
}

func (m *Monitor) closeProvider() {
	if m.provider == nil {
		return
	}
	if err := m.provider.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to close landmark provider")
	}
}
