// Package recorder keeps a history of telemetry ticks. Each record is
// buffered and periodically flushed to the store, and forwarded to an
// optional time-series sink as it arrives.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/motodash/cluster/internal/logging"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/queue"
	"github.com/motodash/cluster/internal/storage"
	"github.com/motodash/cluster/internal/telemetry"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Defaults used when Config fields are zero.
const (
	DefaultFlushInterval = 5 * time.Second
	DefaultBufferSize    = 600
)

// Sink receives every record as it is produced.
type Sink interface {
	WriteRecord(ctx context.Context, r telemetry.Record) error
}

// Config tunes the flush cadence and buffer bound.
type Config struct {
	FlushInterval time.Duration
	BufferSize    int
}

// Dependencies holds all dependencies for the recorder service
type Dependencies struct {
	Simulator  *telemetry.Simulator
	Store      storage.Store
	Sink       Sink
	LogManager *logging.SlogManager
	Meter      metric.Meter
	StatusPath string
}

// Status is the recorder state written to the status file.
type Status struct {
	Running           bool      `json:"running"`
	Buffered          int       `json:"buffered"`
	Recorded          int64     `json:"recorded"`
	Flushed           int64     `json:"flushed"`
	Dropped           int64     `json:"dropped"`
	LastFlush         time.Time `json:"lastFlush"`
	LastFlushDuration float64   `json:"lastFlushDurationMs"`
}

type metrics struct {
	recorded    metric.Int64Counter
	flushed     metric.Int64Counter
	dropped     metric.Int64Counter
	flushErrors metric.Int64Counter
	bufferLen   metric.Int64ObservableGauge
}

// Service buffers telemetry samples and flushes them to the store.
type Service struct {
	deps    Dependencies
	cfg     Config
	buffer  *queue.Queue[model.TelemetrySample]
	metrics metrics

	recorded atomic.Int64
	flushed  atomic.Int64
	dropped  atomic.Int64

	observeOnce sync.Once
	flushMu     sync.Mutex
	lastFlush   time.Time
	lastFlushMs float64

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new recorder service
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if deps.Simulator == nil || deps.Store == nil {
		return nil, fmt.Errorf("recorder needs a simulator and a store")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}

	s := &Service{
		deps:   deps,
		cfg:    cfg,
		buffer: queue.NewBounded[model.TelemetrySample](cfg.BufferSize),
	}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) initMetrics() error {
	var err error
	m := s.deps.Meter

	s.metrics.recorded, err = m.Int64Counter("recorder.samples.recorded",
		metric.WithDescription("Telemetry samples captured"))
	if err != nil {
		return fmt.Errorf("failed to create recorded counter: %w", err)
	}
	s.metrics.flushed, err = m.Int64Counter("recorder.samples.flushed",
		metric.WithDescription("Telemetry samples written to the store"))
	if err != nil {
		return fmt.Errorf("failed to create flushed counter: %w", err)
	}
	s.metrics.dropped, err = m.Int64Counter("recorder.samples.dropped",
		metric.WithDescription("Samples discarded because the buffer was full"))
	if err != nil {
		return fmt.Errorf("failed to create dropped counter: %w", err)
	}
	s.metrics.flushErrors, err = m.Int64Counter("recorder.flush.errors",
		metric.WithDescription("Failed store flushes"))
	if err != nil {
		return fmt.Errorf("failed to create flush error counter: %w", err)
	}
	s.metrics.bufferLen, err = m.Int64ObservableGauge("recorder.buffer.length",
		metric.WithDescription("Samples waiting to be flushed"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.buffer.Len()))
			return nil
		}))
	if err != nil {
		return fmt.Errorf("failed to create buffer gauge: %w", err)
	}
	return nil
}

// SampleFromRecord converts a telemetry record into a storable sample.
func SampleFromRecord(r telemetry.Record) model.TelemetrySample {
	return model.TelemetrySample{
		Time:         r.Timestamp,
		Speed:        r.Speed,
		RPM:          r.RPM,
		Gear:         r.Gear,
		Power:        r.Power,
		DrivingMode:  r.DrivingMode.String(),
		FuelLevel:    r.FuelLevel,
		FuelRange:    r.FuelRange,
		Temperature:  r.Temperature,
		TripDistance: r.TripDistance,
		Odometer:     r.Odometer,
		RegenBraking: r.RegenBraking,
	}
}

// IsRunning returns whether the recorder is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Record buffers one record and forwards it to the sink. Records arriving
// while the service is stopped are ignored.
func (s *Service) Record(r telemetry.Record) {
	if !s.IsRunning() {
		return
	}
	ctx := context.Background()

	dropped := s.buffer.Push(SampleFromRecord(r))
	s.recorded.Add(1)
	s.metrics.recorded.Add(ctx, 1)
	if dropped > 0 {
		s.dropped.Add(int64(dropped))
		s.metrics.dropped.Add(ctx, int64(dropped))
	}

	if s.deps.Sink != nil {
		if err := s.deps.Sink.WriteRecord(ctx, r); err != nil {
			s.deps.LogManager.Logger().Debug("Sink write failed", "error", err)
		}
	}
}

// Flush writes every buffered sample to the store. On failure the samples
// are put back, subject to the buffer bound.
func (s *Service) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if s.buffer.Empty() {
		return nil
	}

	ctx := context.Background()
	items := s.buffer.GetAndEmpty()
	start := time.Now()
	if err := s.deps.Store.RecordSamples(items); err != nil {
		s.buffer.Push(items...)
		s.metrics.flushErrors.Add(ctx, 1)
		return fmt.Errorf("failed to flush %d samples: %w", len(items), err)
	}

	s.flushed.Add(int64(len(items)))
	s.metrics.flushed.Add(ctx, int64(len(items)))
	s.lastFlush = time.Now()
	s.lastFlushMs = float64(time.Since(start).Microseconds()) / 1000
	return nil
}

// GetStatus returns the current recorder status.
func (s *Service) GetStatus() Status {
	s.flushMu.Lock()
	lastFlush, lastMs := s.lastFlush, s.lastFlushMs
	s.flushMu.Unlock()

	return Status{
		Running:           s.IsRunning(),
		Buffered:          s.buffer.Len(),
		Recorded:          s.recorded.Load(),
		Flushed:           s.flushed.Load(),
		Dropped:           s.dropped.Load(),
		LastFlush:         lastFlush,
		LastFlushDuration: lastMs,
	}
}

// Start subscribes to the simulator and starts the flush goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.observeOnce.Do(func() {
		s.deps.Simulator.Observe(s.Record)
	})

	go s.flushLoop(s.stopChan, s.done)
	return nil
}

func (s *Service) flushLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	logger := s.deps.LogManager.Logger()
	logger.Debug("Starting recorder goroutine", "interval", s.cfg.FlushInterval)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				logger.Error("Error flushing telemetry samples", "error", err)
			}
			s.writeStatus()
		}
	}
}

// writeStatus overwrites the status file when one is configured.
func (s *Service) writeStatus() {
	if s.deps.StatusPath == "" {
		return
	}
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(s.deps.StatusPath, data, 0o644); err != nil {
		s.deps.LogManager.Logger().Error("Error writing status file", "error", err)
	}
}

// Stop stops the flush goroutine and writes what is still buffered.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	err := s.Flush()
	s.writeStatus()
	return err
}
