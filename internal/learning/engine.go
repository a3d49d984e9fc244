package learning

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/observability"
)

// Config holds learning engine configuration.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Engine records learning events and serves recommendations derived from
// them. Intake goes through a buffered channel so instrumented request
// paths never block on the store; a background goroutine batches events
// into the in-memory store on a flush interval.
type Engine struct {
	config *Config
	logger *logrus.Logger

	buffer   chan *Event
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.RWMutex
	events  []*Event
	dropped int64
	stopped bool
}

// NewEngine creates the engine and, when enabled, starts its intake loop.
func NewEngine(config *Config, logger *logrus.Logger) *Engine {
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}

	e := &Engine{
		config:   config,
		logger:   logger,
		buffer:   make(chan *Event, config.BufferSize),
		stopChan: make(chan struct{}),
	}

	if config.Enabled {
		e.wg.Add(1)
		go e.processEvents()
	}

	return e
}

// Record validates and enqueues an event. The ID and timestamp are assigned
// here; a full buffer drops the event rather than blocking the caller.
func (e *Engine) Record(event *Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	e.mu.RLock()
	enabled := e.config.Enabled && !e.stopped
	e.mu.RUnlock()
	if !enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case e.buffer <- event:
		observability.LearningEvents.WithLabelValues(string(event.Type)).Inc()
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		e.logger.Warn("Learning event buffer full, dropping event")
	}
	return nil
}

// Stop drains the buffer and terminates the intake loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.config.Enabled || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	close(e.stopChan)
	e.wg.Wait()

	// Flush anything still buffered.
	for {
		select {
		case event := <-e.buffer:
			e.store(event)
		default:
			return
		}
	}
}

// Health reports the engine's intake state.
type Health struct {
	Status        string `json:"status"`
	Enabled       bool   `json:"enabled"`
	StoredEvents  int    `json:"storedEvents"`
	BufferedCount int    `json:"bufferedCount"`
	DroppedCount  int64  `json:"droppedCount"`
}

func (e *Engine) Health() Health {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := "ok"
	if !e.config.Enabled {
		status = "disabled"
	}
	return Health{
		Status:        status,
		Enabled:       e.config.Enabled,
		StoredEvents:  len(e.events),
		BufferedCount: len(e.buffer),
		DroppedCount:  e.dropped,
	}
}

func (e *Engine) processEvents() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*Event, 0, 100)

	for {
		select {
		case event := <-e.buffer:
			batch = append(batch, event)
			if len(batch) >= 100 {
				e.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				e.flush(batch)
				batch = batch[:0]
			}
		case <-e.stopChan:
			if len(batch) > 0 {
				e.flush(batch)
			}
			return
		}
	}
}

func (e *Engine) flush(batch []*Event) {
	e.mu.Lock()
	e.events = append(e.events, batch...)
	e.mu.Unlock()

	e.logger.WithField("count", len(batch)).Debug("Flushed learning events")
}

func (e *Engine) store(event *Event) {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
}

// snapshot returns the stored events for on-demand aggregation.
func (e *Engine) snapshot() []*Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Event, len(e.events))
	copy(out, e.events)
	return out
}
