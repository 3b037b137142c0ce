// Package engine owns the format-on-save pipeline: it receives events from
// the Lua side, snapshots the buffer, resolves and runs the configured
// formatter, reconciles the output against the snapshot, and applies the
// minimal edits back. Attempts are serialized on a single event loop so two
// saves can never interleave their buffer writes.
package engine

import (
	"context"
	"sync"
	"time"

	"nvfmt/logger"
	"nvfmt/snapshot"
	"nvfmt/text"
	"nvfmt/types"

	"github.com/neovim/go-client/nvim"
)

// Buffer is the engine's view of the editor buffer. *buffer.NvimBuffer is
// the real implementation; tests substitute an in-memory one.
type Buffer interface {
	SetClient(n *nvim.Nvim)
	Sync() error
	Path() string
	Filetype() string
	Dir() string
	Text() string
	Selections() []text.Range
	ChangedTick() int
	CurrentChangedTick() (int, error)
	ApplyPatch(p *text.Patch) error
	NotifyError(msg string)
	NotifyDone(editCount int)
}

// FormatterSource resolves which formatter applies to a buffer.
// config.Resolver is the real implementation.
type FormatterSource interface {
	FormatterFor(startDir, filetype string) (*types.FormatterSpec, error)
	Invalidate()
}

// FormatRunner executes a resolved formatter. runner.Runner is the real
// implementation.
type FormatRunner interface {
	Run(ctx context.Context, spec *types.FormatterSpec, dir string, input string) (*types.RunResult, error)
}

type EngineConfig struct {
	FormatTimeout time.Duration
	CacheSize     int // buffer paths retained in the snapshot cache (0 = default)
}

type Engine struct {
	n      *nvim.Nvim
	buffer Buffer
	source FormatterSource
	runner FormatRunner
	cache  *snapshot.Store

	mu        sync.RWMutex
	eventChan chan Event

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once

	config EngineConfig
}

func NewEngine(buffer Buffer, source FormatterSource, runner FormatRunner, config EngineConfig) *Engine {
	if config.FormatTimeout <= 0 {
		config.FormatTimeout = 5 * time.Second
	}

	return &Engine{
		n:         nil, // Will be set later via SetNvim
		buffer:    buffer,
		source:    source,
		runner:    runner,
		cache:     snapshot.NewStore(config.CacheSize),
		eventChan: make(chan Event, 16),
		config:    config,
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	// Create main context for engine lifecycle
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop gracefully shuts down the engine and cleans up all resources
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")

		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		close(e.eventChan)

		logger.Info("engine stopped")
	})
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic recovered: %v", r)
			e.eventLoop(e.mainCtx) // Restart the event loop
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-e.eventChan:
			if !ok {
				return
			}

			e.mu.RLock()
			stopped := e.stopped
			e.mu.RUnlock()

			if stopped {
				return
			}

			// Wrap event handling in its own recovery so one failed format
			// attempt never kills the loop.
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	logger.Debug("handle event: %v", event.Type)

	switch event.Type {
	case EventFormat:
		e.handleFormat()
	case EventConfigReload:
		e.source.Invalidate()
		logger.Info("formatter config cache invalidated")
	}
}

// SetNvim sets a new nvim instance for the engine (used for socket connections)
func (e *Engine) SetNvim(n *nvim.Nvim) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Don't change if stopped
	if e.stopped {
		return
	}

	e.n = n
	e.buffer.SetClient(n)

	// Re-register the event handler for the new connection
	if err := e.n.RegisterHandler("nvfmt_event", func(n *nvim.Nvim, event string) {
		e.mu.RLock()
		stopped := e.stopped
		e.mu.RUnlock()

		if stopped {
			return
		}

		eventType := EventTypeFromString(event)
		if eventType != "" {
			select {
			case e.eventChan <- Event{Type: eventType, Data: nil}:
			case <-e.mainCtx.Done():
				return
			}
		}
	}); err != nil {
		logger.Error("error registering event handler for new connection: %v", err)
	}
}
