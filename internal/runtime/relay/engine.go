package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
	"github.com/drblury/kafkarelay/internal/runtime/logging"
)

const (
	DefaultStartTimeout = 30 * time.Second
	DefaultCloseTimeout = 30 * time.Second
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// EngineConfig tunes the Watermill engine. Zero values use defaults.
type EngineConfig struct {
	// Middlewares replaces DefaultMiddlewares when non-nil.
	Middlewares []MiddlewareRegistration
	// Registerer receives router and relay metrics. Nil disables metrics.
	Registerer   prometheus.Registerer
	StartTimeout time.Duration
	CloseTimeout time.Duration
}

// WatermillEngine runs each topology on its own Watermill router with
// message.PassthroughHandler between subscriber and publisher.
type WatermillEngine struct {
	logger logging.ServiceLogger
	conf   EngineConfig
}

// NewWatermillEngine returns an engine logging through logger.
func NewWatermillEngine(logger logging.ServiceLogger, conf EngineConfig) (*WatermillEngine, error) {
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if conf.Middlewares == nil {
		conf.Middlewares = DefaultMiddlewares()
	}
	if conf.StartTimeout <= 0 {
		conf.StartTimeout = DefaultStartTimeout
	}
	if conf.CloseTimeout <= 0 {
		conf.CloseTimeout = DefaultCloseTimeout
	}
	return &WatermillEngine{logger: logger, conf: conf}, nil
}

// Submit wires t onto a new router and waits until the router runs. The
// relay stops when ctx is cancelled or the handle is closed.
func (e *WatermillEngine) Submit(ctx context.Context, t Topology) (Handle, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	logger := e.logger.With(logging.LogFields{"relay": t.Name})
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: e.conf.CloseTimeout}, logging.NewWatermillAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	var collectors *relayCollectors
	if e.conf.Registerer != nil {
		if collectors, err = newRelayCollectors(e.conf.Registerer); err != nil {
			return nil, fmt.Errorf("register relay metrics: %w", err)
		}
	}
	stats := newStatsRecorder(t.Name, collectors)

	env := MiddlewareEnv{Router: router, Logger: logger, Topology: t, Registerer: e.conf.Registerer}
	for _, reg := range e.conf.Middlewares {
		mw, err := reg.build(env)
		if err != nil {
			return nil, fmt.Errorf("middleware %s: %w", reg.Name, err)
		}
		if mw != nil {
			router.AddMiddleware(mw)
		}
	}

	router.AddHandler(
		t.Name,
		t.SourceTopic,
		t.Subscriber,
		t.DestinationTopic,
		&statsPublisher{Publisher: t.Publisher, rec: stats},
		message.PassthroughHandler,
	)

	h := &routerHandle{
		name:   t.Name,
		router: router,
		topo:   t,
		stats:  stats,
		done:   make(chan struct{}),
	}
	go func() {
		h.finish(routerRun(router, ctx))
	}()

	timer := time.NewTimer(e.conf.StartTimeout)
	defer timer.Stop()

	select {
	case <-router.Running():
		logger.Info("Relay started", logging.LogFields{
			"source_topic":      t.SourceTopic,
			"destination_topic": t.DestinationTopic,
		})
		return h, nil
	case <-h.done:
		if err := h.Err(); err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New("router stopped before it was running")
	case <-timer.C:
		_ = h.Close()
		return nil, &errspkg.RelayError{
			Kind: errspkg.KindBrokerConnectionTimeout,
			Err:  fmt.Errorf("relay %s not running after %s", t.Name, e.conf.StartTimeout),
		}
	}
}

type routerHandle struct {
	name   string
	router *message.Router
	topo   Topology
	stats  *statsRecorder

	done     chan struct{}
	mu       sync.Mutex
	err      error
	once     sync.Once
	closeErr error
}

func (h *routerHandle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

func (h *routerHandle) Name() string { return h.name }

func (h *routerHandle) Done() <-chan struct{} { return h.done }

func (h *routerHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *routerHandle) Stats() Stats { return h.stats.snapshot() }

// Close stops the router, waits for it to drain and releases both clients.
func (h *routerHandle) Close() error {
	h.once.Do(func() {
		err := h.router.Close()
		<-h.done
		h.closeErr = errors.Join(err, h.topo.Publisher.Close(), h.topo.Subscriber.Close())
	})
	return h.closeErr
}
