package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marcusmattus/gami-protocol-mcp/internal/bus"
	cfgpkg "github.com/marcusmattus/gami-protocol-mcp/internal/config"
	"github.com/marcusmattus/gami-protocol-mcp/internal/relay"
	"github.com/marcusmattus/gami-protocol-mcp/internal/ring"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/id"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger log.Logger
}

// Runtime wires the relay core and the bus for a single-node instance.
type Runtime struct {
	config   cfgpkg.Config
	logger   log.Logger
	instance id.ID

	dispatcher *relay.Dispatcher
	publisher  *bus.Publisher
	conn       *bus.RedisConn
	listener   *bus.Listener

	cancelListener context.CancelFunc
	wg             sync.WaitGroup
}

// Open connects to the bus (when configured) and starts the dispatcher. A
// blank bus URL disables the bus; the relay then serves live fan-out and
// replay only.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	rt := &Runtime{
		config:   opts.Config,
		logger:   logger,
		instance: id.NewGenerator().Next(),
	}

	var publisher relay.Publisher
	if opts.Config.Bus.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := bus.DialRedis(ctx, opts.Config.Bus.URL)
		cancel()
		if err != nil {
			return nil, err
		}
		rt.conn = conn
		rt.publisher = bus.NewPublisher(bus.PublisherOptions{
			Conn:         conn,
			Channel:      opts.Config.Bus.Channel,
			RelayID:      rt.instance.String(),
			Policy:       retryPolicy(opts.Config.Publisher),
			PendingLimit: opts.Config.Bus.PendingLimit,
			Logger:       logger,
		})
		publisher = rt.publisher
	}

	rt.dispatcher = relay.New(relay.Options{
		Ring:       ring.New(opts.Config.Ring.Capacity),
		Publisher:  publisher,
		Logger:     logger,
		QueueBound: opts.Config.Subscriber.QueueBound,
	})

	if rt.conn != nil {
		rt.listener = bus.NewListener(bus.ListenerOptions{
			Conn:     rt.conn,
			Channel:  opts.Config.Bus.Channel,
			RelayID:  rt.instance.String(),
			Ingestor: rt.dispatcher,
			Logger:   logger,
		})
		ctx, cancel := context.WithCancel(context.Background())
		rt.cancelListener = cancel
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			if err := rt.listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bus listener stopped", log.Err(err))
			}
		}()
	}

	return rt, nil
}

func retryPolicy(cfg cfgpkg.PublisherConfig) bus.RetryPolicy {
	return bus.RetryPolicy{
		Type:        bus.BackoffType(cfg.BackoffType),
		Base:        time.Duration(cfg.BaseMs) * time.Millisecond,
		Cap:         time.Duration(cfg.CapMs) * time.Millisecond,
		Factor:      cfg.Factor,
		MaxAttempts: uint32(cfg.MaxAttempts),
	}
}

// Close tears down in dependency order: stop accepting, stop the listener,
// stop the publisher, drop the bus connection.
func (r *Runtime) Close() error {
	r.dispatcher.Close()
	if r.cancelListener != nil {
		r.cancelListener()
		r.wg.Wait()
	}
	if r.publisher != nil {
		r.publisher.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// CheckHealth verifies the bus connection when one is configured.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Ping(ctx)
}

// BusEnabled reports whether a durable bus is configured.
func (r *Runtime) BusEnabled() bool { return r.conn != nil }

// Dispatcher returns the relay core.
func (r *Runtime) Dispatcher() *relay.Dispatcher { return r.dispatcher }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// InstanceID returns this relay's bus identity.
func (r *Runtime) InstanceID() id.ID { return r.instance }
