package bus

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/log"
)

// Ingestor accepts envelopes arriving from other relay instances.
type Ingestor interface {
	IngestForwarded(envelope.Draft) (envelope.Envelope, error)
}

// ListenerOptions configure a Listener.
type ListenerOptions struct {
	Conn    *RedisConn
	Channel string
	// RelayID is this instance's identifier; messages it published itself
	// are skipped to avoid echo loops.
	RelayID  string
	Ingestor Ingestor
	Logger   log.Logger
}

// Listener subscribes to the bus channel and re-ingests envelopes published
// by other relay instances, so every instance's subscribers see the merged
// stream.
type Listener struct {
	conn     *RedisConn
	channel  string
	relayID  string
	ingestor Ingestor
	logger   log.Logger
}

// NewListener returns a Listener; call Run to start it.
func NewListener(opts ListenerOptions) *Listener {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Listener{
		conn:     opts.Conn,
		channel:  opts.Channel,
		relayID:  opts.RelayID,
		ingestor: opts.Ingestor,
		logger:   logger.WithComponent("bus.listener"),
	}
}

// Run consumes the channel until ctx is canceled. Malformed messages and
// rejected drafts are dropped with a log line; the listener itself never
// stops over a bad message.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.conn.Client().Subscribe(ctx, l.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	l.logger.Info("listening on bus channel", log.Str("channel", l.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.handle(msg)
		}
	}
}

func (l *Listener) handle(msg *redis.Message) {
	w, err := decodeWire([]byte(msg.Payload))
	if err != nil {
		l.logger.Warn("dropping malformed bus message", log.Err(err))
		return
	}
	if w.Relay == l.relayID {
		return
	}
	draft := envelope.Draft{Event: w.Event, Origin: w.Origin, Payload: w.Payload}
	if _, err := l.ingestor.IngestForwarded(draft); err != nil {
		l.logger.Warn("dropping invalid bus envelope",
			log.Str("event", w.Event),
			log.Str("origin", w.Origin),
			log.Err(err))
	}
}
