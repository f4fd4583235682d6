package sender

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/config"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/model"
)

// publisher is the part of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	Drain() error
}

// NATSSender publishes each envelope on
// <prefix>.<robot>.<component type>.<component name>.
type NATSSender struct {
	log    *slog.Logger
	conn   publisher
	prefix string
}

func NewNATSSender(log *slog.Logger, cfg *config.NATSConfig, clientName string) (*NATSSender, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", sl.Err(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %s", cfg.URL)
	}
	return newNATSSender(log, nc, cfg.SubjectPrefix), nil
}

func newNATSSender(log *slog.Logger, conn publisher, prefix string) *NATSSender {
	return &NATSSender{log: log, conn: conn, prefix: prefix}
}

func (s *NATSSender) Subject(envelope *model.Envelope) string {
	return strings.Join([]string{
		s.prefix,
		token(envelope.RobotID),
		token(envelope.ComponentType),
		token(envelope.ComponentName),
	}, ".")
}

func (s *NATSSender) Send(ctx context.Context, envelope *model.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := envelope.ToJSON()
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope")
	}
	subject := s.Subject(envelope)
	if err := s.conn.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "failed to publish on %s", subject)
	}
	return nil
}

func (s *NATSSender) SendBatch(ctx context.Context, envelopes []*model.Envelope) error {
	for _, envelope := range envelopes {
		if err := s.Send(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}

func (s *NATSSender) Health(ctx context.Context) error {
	if !s.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

func (s *NATSSender) Close() error {
	return s.conn.Drain()
}

// token makes a name safe for use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
