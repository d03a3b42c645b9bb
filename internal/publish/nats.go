package publish

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

const DefaultSubjectPrefix = "mempool"

// NATSConn is the part of *nats.Conn the publisher uses.
type NATSConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NATSPublisher struct {
	conn    NATSConn
	subject string
	now     func() time.Time
}

// DialNATS connects to url and retries forever on disconnect.
func DialNATS(url, subjectPrefix string) (*NATSPublisher, error) {
	log := logger.Default().With("component", "nats")
	conn, err := nats.Connect(url,
		nats.Name("mempool-scanner"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	return NewNATSPublisher(conn, subjectPrefix), nil
}

func NewNATSPublisher(conn NATSConn, subjectPrefix string) *NATSPublisher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{
		conn:    conn,
		subject: subjectPrefix + ".pending_swaps",
		now:     time.Now,
	}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Subject() string { return p.subject }

func (p *NATSPublisher) Publish(ctx context.Context, swap *types.ClassifiedSwap) error {
	data, err := encodeSwap(swap, p.now())
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
