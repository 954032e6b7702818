package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the NATS subject prefix for run events.
const DefaultSubjectPrefix = "leadsynapse.runs"

// natsConn is the part of *nats.Conn the sink uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSSink publishes events as JSON to <prefix>.<run-id>.
type NATSSink struct {
	conn   natsConn
	prefix string
}

// NewNATSSink connects to the NATS server at url.
func NewNATSSink(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("leadsynapse"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return newNATSSink(nc, prefix), nil
}

func newNATSSink(conn natsConn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

// Subject returns the subject used for a run.
func (s *NATSSink) Subject(runID string) string {
	return s.prefix + "." + runID
}

// Publish implements Sink.
func (s *NATSSink) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.conn.Publish(s.Subject(e.RunID), data)
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
