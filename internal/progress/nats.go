package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no prefix is configured
const DefaultSubjectPrefix = "repoindex.progress"

// publisher is the subset of *nats.Conn used by NATSSink
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes JSON encoded events on <prefix>.<projectID>
type NATSSink struct {
	pub    publisher
	conn   *nats.Conn // nil when constructed around a caller-owned publisher
	prefix string
}

// ConnectNATS dials url and returns a sink that owns the connection
func ConnectNATS(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("repoindex"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	s := NewNATSSink(nc, prefix)
	s.conn = nc
	return s, nil
}

// NewNATSSink publishes on an existing connection, which the caller keeps
// ownership of
func NewNATSSink(nc *nats.Conn, prefix string) *NATSSink {
	return newNATSSink(nc, prefix)
}

func newNATSSink(pub publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{pub: pub, prefix: prefix}
}

// Subject returns the subject events for projectID are published on
func (s *NATSSink) Subject(projectID int64) string {
	return fmt.Sprintf("%s.%d", s.prefix, projectID)
}

// Publish implements Sink
func (s *NATSSink) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}
	subject := s.Subject(ev.ProjectID)
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection when the sink owns it
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
