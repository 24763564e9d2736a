package notify

import (
	"context"
	"sync"
)

// RecordingGateway captures notifications for tests. It can be told to
// fail for specific endpoints to exercise isolated-failure handling.
type RecordingGateway struct {
	mu   sync.Mutex
	Sent []*Notification
	Fail map[string]error
}

func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{Fail: make(map[string]error)}
}

func (g *RecordingGateway) Send(_ context.Context, n *Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.Fail[n.Endpoint]; ok {
		return err
	}
	g.Sent = append(g.Sent, n)
	return nil
}

// SentTo returns the notifications recorded for one endpoint
func (g *RecordingGateway) SentTo(endpoint string) []*Notification {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []*Notification
	for _, n := range g.Sent {
		if n.Endpoint == endpoint {
			out = append(out, n)
		}
	}
	return out
}

// Count returns the total notifications recorded
func (g *RecordingGateway) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Sent)
}
