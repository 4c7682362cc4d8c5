package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wricardo/boardgames/game/service"
	"github.com/wricardo/boardgames/storage/sqlite"
)

type sent struct {
	connID  string
	event   string
	payload any
}

// recorder is an Emitter that keeps every push.
type recorder struct {
	mu     sync.Mutex
	events []sent
}

func (r *recorder) Emit(connID, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{connID: connID, event: event, payload: payload})
	return nil
}

// to returns the payloads of event sent to connID, oldest first.
func (r *recorder) to(connID, event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.connID == connID && e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (r *recorder) last(connID, event string) (any, bool) {
	got := r.to(connID, event)
	if len(got) == 0 {
		return nil, false
	}
	return got[len(got)-1], true
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// fakeVerifier accepts tokens of the form "player-<id>" and rejects
// "expired" as expired.
type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (*service.Identity, error) {
	if token == "expired" {
		return nil, fmt.Errorf("%w: token is expired", service.ErrCredentialExpired)
	}
	var id int64
	if _, err := fmt.Sscanf(token, "player-%d", &id); err != nil {
		return nil, fmt.Errorf("%w: token is invalid", service.ErrUnauthorized)
	}
	return &service.Identity{PlayerID: id, Username: fmt.Sprintf("user%d", id)}, nil
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

var ctx = context.Background()
