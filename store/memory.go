package store

import (
	"context"
	"sync"

	"github.com/vaintrub/hrsession/models"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	doc      document
	watchers []chan struct{}
}

var (
	_ Store   = (*Memory)(nil)
	_ Watcher = (*Memory)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Read(_ context.Context) (*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.credential(), nil
}

func (m *Memory) Write(_ context.Context, cred models.Credential) error {
	if err := validCredential(cred); err != nil {
		return err
	}
	m.mu.Lock()
	m.doc.Token = cred.Token
	m.doc.User = cred.User.Clone()
	m.mu.Unlock()
	m.broadcast()
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.doc = document{}
	m.mu.Unlock()
	m.broadcast()
	return nil
}

func (m *Memory) PutPendingInvitation(_ context.Context, token string) error {
	m.mu.Lock()
	m.doc.PendingInvitation = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) PendingInvitation(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.PendingInvitation, nil
}

func (m *Memory) TakePendingInvitation(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := m.doc.PendingInvitation
	m.doc.PendingInvitation = ""
	return token, nil
}

// Watch signals after every Write and Clear made through this store.
func (m *Memory) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, w := range m.watchers {
			if w == ch {
				m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) broadcast() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.watchers {
		notify(w)
	}
}
