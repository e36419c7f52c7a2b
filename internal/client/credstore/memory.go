package credstore

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/quickpage/internal/client/models"
)

// MemoryStore keeps the credential in process memory. Tests and ephemeral
// runs use it.
type MemoryStore struct {
	mu sync.Mutex
	c  models.Credential
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c, nil
}

func (m *MemoryStore) Save(_ context.Context, c models.Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.c = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.c = models.Credential{}
	m.mu.Unlock()
	return nil
}
