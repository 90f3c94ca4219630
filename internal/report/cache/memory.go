package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	id "fasela/pkg/domain"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a single-process report cache with the same generation semantics as
// Redis.
type Memory struct {
	mu          sync.Mutex
	ttl         time.Duration
	now         func() time.Time
	generations map[id.OrganizationID]int64
	entries     map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Memory{
		ttl:         ttl,
		now:         time.Now,
		generations: make(map[id.OrganizationID]int64),
		entries:     make(map[string]memoryEntry),
	}
}

func (m *Memory) Generation(_ context.Context, orgID id.OrganizationID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[orgID], nil
}

func (m *Memory) Get(_ context.Context, orgID id.OrganizationID, gen int64, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entryKey(orgID, gen, key)
	e, ok := m.entries[k]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, k)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, orgID id.OrganizationID, gen int64, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey(orgID, gen, key)] = memoryEntry{value: value, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Invalidate bumps the generation and drops the organization's entries.
func (m *Memory) Invalidate(_ context.Context, orgID id.OrganizationID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[orgID]++
	prefix := keyPrefix + orgID.String() + ":"
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

// Len is the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
