package contacts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a Store for a single process.
type Memory struct {
	mu    sync.Mutex
	items map[memoryKey]Contact
	now   func() time.Time
}

type memoryKey struct {
	owner   string
	company string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[memoryKey]Contact), now: time.Now}
}

func (m *Memory) Upsert(_ context.Context, c Contact) error {
	c = c.normalized()

	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{owner: c.Owner, company: c.Key()}
	if existing, ok := m.items[key]; ok {
		if existing.Website != "" {
			c.Website = existing.Website
		}
		if existing.Phone != "" {
			c.Phone = existing.Phone
		}
		c.Emails = mergeEmails(existing.Emails, c.Emails)
	}
	c.UpdatedAt = m.now()
	m.items[key] = c

	return nil
}

func (m *Memory) List(_ context.Context, owner string) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Contact
	for key, c := range m.items {
		if key.owner == owner {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].Key() < result[j].Key()
	})

	return result, nil
}
