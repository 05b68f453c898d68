//go:generate mockgen -destination mock_audit/mock_audit.go github.com/gatherly/social-push-server/audit Sink

package audit

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/mr-tron/base58"

	"github.com/gatherly/social-push-server/domain"
)

const CName = "push.audit"

func New() Sink {
	return new(memorySink)
}

type Config struct {
	MemoryLimit int `yaml:"memoryLimit"`
}

func (c Config) WithDefaults() Config {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 10000
	}
	return c
}

type configSource interface {
	GetAudit() Config
}

// Sink is an append-only record of dispatch outcomes. Entries are never
// mutated after Record.
type Sink interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	Query(ctx context.Context, userId string, limit int) ([]domain.AuditEntry, error)
	app.Component
}

// NewEntry stamps an id and timestamp; the caller fills the outcome.
func NewEntry(userId string, typ domain.NotificationType) domain.AuditEntry {
	id := make([]byte, 12)
	_, _ = rand.Read(id)
	return domain.AuditEntry{
		Id:               base58.Encode(id),
		Timestamp:        time.Now().Unix(),
		UserId:           userId,
		NotificationType: typ,
	}
}

// memorySink keeps the last memoryLimit entries in a ring.
type memorySink struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	next    int
	full    bool
	limit   int
}

func (s *memorySink) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configSource).GetAudit().WithDefaults()
	s.limit = conf.MemoryLimit
	s.entries = make([]domain.AuditEntry, s.limit)
	return
}

func (s *memorySink) Name() (name string) {
	return CName
}

func (s *memorySink) Record(ctx context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.next] = entry
	s.next++
	if s.next == s.limit {
		s.next = 0
		s.full = true
	}
	return nil
}

func (s *memorySink) Query(ctx context.Context, userId string, limit int) (result []domain.AuditEntry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.next
	if s.full {
		size = s.limit
	}
	// newest first
	for i := 1; i <= size && len(result) < limit; i++ {
		idx := (s.next - i + s.limit) % s.limit
		if userId == "" || s.entries[idx].UserId == userId {
			result = append(result, s.entries[idx])
		}
	}
	return
}
