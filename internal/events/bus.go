// internal/events/bus.go
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/makerden/makerden-backend/internal/models"
)

// ReportResolved is published once per report when a moderator decision
// resolves it. The trust ledger subscribes to it; nothing else on the
// resolution path touches trust scores.
type ReportResolved struct {
	ReportID    uuid.UUID
	ReporterID  uuid.UUID
	ContentType models.ContentType
	ContentID   uuid.UUID
	Outcome     models.ResolvedStatus
	AutoEpisode bool // the report contributed to an automatic action
}

type Handler func(ReportResolved)

type Bus interface {
	Publish(ReportResolved)
	Subscribe(Handler)
}

// InProcBus dispatches synchronously on the publisher's goroutine, so a
// moderator action returns only after the trust ledgers are updated.
type InProcBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewInProcBus() *InProcBus {
	return &InProcBus{}
}

func (b *InProcBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *InProcBus) Publish(ev ReportResolved) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
