package network

import (
	"sync"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/models"
)

// Event is delivered to OnChange subscribers on every connectivity report.
// Recovered is true when this report transitioned the link from unusable to
// usable, which is the signal the orchestrator uses to trigger exactly one
// immediate sync.
type Event struct {
	Condition models.NetworkCondition
	Recovered bool
}

// Monitor caches the latest classified network condition and fans
// connectivity events out to subscribers. Platform glue is the single
// writer (via Report); the retry executor and orchestrator are readers.
type Monitor struct {
	classifier Classifier
	logger     *logger.Logger

	mu      sync.RWMutex
	current *models.NetworkCondition
	subs    map[int]func(Event)
	nextSub int
}

// NewMonitor constructs a Monitor using the given classifier. A nil
// classifier falls back to [DefaultClassifier].
func NewMonitor(classifier Classifier, log *logger.Logger) *Monitor {
	if classifier == nil {
		classifier = NewDefaultClassifier()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Monitor{
		classifier: classifier,
		logger:     log,
		subs:       make(map[int]func(Event)),
	}
}

// Report ingests a raw platform connectivity event: classifies it, updates
// the cached condition, and invokes subscribers synchronously. The Recovered
// flag is set when the previous condition was unusable (or unknown-offline)
// and the new one is usable.
func (m *Monitor) Report(link Link) {
	cond := m.classifier.Classify(link)

	m.mu.Lock()
	wasSuitable := m.current != nil && m.current.Suitable()
	recovered := !wasSuitable && m.current != nil && cond.Suitable()
	m.current = &cond

	handlers := make([]func(Event), 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	m.logger.Debug().
		Str("type", string(cond.Type)).
		Str("strength", string(cond.Strength)).
		Bool("connected", cond.IsConnected).
		Bool("recovered", recovered).
		Msg("network condition changed")

	ev := Event{Condition: cond, Recovered: recovered}
	for _, h := range handlers {
		h(ev)
	}
}

// Condition returns the latest classified condition, or nil if the platform
// has never reported connectivity. Callers must treat nil as "assume
// suitable" so the engine never deadlocks on a silent platform.
func (m *Monitor) Condition() *models.NetworkCondition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SuitableForSync reports whether a sync attempt is worth making right now.
// An unknown condition counts as suitable.
func (m *Monitor) SuitableForSync() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current == nil || m.current.Suitable()
}

// OnChange registers a callback fired on every connectivity report. The
// returned function removes the subscription.
func (m *Monitor) OnChange(fn func(Event)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
