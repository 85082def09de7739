// Package memory contains an in-memory publisher for tests and rehearsals.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// Publisher stores submitted documents for inspection.
type Publisher struct {
	mu          sync.RWMutex
	docs        []feed.Document
	failures    map[string]error
	description string
	descErr     error
}

var _ feed.Publisher = (*Publisher)(nil)

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{failures: make(map[string]error)}
}

// FailFor makes submissions of eventID return err.
func (p *Publisher) FailFor(eventID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[eventID] = err
}

// FailDescription makes Description and SetDescription return err.
func (p *Publisher) FailDescription(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descErr = err
}

// Submit records the document and returns a pseudo ID.
func (p *Publisher) Submit(_ context.Context, doc feed.Document) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[doc.EventID]; err != nil {
		return "", err
	}
	p.docs = append(p.docs, doc)
	return fmt.Sprintf("memory-%d", len(p.docs)), nil
}

// Documents returns the recorded submissions.
func (p *Publisher) Documents() []feed.Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]feed.Document, len(p.docs))
	copy(out, p.docs)
	return out
}

// Description returns the stored description.
func (p *Publisher) Description(context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.descErr != nil {
		return "", p.descErr
	}
	return p.description, nil
}

// SetDescription replaces the stored description.
func (p *Publisher) SetDescription(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.descErr != nil {
		return p.descErr
	}
	p.description = text
	return nil
}
