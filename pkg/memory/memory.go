// Package memory defines the long-term interaction store interface the
// engine records into. Failures are non-fatal: orchestration never
// blocks on memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Interaction is one recorded orchestration exchange.
type Interaction struct {
	SessionID string            `json:"session_id"`
	Agent     string            `json:"agent,omitempty"`
	Input     string            `json:"input"`
	Output    string            `json:"output,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store is the interaction memory interface.
type Store interface {
	// StoreInteraction records an interaction. Best effort: a false
	// return means the record was dropped.
	StoreInteraction(ctx context.Context, interaction Interaction) bool

	// SearchSimilar returns up to topK past interactions relevant to
	// the query, most relevant first.
	SearchSimilar(ctx context.Context, query, sessionID string, topK int) []Interaction
}

// Nop discards everything.
type Nop struct{}

func (Nop) StoreInteraction(ctx context.Context, interaction Interaction) bool { return true }
func (Nop) SearchSimilar(ctx context.Context, query, sessionID string, topK int) []Interaction {
	return nil
}

// InMemory is a process-local store with lexical similarity search.
type InMemory struct {
	mu      sync.RWMutex
	records []Interaction
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (m *InMemory) StoreInteraction(ctx context.Context, interaction Interaction) bool {
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, interaction)
	return true
}

func (m *InMemory) SearchSimilar(ctx context.Context, query, sessionID string, topK int) []Interaction {
	if topK <= 0 {
		topK = 5
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		record Interaction
		score  int
	}

	words := strings.Fields(strings.ToLower(query))
	var matches []scored
	for _, record := range m.records {
		if sessionID != "" && record.SessionID != sessionID {
			continue
		}
		haystack := strings.ToLower(record.Input + " " + record.Output)
		score := 0
		for _, word := range words {
			if strings.Contains(haystack, word) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{record: record, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	results := make([]Interaction, len(matches))
	for i, m := range matches {
		results[i] = m.record
	}
	return results
}
