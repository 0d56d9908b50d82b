package client

import (
	"slices"
	"sync"
	"time"
)

type ChatEntry struct {
	Id           string
	AuthorId     string
	AuthorName   string
	AuthorIsHost bool
	Text         string
	CreatedAt    time.Time
	// Tentative entries were rendered locally and are not yet confirmed by the server.
	Tentative bool
}

// ChatLog is the local chat view. Messages are shown as soon as they are sent and
// replaced by the server echo carrying the same id.
type ChatLog struct {
	mu      sync.Mutex
	entries []ChatEntry
}

func NewChatLog() *ChatLog {
	return &ChatLog{}
}

func (l *ChatLog) AddTentative(e ChatEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.index(e.Id) >= 0 {
		return
	}

	e.Tentative = true
	l.entries = append(l.entries, e)
}

// Confirm stores an entry received from the server, replacing the tentative entry with its id.
func (l *ChatLog) Confirm(e ChatEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Tentative = false
	if i := l.index(e.Id); i >= 0 {
		l.entries[i] = e
		return
	}

	l.entries = append(l.entries, e)
}

func (l *ChatLog) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return false
	}
	l.entries = slices.Delete(l.entries, i, i+1)

	return true
}

// Load replaces the log with the history sent on join. Tentative entries the history
// does not contain are kept after it.
func (l *ChatLog) Load(history []ChatEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]ChatEntry, 0, len(history)+len(l.entries))
	for _, e := range history {
		e.Tentative = false
		entries = append(entries, e)
	}
	for _, e := range l.entries {
		if e.Tentative && !slices.ContainsFunc(history, func(h ChatEntry) bool { return h.Id == e.Id }) {
			entries = append(entries, e)
		}
	}

	l.entries = entries
}

func (l *ChatLog) Entries() []ChatEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.entries)
}

func (l *ChatLog) index(id string) int {
	return slices.IndexFunc(l.entries, func(e ChatEntry) bool { return e.Id == id })
}
