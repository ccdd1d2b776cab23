// Package session persists conversation history per channel conversation.
// Each session is a JSONL file under <workspace>/sessions (one message per
// line) with a .meta.json sidecar carrying timestamps and metadata.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/spoonos-ai/spoonbot/pkg/message"
)

// Record is one persisted conversation turn.
type Record struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the in-memory state of one conversation.
type Session struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any

	mu      sync.Mutex
	records []Record
}

func newSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

// AddMessage appends a turn and bumps the updated timestamp.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{Role: role, Content: content, Timestamp: time.Now()})
	s.UpdatedAt = time.Now()
}

// History returns the conversation as model-ready messages, role and
// content only.
func (s *Session) History() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]message.Message, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, message.Message{Role: r.Role, Content: r.Content})
	}
	return out
}

// Records returns a copy of the persisted turns.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the number of turns in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear drops all turns but keeps the session itself.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.UpdatedAt = time.Now()
}

type sessionMeta struct {
	SessionKey   string         `json:"session_key"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Metadata     map[string]any `json:"metadata"`
	MessageCount int            `json:"message_count"`
}

// Manager loads, caches, and saves sessions.
type Manager struct {
	dir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates the sessions directory under workspace if needed.
func NewManager(workspace string) (*Manager, error) {
	dir := filepath.Join(workspace, "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating sessions dir: %w", err)
	}
	return &Manager{dir: dir, sessions: make(map[string]*Session)}, nil
}

// GetOrCreate returns the cached session for key, loading it from disk on
// first use, or starting a fresh one.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := m.load(key)
	if s == nil {
		s = newSession(key)
		log.Printf("[session] created %s", key)
	} else {
		log.Printf("[session] loaded %s (%d messages)", key, len(s.records))
	}
	m.sessions[key] = s
	return s
}

// Save writes the session's JSONL file and metadata sidecar.
func (m *Manager) Save(s *Session) error {
	s.mu.Lock()
	records := make([]Record, len(s.records))
	copy(records, s.records)
	meta := sessionMeta{
		SessionKey:   s.Key,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Metadata:     s.Metadata,
		MessageCount: len(s.records),
	}
	s.mu.Unlock()

	var buf strings.Builder
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding session record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	path := m.sessionPath(s.Key)
	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session meta: %w", err)
	}
	if err := os.WriteFile(metaPath(path), metaData, 0644); err != nil {
		return fmt.Errorf("writing session meta: %w", err)
	}
	return nil
}

// Delete removes a session from the cache and disk. It reports whether any
// file was removed.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()

	path := m.sessionPath(key)
	deleted := false
	if err := os.Remove(path); err == nil {
		deleted = true
	}
	if err := os.Remove(metaPath(path)); err == nil {
		deleted = true
	}
	return deleted
}

// List returns all known session keys, cached and on disk, sorted. Disk
// entries not currently cached are reported by their sanitized filename stem.
func (m *Manager) List() []string {
	seen := make(map[string]bool)
	stems := make(map[string]bool)
	m.mu.Lock()
	for key := range m.sessions {
		seen[key] = true
		stems[sanitizeKey(key)] = true
	}
	m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err == nil {
		for _, e := range entries {
			name := e.Name()
			if !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			stem := strings.TrimSuffix(name, ".jsonl")
			if !stems[stem] {
				seen[stem] = true
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m *Manager) sessionPath(key string) string {
	return filepath.Join(m.dir, sanitizeKey(key)+".jsonl")
}

func metaPath(sessionPath string) string {
	return strings.TrimSuffix(sessionPath, ".jsonl") + ".meta.json"
}

// sanitizeKey maps a session key to a safe filename stem. Letters, digits,
// '-' and '_' pass through; everything else becomes '_'.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// load reads a session from disk, or returns nil if it does not exist or
// cannot be parsed.
func (m *Manager) load(key string) *Session {
	path := m.sessionPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var records []Record
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			log.Printf("[session] skipping bad record in %s: %v", key, err)
			continue
		}
		records = append(records, r)
	}

	s := newSession(key)
	s.records = records
	if metaData, err := os.ReadFile(metaPath(path)); err == nil {
		var meta sessionMeta
		if err := json.Unmarshal(metaData, &meta); err == nil {
			if !meta.CreatedAt.IsZero() {
				s.CreatedAt = meta.CreatedAt
			}
			if !meta.UpdatedAt.IsZero() {
				s.UpdatedAt = meta.UpdatedAt
			}
			if meta.Metadata != nil {
				s.Metadata = meta.Metadata
			}
		}
	}
	return s
}
