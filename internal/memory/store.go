// Package memory gives the agent human-readable persistence: MEMORY.md for
// long-term facts, plus one YYYY-MM-DD.md note file per day. Everything is
// plain markdown the user can open and edit.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const memoryTemplate = `# Long-term Memory

This file stores persistent facts and preferences.

## User Preferences

## Important Facts

`

// DefaultCategory is where Remember files facts when no category is given.
const DefaultCategory = "Facts"

// searchLimit caps Search results.
const searchLimit = 20

// searchDays is how many days of daily notes Search scans.
const searchDays = 7

// Store reads and writes the memory files under <workspace>/memory.
type Store struct {
	mu         sync.Mutex
	dir        string
	memoryFile string
}

// NewStore creates the memory directory and seeds MEMORY.md if missing.
func NewStore(workspace string) (*Store, error) {
	dir := filepath.Join(workspace, "memory")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating memory dir: %w", err)
	}
	s := &Store{dir: dir, memoryFile: filepath.Join(dir, "MEMORY.md")}
	if _, err := os.Stat(s.memoryFile); os.IsNotExist(err) {
		if err := os.WriteFile(s.memoryFile, []byte(memoryTemplate), 0644); err != nil {
			return nil, fmt.Errorf("seeding memory file: %w", err)
		}
	}
	return s, nil
}

// Dir returns the memory directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Context assembles the memory content injected into the system prompt:
// long-term memory followed by today's notes, when either is non-empty.
func (s *Store) Context() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []string
	if data, err := os.ReadFile(s.memoryFile); err == nil && strings.TrimSpace(string(data)) != "" {
		parts = append(parts, "## Long-term Memory\n\n"+string(data))
	}
	if data, err := os.ReadFile(s.dailyFile(time.Now())); err == nil && strings.TrimSpace(string(data)) != "" {
		parts = append(parts, "## Today's Notes\n\n"+string(data))
	}
	return strings.Join(parts, "\n\n")
}

// Remember appends a timestamped fact under the given category heading in
// MEMORY.md, creating the heading if needed. An empty category files the
// fact under DefaultCategory.
func (s *Store) Remember(content, category string) error {
	if category == "" {
		category = DefaultCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.memoryFile)
	if err != nil {
		return fmt.Errorf("reading memory file: %w", err)
	}
	existing := string(data)

	header := "## " + category
	if !strings.Contains(existing, header) {
		existing += "\n\n" + header + "\n\n"
	}
	fact := fmt.Sprintf("- [%s] %s\n", time.Now().Format("2006-01-02 15:04"), content)
	existing = insertUnderHeader(existing, header, fact)

	if err := os.WriteFile(s.memoryFile, []byte(existing), 0644); err != nil {
		return fmt.Errorf("writing memory file: %w", err)
	}
	return nil
}

// Note appends a timestamped line to today's daily file, creating it with a
// date heading on first use.
func (s *Store) Note(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	path := s.dailyFile(now)
	var existing string
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	} else {
		existing = fmt.Sprintf("# Notes for %s\n\n", now.Format("2006-01-02"))
	}
	existing += fmt.Sprintf("- [%s] %s\n", now.Format("15:04"), content)

	if err := os.WriteFile(path, []byte(existing), 0644); err != nil {
		return fmt.Errorf("writing daily note: %w", err)
	}
	return nil
}

// Search scans MEMORY.md and the last week of daily notes for lines
// containing query, case-insensitively. Matches are prefixed with their
// source and capped at a fixed limit.
func (s *Store) Search(query string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []string
	needle := strings.ToLower(query)

	if data, err := os.ReadFile(s.memoryFile); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				results = append(results, "[MEMORY] "+strings.TrimSpace(line))
			}
		}
	}

	for i := 0; i < searchDays; i++ {
		day := time.Now().AddDate(0, 0, -i)
		data, err := os.ReadFile(s.dailyFile(day))
		if err != nil {
			continue
		}
		stamp := day.Format("2006-01-02")
		for _, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				results = append(results, "["+stamp+"] "+strings.TrimSpace(line))
			}
		}
	}

	if len(results) > searchLimit {
		results = results[:searchLimit]
	}
	return results
}

// Forget removes every MEMORY.md line containing content. It reports
// whether anything was removed.
func (s *Store) Forget(content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.memoryFile)
	if err != nil {
		return false
	}
	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.Contains(line, content) {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(lines) {
		return false
	}
	if err := os.WriteFile(s.memoryFile, []byte(strings.Join(kept, "\n")), 0644); err != nil {
		return false
	}
	return true
}

// Summary reports entry and note counts for status displays.
func (s *Store) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []string
	if data, err := os.ReadFile(s.memoryFile); err == nil {
		parts = append(parts, fmt.Sprintf("Long-term memory: %d entries", strings.Count(string(data), "- [")))
	}
	if files, err := filepath.Glob(filepath.Join(s.dir, "????-??-??.md")); err == nil && len(files) > 0 {
		parts = append(parts, fmt.Sprintf("Daily notes: %d days", len(files)))
	}
	if len(parts) == 0 {
		return "Memory is empty"
	}
	return strings.Join(parts, "\n")
}

func (s *Store) dailyFile(day time.Time) string {
	return filepath.Join(s.dir, day.Format("2006-01-02")+".md")
}

// insertUnderHeader places fact directly after the header line and any blank
// lines that follow it, so newest entries sit at the top of their section.
func insertUnderHeader(existing, header, fact string) string {
	pos := strings.Index(existing, header)
	if pos == -1 {
		return existing + fact
	}
	end := strings.Index(existing[pos:], "\n")
	if end == -1 {
		return existing + "\n" + fact
	}
	insert := pos + end + 1
	for insert < len(existing) && existing[insert] == '\n' {
		insert++
	}
	return existing[:insert] + fact + existing[insert:]
}
