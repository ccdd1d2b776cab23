package skills

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager caches loaded skills and reloads them when SKILL.md files change.
type Manager struct {
	dir string

	mu      sync.RWMutex
	skills  []Skill
	watcher *fsnotify.Watcher
}

// NewManager creates a manager for the given skills directory. Call Reload
// to perform the initial load.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the skills directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Reload re-reads every skill from disk.
func (m *Manager) Reload() error {
	skills, err := Load(m.dir)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.skills = skills
	m.mu.Unlock()
	return nil
}

// Skills returns a copy of the loaded skills.
func (m *Manager) Skills() []Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Skill, len(m.skills))
	copy(out, m.skills)
	return out
}

// Get looks up a skill by name.
func (m *Manager) Get(name string) (Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.skills {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

// Match returns the skills whose keywords appear in text, in load order.
func (m *Manager) Match(text string) []Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Skill
	for _, s := range m.skills {
		if s.Matches(text) {
			out = append(out, s)
		}
	}
	return out
}

// Summary renders the skill list for the system prompt. Empty when no
// skills are loaded.
func (m *Manager) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.skills) == 0 {
		return ""
	}
	lines := []string{"## Available Skills", ""}
	for _, s := range m.skills {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", s.Name, s.Description))
	}
	return strings.Join(lines, "\n")
}

// Watch reloads skills whenever a markdown file under the skills tree
// changes, then calls onReload (which may be nil) with the fresh list.
// It is a no-op if a watch is already running.
func (m *Manager) Watch(onReload func([]Skill)) error {
	m.mu.Lock()
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = watcher
	m.mu.Unlock()

	if err := watcher.Add(m.dir); err != nil {
		_ = watcher.Close()
		m.mu.Lock()
		m.watcher = nil
		m.mu.Unlock()
		return err
	}
	// Watch existing skill subdirectories too; SKILL.md edits happen there.
	for _, s := range m.Skills() {
		if err := watcher.Add(filepath.Dir(s.Path)); err != nil {
			log.Printf("[skills] cannot watch %s: %v", filepath.Dir(s.Path), err)
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				// New skill directories need their own watch entry so the
				// SKILL.md written into them is seen.
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
				if !relevantEvent(event.Name) {
					continue
				}
				if err := m.Reload(); err != nil {
					log.Printf("[skills] reload failed: %v", err)
					continue
				}
				log.Printf("[skills] reloaded %d skills", len(m.Skills()))
				if onReload != nil {
					onReload(m.Skills())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[skills] watcher error: %v", err)
			}
		}
	}()

	return nil
}

// relevantEvent reports whether a change could affect the loaded skills:
// either a markdown file changed, or a directory entry appeared or moved.
func relevantEvent(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ""
}

// Close stops the watcher if one is running.
func (m *Manager) Close() error {
	m.mu.Lock()
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}
