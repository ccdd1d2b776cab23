// Package prompt assembles the system prompt: the agent identity, the
// workspace bootstrap files, memory context, and the skill list, separated
// by horizontal rules.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// bootstrapFiles are loaded from the workspace root, in this order, when
// present. They let the user shape the agent without touching code.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md"}

// Builder renders the system prompt for one workspace.
type Builder struct {
	workspace string

	mu            sync.RWMutex
	memoryContext string
	skillsSummary string
	skillContext  string
}

// NewBuilder creates a builder rooted at the workspace directory.
func NewBuilder(workspace string) *Builder {
	return &Builder{workspace: workspace}
}

// SetMemoryContext injects the memory section content.
func (b *Builder) SetMemoryContext(context string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.memoryContext = context
}

// SetSkillsSummary injects the skill list shown for reference.
func (b *Builder) SetSkillsSummary(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.skillsSummary = summary
}

// SetSkillContext injects full instructions of skills matched against the
// current message.
func (b *Builder) SetSkillContext(context string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.skillContext = context
}

// System builds the complete system prompt.
func (b *Builder) System() string {
	b.mu.RLock()
	memoryContext := b.memoryContext
	skillsSummary := b.skillsSummary
	skillContext := b.skillContext
	b.mu.RUnlock()

	parts := []string{b.identity()}

	if bootstrap := b.loadBootstrapFiles(); bootstrap != "" {
		parts = append(parts, bootstrap)
	}
	if memoryContext != "" {
		parts = append(parts, "# Memory\n\n"+memoryContext)
	}
	if skillContext != "" {
		parts = append(parts, skillContext)
	}
	if skillsSummary != "" {
		parts = append(parts, "# Skills\n\n"+
			"The following skills extend your capabilities. To use a skill, read its SKILL.md file using the read_file tool.\n\n"+
			skillsSummary)
	}

	return strings.Join(parts, "\n\n---\n\n")
}

func (b *Builder) identity() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")

	return fmt.Sprintf(`# spoonbot

You are spoonbot, a local AI assistant focused on OS-level interactions.
You have access to native tools that allow you to:
- Read, write, and edit files
- Execute shell commands
- List directory contents
- (More tools available based on configuration)

## Current Time
%s

## Workspace
Your workspace is at: %s
- Memory files: %s/memory/MEMORY.md
- Daily notes: %s/memory/YYYY-MM-DD.md
- Skills: %s/skills/

## Guidelines
1. Be helpful, accurate, and concise
2. When using tools, briefly explain what you're doing
3. Ask for confirmation before destructive operations (rm, overwrite)
4. Prefer reading files before editing them
5. Use the simplest tool for each task`,
		now, b.workspace, b.workspace, b.workspace, b.workspace)
}

// loadBootstrapFiles concatenates the workspace bootstrap files that exist.
func (b *Builder) loadBootstrapFiles() string {
	var parts []string
	for _, name := range bootstrapFiles {
		data, err := os.ReadFile(filepath.Join(b.workspace, name))
		if err != nil {
			continue
		}
		parts = append(parts, "## "+name+"\n\n"+string(data))
	}
	return strings.Join(parts, "\n\n")
}
