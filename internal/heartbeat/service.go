// Package heartbeat runs the agent's periodic self-check. Tasks live in a
// user-editable HEARTBEAT.md checklist inside the workspace; on every tick
// each unchecked task is handed to the agent and the file's status stamp is
// refreshed.
package heartbeat

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// DefaultSchedule fires the heartbeat every half hour.
const DefaultSchedule = "@every 30m"

const heartbeatTemplate = `# Heartbeat Tasks

Tasks in this file are executed periodically by the agent.
Use checkbox format: ` + "`- [ ] Task description`" + `

## Periodic Tasks

- [ ] Check for new messages
- [ ] Review today's notes

## Status

Last heartbeat: Never
`

// Handler processes one heartbeat task and returns the agent's answer.
type Handler func(ctx context.Context, task string) (string, error)

// Service schedules heartbeat runs with a cron expression.
type Service struct {
	file     string
	schedule string

	mu      sync.Mutex
	handler Handler
	cron    *rcron.Cron
	ctx     context.Context
	running bool
}

// NewService creates a heartbeat for the workspace. An empty schedule falls
// back to DefaultSchedule.
func NewService(workspace, schedule string) *Service {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Service{
		file:     filepath.Join(workspace, "HEARTBEAT.md"),
		schedule: schedule,
	}
}

// SetHandler installs the task executor. Without one, ticks only log.
func (s *Service) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Start seeds HEARTBEAT.md if needed and begins ticking on the schedule.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := s.ensureFile(); err != nil {
		return err
	}

	c := rcron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.beat() }); err != nil {
		return fmt.Errorf("invalid heartbeat schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.ctx = ctx
	s.running = true
	log.Printf("[heartbeat] started (schedule: %s)", s.schedule)
	return nil
}

// Stop halts the schedule, waiting briefly for a running beat to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c != nil {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[heartbeat] stop timeout waiting for running tasks")
		}
	}
	log.Printf("[heartbeat] stopped")
}

// Running reports whether the schedule is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tasks returns the unchecked tasks currently listed in HEARTBEAT.md.
func (s *Service) Tasks() []string {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return nil
	}
	var tasks []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- [ ] ") {
			continue
		}
		if task := strings.TrimSpace(line[6:]); task != "" {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// TriggerNow runs every pending task immediately and returns one result
// line per task.
func (s *Service) TriggerNow(ctx context.Context) []string {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		log.Printf("[heartbeat] no handler set")
		return nil
	}

	if err := s.ensureFile(); err != nil {
		log.Printf("[heartbeat] %v", err)
		return nil
	}

	var results []string
	for _, task := range s.Tasks() {
		result, err := handler(ctx, task)
		if err != nil {
			results = append(results, fmt.Sprintf("%s: Error - %v", task, err))
			continue
		}
		results = append(results, fmt.Sprintf("%s: %s...", task, preview(result, 100)))
	}
	s.stamp()
	return results
}

// beat is one scheduled tick: execute pending tasks, then refresh the stamp.
func (s *Service) beat() {
	s.mu.Lock()
	handler := s.handler
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	log.Printf("[heartbeat] triggered")
	tasks := s.Tasks()
	if len(tasks) == 0 {
		log.Printf("[heartbeat] no tasks to execute")
		return
	}

	if handler != nil {
		for _, task := range tasks {
			log.Printf("[heartbeat] executing task: %s", task)
			if _, err := handler(ctx, task); err != nil {
				log.Printf("[heartbeat] task failed: %v", err)
			}
		}
	}
	s.stamp()
}

// ensureFile writes the default HEARTBEAT.md when missing.
func (s *Service) ensureFile() error {
	if _, err := os.Stat(s.file); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.file), 0755); err != nil {
		return fmt.Errorf("creating workspace dir: %w", err)
	}
	if err := os.WriteFile(s.file, []byte(heartbeatTemplate), 0644); err != nil {
		return fmt.Errorf("seeding heartbeat file: %w", err)
	}
	return nil
}

// stamp rewrites the "Last heartbeat:" line with the current time, appending
// one if the file has none.
func (s *Service) stamp() {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		if strings.HasPrefix(line, "Last heartbeat:") {
			lines[i] = "Last heartbeat: " + now
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, "", "Last heartbeat: "+now)
	}
	if err := os.WriteFile(s.file, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		log.Printf("[heartbeat] failed to update stamp: %v", err)
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
