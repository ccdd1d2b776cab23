package heartbeat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewServiceDefaultSchedule(t *testing.T) {
	s := NewService(t.TempDir(), "")
	if s.schedule != DefaultSchedule {
		t.Errorf("schedule = %q, want %q", s.schedule, DefaultSchedule)
	}
}

func TestStartSeedsHeartbeatFile(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, "@every 1h")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	data, err := os.ReadFile(filepath.Join(dir, "HEARTBEAT.md"))
	if err != nil {
		t.Fatalf("HEARTBEAT.md should exist: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# Heartbeat Tasks") {
		t.Error("template heading missing")
	}
	if !strings.Contains(content, "Last heartbeat: Never") {
		t.Error("template status line missing")
	}
	if !s.Running() {
		t.Error("service should report running")
	}

	tasks := s.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("default tasks = %v, want 2", tasks)
	}
	if tasks[0] != "Check for new messages" {
		t.Errorf("tasks[0] = %q", tasks[0])
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	s := NewService(t.TempDir(), "every day at noon")
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
		s.Stop()
	}
}

func TestTasksParsing(t *testing.T) {
	dir := t.TempDir()
	raw := `# Heartbeat Tasks

## Periodic Tasks

- [ ] first task
- [x] already done
  - [ ] indented task
- [ ]
- not a task

Last heartbeat: Never
`
	if err := os.WriteFile(filepath.Join(dir, "HEARTBEAT.md"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewService(dir, "")
	tasks := s.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("tasks = %v, want 2", tasks)
	}
	if tasks[0] != "first task" || tasks[1] != "indented task" {
		t.Errorf("tasks = %v", tasks)
	}
}

func TestTasksMissingFile(t *testing.T) {
	s := NewService(t.TempDir(), "")
	if tasks := s.Tasks(); tasks != nil {
		t.Errorf("tasks = %v, want nil", tasks)
	}
}

func TestTriggerNow(t *testing.T) {
	dir := t.TempDir()
	raw := `- [ ] say hello
- [ ] fail please

Last heartbeat: Never
`
	if err := os.WriteFile(filepath.Join(dir, "HEARTBEAT.md"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewService(dir, "")
	s.SetHandler(func(ctx context.Context, task string) (string, error) {
		if strings.Contains(task, "fail") {
			return "", errors.New("boom")
		}
		return "hello to you", nil
	})

	results := s.TriggerNow(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2", results)
	}
	if results[0] != "say hello: hello to you..." {
		t.Errorf("results[0] = %q", results[0])
	}
	if results[1] != "fail please: Error - boom" {
		t.Errorf("results[1] = %q", results[1])
	}

	// The status stamp must be refreshed.
	data, err := os.ReadFile(filepath.Join(dir, "HEARTBEAT.md"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "Last heartbeat: Never") {
		t.Error("stamp should be updated")
	}
	if !strings.Contains(string(data), "Last heartbeat: "+time.Now().Format("2006-01-02")) {
		t.Error("stamp should carry today's date")
	}
}

func TestTriggerNowWithoutHandler(t *testing.T) {
	s := NewService(t.TempDir(), "")
	if results := s.TriggerNow(context.Background()); results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestStampAppendsWhenLineMissing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "HEARTBEAT.md"), []byte("- [ ] only task\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewService(dir, "")
	s.SetHandler(func(ctx context.Context, task string) (string, error) { return "ok", nil })
	s.TriggerNow(context.Background())

	data, err := os.ReadFile(filepath.Join(dir, "HEARTBEAT.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Last heartbeat: ") {
		t.Error("stamp line should be appended")
	}
}

func TestBeatSkipsStampWhenNoTasks(t *testing.T) {
	dir := t.TempDir()
	raw := "# Heartbeat Tasks\n\nLast heartbeat: Never\n"
	if err := os.WriteFile(filepath.Join(dir, "HEARTBEAT.md"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewService(dir, "")
	s.SetHandler(func(ctx context.Context, task string) (string, error) { return "ok", nil })
	s.beat()

	data, err := os.ReadFile(filepath.Join(dir, "HEARTBEAT.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Last heartbeat: Never") {
		t.Error("stamp should stay untouched when there is nothing to run")
	}
}

func TestScheduledBeatsStopAfterStop(t *testing.T) {
	dir := t.TempDir()
	raw := "- [ ] tick\n\nLast heartbeat: Never\n"
	if err := os.WriteFile(filepath.Join(dir, "HEARTBEAT.md"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	var beats atomic.Int32
	s := NewService(dir, "@every 50ms")
	s.SetHandler(func(ctx context.Context, task string) (string, error) {
		beats.Add(1)
		return "ok", nil
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for beats.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if beats.Load() == 0 {
		t.Fatal("expected at least one scheduled beat")
	}

	s.Stop()
	if s.Running() {
		t.Error("service should not report running after Stop")
	}
	after := beats.Load()
	time.Sleep(200 * time.Millisecond)
	if beats.Load() != after {
		t.Errorf("beats should stop after Stop; count changed from %d to %d", after, beats.Load())
	}
}
