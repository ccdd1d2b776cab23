package toolbuiltin

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spoonos-ai/spoonbot/pkg/security"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

const (
	maxBackgroundTasks  = 50
	spawnTaskMaxOutput  = 10000
	defaultSpawnLabel   = "Background task"
	spawnTaskNameLength = 8
)

var spawnTaskSchema = &tool.JSONSchema{
	Type: "object",
	Properties: map[string]any{
		"action": map[string]any{
			"type":        "string",
			"enum":        []any{"run", "status", "output", "kill"},
			"description": "Action to perform",
		},
		"command": map[string]any{
			"type":        "string",
			"description": "Shell command to run in the background (run action)",
		},
		"label": map[string]any{
			"type":        "string",
			"description": "Label for the task",
		},
		"task_id": map[string]any{
			"type":        "string",
			"description": "Task ID for output/kill",
		},
	},
	Required: []string{"action"},
}

type backgroundTask struct {
	id      string
	label   string
	command string
	started time.Time
	output  *capWriter
	cancel  context.CancelFunc

	mu   sync.Mutex
	done bool
	err  error
}

func (t *backgroundTask) finish(err error) {
	t.mu.Lock()
	t.done = true
	t.err = err
	t.mu.Unlock()
}

func (t *backgroundTask) state() (done bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done, t.err
}

// SpawnTool runs validated shell commands in the background so the agent can
// keep working while they execute. Tasks run on a detached context and
// outlive the turn that spawned them.
type SpawnTool struct {
	validator *security.CommandValidator
	workdir   string

	mu    sync.RWMutex
	tasks map[string]*backgroundTask
}

// NewSpawnTool builds a spawn tool that validates commands with the given
// validator and runs them under workdir.
func NewSpawnTool(validator *security.CommandValidator, workdir string) *SpawnTool {
	if validator == nil {
		validator = security.NewCommandValidator()
	}
	return &SpawnTool{
		validator: validator,
		workdir:   workdir,
		tasks:     make(map[string]*backgroundTask),
	}
}

func (t *SpawnTool) Name() string { return "spawn_task" }

func (t *SpawnTool) Description() string {
	return `Run background tasks without blocking the conversation. Actions:
- run <command>: start a validated shell command in the background
- status: list all background tasks
- output <task_id>: get the current output of a task
- kill <task_id>: stop a running task`
}

func (t *SpawnTool) Schema() *tool.JSONSchema { return spawnTaskSchema }

func (t *SpawnTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, err := stringArg(args, "action")
	if err != nil {
		return "", err
	}
	command, err := optionalString(args, "command")
	if err != nil {
		return "", err
	}
	label, err := optionalString(args, "label")
	if err != nil {
		return "", err
	}
	taskID, err := optionalString(args, "task_id")
	if err != nil {
		return "", err
	}

	switch action {
	case "run":
		return t.run(command, label), nil
	case "status":
		return t.status(), nil
	case "output":
		return t.taskOutput(taskID), nil
	case "kill":
		return t.kill(taskID), nil
	default:
		return fmt.Sprintf("Unknown action: %s", action), nil
	}
}

func (t *SpawnTool) run(command, label string) string {
	if strings.TrimSpace(command) == "" {
		return "Error: 'command' is required for 'run' action"
	}
	if err := t.validator.Validate(command); err != nil {
		return fmt.Sprintf("Security Error: %s\nCommand: %s",
			err, t.validator.SanitizeForDisplay(command))
	}
	if label == "" {
		label = defaultSpawnLabel
	}

	t.mu.Lock()
	if t.runningLocked() >= maxBackgroundTasks {
		t.mu.Unlock()
		return fmt.Sprintf("Error: Background task limit reached (%d)", maxBackgroundTasks)
	}

	// Detached context: the task must survive the turn that spawned it.
	runCtx, cancel := context.WithCancel(context.Background())
	task := &backgroundTask{
		id:      uuid.NewString()[:spawnTaskNameLength],
		label:   label,
		command: command,
		started: time.Now(),
		output:  &capWriter{max: spawnTaskMaxOutput},
		cancel:  cancel,
	}
	t.tasks[task.id] = task
	t.mu.Unlock()

	go func() {
		defer cancel()
		cmd := shellCommand(runCtx, command)
		if t.workdir != "" {
			cmd.Dir = t.workdir
		}
		cmd.Env = os.Environ()
		cmd.Stdout = task.output
		cmd.Stderr = task.output

		err := cmd.Run()
		task.finish(err)
		if err != nil {
			log.Printf("[spawn] task %s failed: %v", task.id, err)
			return
		}
		log.Printf("[spawn] task %s completed", task.id)
	}()

	log.Printf("[spawn] started task %s: %s", task.id, t.validator.SanitizeForDisplay(command))
	return fmt.Sprintf("Spawned task %s: %s", task.id, label)
}

func (t *SpawnTool) status() string {
	t.mu.RLock()
	tasks := make([]*backgroundTask, 0, len(t.tasks))
	for _, task := range t.tasks {
		tasks = append(tasks, task)
	}
	t.mu.RUnlock()

	if len(tasks) == 0 {
		return "No background tasks"
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].started.Equal(tasks[j].started) {
			return tasks[i].id < tasks[j].id
		}
		return tasks[i].started.Before(tasks[j].started)
	})

	lines := []string{"Background tasks:"}
	for _, task := range tasks {
		status := "running"
		if done, err := task.state(); done {
			status = "completed"
			if err != nil {
				status = "failed"
			}
		}
		lines = append(lines, fmt.Sprintf("  [%s] %s: %s", task.id, task.label, status))
	}
	return strings.Join(lines, "\n")
}

func (t *SpawnTool) taskOutput(taskID string) string {
	if taskID == "" {
		return "Error: 'task_id' is required for 'output' action"
	}
	t.mu.RLock()
	task, ok := t.tasks[taskID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Task %s not found", taskID)
	}

	done, err := task.state()
	out := strings.TrimRight(task.output.String(), "\n")
	switch {
	case !done && out == "":
		return fmt.Sprintf("Task %s is still running", taskID)
	case !done:
		return fmt.Sprintf("Task %s is still running\n%s", taskID, out)
	case err != nil && out == "":
		return fmt.Sprintf("Task %s failed: %v", taskID, err)
	case err != nil:
		return fmt.Sprintf("Task %s failed: %v\n%s", taskID, err, out)
	case out == "":
		return fmt.Sprintf("Task %s completed (no output)", taskID)
	default:
		return fmt.Sprintf("Task %s completed:\n%s", taskID, out)
	}
}

func (t *SpawnTool) kill(taskID string) string {
	if taskID == "" {
		return "Error: 'task_id' is required for 'kill' action"
	}
	t.mu.RLock()
	task, ok := t.tasks[taskID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Task %s not found", taskID)
	}
	if done, _ := task.state(); done {
		return fmt.Sprintf("Task %s has already finished", taskID)
	}
	task.cancel()
	return fmt.Sprintf("Killed task %s", taskID)
}

func (t *SpawnTool) runningLocked() int {
	count := 0
	for _, task := range t.tasks {
		if done, _ := task.state(); !done {
			count++
		}
	}
	return count
}

// capWriter buffers subprocess output up to a fixed size, discarding the
// rest so a chatty task cannot exhaust memory.
type capWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

func (w *capWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
