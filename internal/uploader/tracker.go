package uploader

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an upload task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is one tracked upload.
type Task struct {
	ID        string
	Name      string
	Size      int64
	Progress  int
	Status    Status
	Error     string
	StartedAt time.Time
}

func (t *Task) finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Tracker holds upload tasks. Status only moves forward: pending to
// uploading, then completed or failed. Finished tasks stay visible
// until dismissed.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Task)}
}

// Add registers a new pending task and returns its id.
func (t *Tracker) Add(name string, size int64) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.tasks[id] = &Task{
		ID:        id,
		Name:      name,
		Size:      size,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	t.order = append(t.order, id)
	return id
}

// Get returns a copy of the task.
func (t *Tracker) Get(id string) (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Snapshot returns copies of all tasks in insertion order.
func (t *Tracker) Snapshot() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Task, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.tasks[id])
	}
	return out
}

// Dismiss removes a finished task. In-flight tasks cannot be dismissed.
func (t *Tracker) Dismiss(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	if !task.finished() {
		return fmt.Errorf("task %s is still %s", id, task.Status)
	}

	delete(t.tasks, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func (t *Tracker) setUploading(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[id]; ok && task.Status == StatusPending {
		task.Status = StatusUploading
	}
}

func (t *Tracker) setProgress(id string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[id]; ok && task.Status == StatusUploading {
		task.Progress = progress
	}
}

func (t *Tracker) complete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[id]; ok && !task.finished() {
		task.Status = StatusCompleted
		task.Progress = 100
	}
}

func (t *Tracker) fail(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[id]; ok && !task.finished() {
		task.Status = StatusFailed
		task.Error = err.Error()
	}
}
