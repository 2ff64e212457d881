package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/bool64/ctxd"
)

var (
	ErrEmptyName = errors.New("pipeline: run name is required")
	errNullEntry = errors.New("pipeline: entry is null")
)

// Run is the state of one execution of a task: its configuration and the
// entries gathered so far.
type Run struct {
	name   string
	config map[string]any
	log    ctxd.Logger

	mu       sync.Mutex
	entries  []Entry
	progress []string
	warnings []string
	aborted  bool
}

// NewRun prepares a run for the named task. config may be nil.
func NewRun(name string, config map[string]any, logger ctxd.Logger) (*Run, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if config == nil {
		config = map[string]any{}
	}
	if logger == nil {
		logger = ctxd.NoOpLogger{}
	}
	return &Run{name: name, config: config, log: logger}, nil
}

func (r *Run) Name() string { return r.name }

// Config returns the task configuration. Callers must not mutate it.
func (r *Run) Config() map[string]any { return r.config }

// Entries returns a snapshot of the entries gathered so far.
func (r *Run) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// AddEntry appends an entry to the run.
func (r *Run) AddEntry(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// FindEntry reports whether an entry with both the given title and url is present.
func (r *Run) FindEntry(title, url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Title() == title && e.URL() == url {
			return true
		}
	}
	return false
}

// ReportProgress records a user visible, non-fatal notice.
func (r *Run) ReportProgress(msg string) {
	r.mu.Lock()
	r.progress = append(r.progress, msg)
	r.mu.Unlock()
	r.log.Info(context.Background(), msg, "task", r.name)
}

// Warn records a user visible warning that does not stop the run.
func (r *Run) Warn(ctx context.Context, msg string, keysAndValues ...interface{}) {
	r.mu.Lock()
	r.warnings = append(r.warnings, msg)
	r.mu.Unlock()
	r.log.Warn(ctx, msg, append([]interface{}{"task", r.name}, keysAndValues...)...)
}

func (r *Run) Progress() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.progress...)
}

func (r *Run) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// Aborted reports whether the run was aborted by a failing plugin.
func (r *Run) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

func (r *Run) markAborted() {
	r.mu.Lock()
	r.aborted = true
	r.mu.Unlock()
}
