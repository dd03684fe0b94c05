// Package jobmgr runs long-lived jobs, such as platform connections, in their
// own goroutines with cancellation, status callbacks and in-memory tracking.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(ctx, nil)
//	_ = jm.StartAsync("twitch", conn.Run)
//	...
//	err := jm.Wait()
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Job represents a running unit of work.
type Job struct {
	Name   string
	Cancel context.CancelFunc
}

// StatusReporter receives lifecycle events for jobs:
//
//	running:twitch
//	error:twitch:connection refused
//	done:twitch
type StatusReporter func(string)

// LogReporter logs lifecycle events through zerolog.
func LogReporter(s string) {
	state, rest, _ := strings.Cut(s, ":")
	name, msg, _ := strings.Cut(rest, ":")
	ev := log.Info()
	if state == "error" {
		ev = log.Error().Str("error", msg)
	}
	ev.Str("component", "jobmgr").Str("job", name).Msg(state)
}

// Manager orchestrates starting, stopping and tracking jobs. It is safe for
// concurrent use.
type Manager struct {
	parent   context.Context
	mu       sync.Mutex
	jobs     map[string]*Job
	errs     []error
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a Manager whose jobs are cancelled with parent. A nil
// reporter logs through zerolog.
func NewManager(parent context.Context, reporter StatusReporter) *Manager {
	if reporter == nil {
		reporter = LogReporter
	}
	return &Manager{
		parent:   parent,
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// StartAsync runs a job in a separate goroutine and returns immediately. If
// a job with the same name is already running, an error is returned. Jobs
// are removed automatically after completion.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job '%s' is already running", name)
	}

	ctx, cancel := context.WithCancel(m.parent)
	job := &Job{Name: name, Cancel: cancel}
	m.jobs[name] = job
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer cancel()
		m.report("running:" + name)

		err := runner(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		if err != nil && !errors.Is(err, context.Canceled) {
			m.errs = append(m.errs, fmt.Errorf("%s: %w", name, err))
		}
		if m.jobs[name] == job {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// Wait blocks until every job has returned and reports their failures.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.errs...)
}

// List returns the sorted names of active jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of active jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
