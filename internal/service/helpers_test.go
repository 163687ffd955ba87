package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/database"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/sandbox"
	"github.com/jask/rlaconsole/internal/task"
)

// recorder keeps every result a coordinator publishes.
type recorder[T any] struct {
	mu  sync.Mutex
	got []api.Result[T]
}

func (r *recorder[T]) record(res api.Result[T]) {
	r.mu.Lock()
	r.got = append(r.got, res)
	r.mu.Unlock()
}

func (r *recorder[T]) errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []error
	for _, g := range r.got {
		if !g.OK() {
			out = append(out, g.Err)
		}
	}
	return out
}

type mockTasks struct {
	mock.Mock
}

func (m *mockTasks) GetTaskStatus(ctx context.Context, ref api.ResourceRef) (*task.BackgroundTask, error) {
	args := m.Called(ctx, ref)
	t, _ := args.Get(0).(*task.BackgroundTask)
	return t, args.Error(1)
}

func at(min int) time.Time {
	return time.Date(2026, 3, 1, 9, min, 0, 0, time.UTC)
}

func runningTask() *task.BackgroundTask { return task.Started(at(0)) }

func completeTask() *task.BackgroundTask {
	t := task.Started(at(0))
	done := at(1)
	t.CompletedAt = &done
	return t
}

func erroredTask(msg string) *task.BackgroundTask {
	t := task.Started(at(0))
	t.Error = &msg
	return t
}

// tick waits for the loop to sleep on the fake clock and wakes it.
func tick(t *testing.T, fc clockwork.FakeClock, d time.Duration) {
	t.Helper()
	sleeping := make(chan struct{})
	go func() {
		fc.BlockUntil(1)
		close(sleeping)
	}()
	select {
	case <-sleeping:
		fc.Advance(d)
	case <-time.After(2 * time.Second):
		t.Fatal("loop never slept")
	}
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newSandboxStore(t *testing.T, fc clockwork.Clock, sc sandbox.Scenario) *sandbox.Store {
	t.Helper()
	s := sandbox.NewStore(sandbox.Config{
		Clock:          fc,
		RosterDuration: 3 * time.Second,
		DrawDuration:   5 * time.Second,
		NewID:          sequentialIDs("u"),
		NewPassphrase:  func() string { return "fixed-test-passphrase" },
		NewCode:        func() string { return "123" },
	})
	require.NoError(t, s.Load(sc))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "activity.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Journal{Activity: repository.NewActivityRepo(db)}
}
