package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/poller"
	"go-der-dashboard/internal/store"
)

type sentNotification struct {
	kind    model.NotificationKind
	message string
	entity  model.Key
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(kind model.NotificationKind, message string, entity *model.Key) model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{kind: kind, message: message, entity: *entity})
	return model.Notification{Kind: kind, Message: message, Entity: entity}
}

func (f *fakeNotifier) count(kind model.NotificationKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []model.MutationRecord
}

func (f *fakeRecorder) SaveMutation(r model.MutationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func setup(t *testing.T) (*store.Store, *Coordinator, *fakeNotifier, *fakeRecorder) {
	t.Helper()
	st := store.New(nil)
	n := &fakeNotifier{}
	r := &fakeRecorder{}
	require.NoError(t, st.UpsertOne(&model.Scenario{ID: "s1", Name: "A", MeterCount: 3}))
	return st, New(st, n, r, nil), n, r
}

func renameTo(name string) func(model.Entity) model.Entity {
	return func(e model.Entity) model.Entity {
		e.(*model.Scenario).Name = name
		return e
	}
}

func nameOf(t *testing.T, st *store.Store, id string) string {
	t.Helper()
	e, ok := st.GetOne(model.TypeScenario, id)
	require.True(t, ok)
	return e.(*model.Scenario).Name
}

var okRemote RemoteCall = func(context.Context, model.Entity) (Result, error) {
	return Result{OK: true, Status: 200}, nil
}

func TestMutateRollsBackOnRejectedCall(t *testing.T) {
	st, c, n, r := setup(t)
	s1, _ := st.GetOne(model.TypeScenario, "s1")

	err := c.Mutate(context.Background(), s1, renameTo("B"), func(context.Context, model.Entity) (Result, error) {
		return Result{}, errors.New("connection reset")
	}, RenameMessages)

	assert.ErrorIs(t, err, model.ErrNetworkFailure)
	assert.Equal(t, "A", nameOf(t, st, "s1"))
	assert.Equal(t, 1, n.count(model.NotificationError))
	assert.Equal(t, 0, n.count(model.NotificationSuccess))
	assert.Equal(t, "Rename failed! Please try again.", n.sent[0].message)

	require.Len(t, r.records, 1)
	assert.Equal(t, OutcomeRolledBack, r.records[0].Outcome)
	assert.Contains(t, r.records[0].Error, "connection reset")
}

func TestMutateRollsBackOnNonOKResult(t *testing.T) {
	st, c, n, _ := setup(t)
	s1, _ := st.GetOne(model.TypeScenario, "s1")

	err := c.Mutate(context.Background(), s1, renameTo("B"), func(context.Context, model.Entity) (Result, error) {
		return Result{OK: false, Status: 400}, nil
	}, RenameMessages)

	var netErr *model.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 400, netErr.Status)
	assert.Equal(t, "A", nameOf(t, st, "s1"))
	assert.Equal(t, 1, n.count(model.NotificationError))
}

func TestMutateCommits(t *testing.T) {
	st, c, n, r := setup(t)
	s1, _ := st.GetOne(model.TypeScenario, "s1")

	var seenDuringCall string
	err := c.Mutate(context.Background(), s1, renameTo("B"), func(ctx context.Context, e model.Entity) (Result, error) {
		seenDuringCall = nameOf(t, st, "s1")
		return Result{OK: true}, nil
	}, RenameMessages)

	require.NoError(t, err)
	assert.Equal(t, "B", seenDuringCall)
	assert.Equal(t, "B", nameOf(t, st, "s1"))
	assert.Equal(t, 1, n.count(model.NotificationSuccess))
	assert.Equal(t, 0, n.count(model.NotificationError))
	require.Len(t, r.records, 1)
	assert.Equal(t, OutcomeCommitted, r.records[0].Outcome)
}

func TestRollbackOverwritesWholeEntity(t *testing.T) {
	st, c, _, _ := setup(t)
	orig, _, err := st.Snapshot(model.TypeScenario, "s1")
	require.NoError(t, err)

	err = c.Mutate(context.Background(), orig, func(e model.Entity) model.Entity {
		s := e.(*model.Scenario)
		s.Name = "B"
		s.MeterCount = 99
		s.ReportSummary = map[string]interface{}{"partial": true}
		return s
	}, func(context.Context, model.Entity) (Result, error) {
		return Result{Status: 500}, nil
	}, Messages{Failure: "failed"})
	require.Error(t, err)

	after, _ := st.GetOne(model.TypeScenario, "s1")
	assert.Equal(t, orig, after)
}

func TestRollbackOfVanishedEntityIsNotReinserted(t *testing.T) {
	st, c, n, r := setup(t)
	s1, _ := st.GetOne(model.TypeScenario, "s1")

	err := c.Mutate(context.Background(), s1, renameTo("B"), func(context.Context, model.Entity) (Result, error) {
		st.RemoveOne(model.Key{Type: model.TypeScenario, ID: "s1"})
		return Result{}, errors.New("gone")
	}, RenameMessages)

	assert.ErrorIs(t, err, model.ErrNetworkFailure)
	_, ok := st.GetOne(model.TypeScenario, "s1")
	assert.False(t, ok)
	assert.Equal(t, 1, n.count(model.NotificationError))
	require.Len(t, r.records, 1)
	assert.Equal(t, OutcomeRollbackFailed, r.records[0].Outcome)
}

func TestMutateRejectsKeyChanges(t *testing.T) {
	st, c, n, _ := setup(t)
	s1, _ := st.GetOne(model.TypeScenario, "s1")

	err := c.Mutate(context.Background(), s1, func(e model.Entity) model.Entity {
		return &model.Scenario{ID: "other"}
	}, okRemote, RenameMessages)

	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Equal(t, "A", nameOf(t, st, "s1"))
	assert.Empty(t, n.sent)
}

func TestMutateMissingEntity(t *testing.T) {
	_, c, _, _ := setup(t)
	err := c.Mutate(context.Background(), &model.Scenario{ID: "nope"}, renameTo("B"), okRemote, RenameMessages)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemotePanicRollsBack(t *testing.T) {
	st, c, n, _ := setup(t)
	s1, _ := st.GetOne(model.TypeScenario, "s1")

	err := c.Mutate(context.Background(), s1, renameTo("B"), func(context.Context, model.Entity) (Result, error) {
		panic("boom")
	}, RenameMessages)

	assert.ErrorIs(t, err, model.ErrNetworkFailure)
	assert.Equal(t, "A", nameOf(t, st, "s1"))
	assert.Equal(t, 1, n.count(model.NotificationError))
}

func TestDelete(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		st, c, n, _ := setup(t)
		s1, _ := st.GetOne(model.TypeScenario, "s1")

		var presentDuringCall bool
		err := c.Delete(context.Background(), s1, func(context.Context, model.Entity) (Result, error) {
			_, presentDuringCall = st.GetOne(model.TypeScenario, "s1")
			return Result{OK: true, Status: 204}, nil
		}, DeleteMessages)

		require.NoError(t, err)
		assert.False(t, presentDuringCall)
		_, ok := st.GetOne(model.TypeScenario, "s1")
		assert.False(t, ok)
		assert.Equal(t, 1, n.count(model.NotificationSuccess))
	})

	t.Run("rollback reinserts the snapshot", func(t *testing.T) {
		st, c, n, _ := setup(t)
		s1, _ := st.GetOne(model.TypeScenario, "s1")

		err := c.Delete(context.Background(), s1, func(context.Context, model.Entity) (Result, error) {
			return Result{Status: 403}, nil
		}, DeleteMessages)

		assert.ErrorIs(t, err, model.ErrNetworkFailure)
		assert.Equal(t, "A", nameOf(t, st, "s1"))
		assert.Equal(t, 1, n.count(model.NotificationError))
		assert.Equal(t, "Delete failed! Please try again.", n.sent[0].message)
	})
}

func TestRename(t *testing.T) {
	st, c, n, _ := setup(t)
	key := model.Key{Type: model.TypeScenario, ID: "s1"}

	require.NoError(t, c.Rename(context.Background(), key, "  Summer peak  ", okRemote))
	assert.Equal(t, "Summer peak", nameOf(t, st, "s1"))
	assert.Equal(t, "Rename successful!", n.sent[0].message)

	assert.ErrorIs(t, c.Rename(context.Background(), key, " ", okRemote), model.ErrInvalidArgument)
	assert.ErrorIs(t, c.Rename(context.Background(), model.Key{Type: model.TypeScenario, ID: "x"}, "n", okRemote), model.ErrNotFound)

	require.NoError(t, st.UpsertOne(&model.RatePlan{ID: "r1", Name: "E-19"}))
	err := c.Rename(context.Background(), model.Key{Type: model.TypeRatePlan, ID: "r1"}, "n", okRemote)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestConcurrentMutationsOnOneEntityAreSerialized(t *testing.T) {
	st, c, _, _ := setup(t)
	key := model.Key{Type: model.TypeScenario, ID: "s1"}

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var mu sync.Mutex
	var order []string

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = c.Rename(context.Background(), key, "first", func(context.Context, model.Entity) (Result, error) {
			close(firstStarted)
			<-release
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			return Result{}, errors.New("rejected")
		})
	}()

	<-firstStarted
	go func() {
		defer wg.Done()
		_ = c.Rename(context.Background(), key, "second", func(context.Context, model.Entity) (Result, error) {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return Result{OK: true}, nil
		})
	}()

	// the second rename must wait for the first to settle
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "first", nameOf(t, st, "s1"))
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "second", nameOf(t, st, "s1"))
}

func TestPendingCoversTheRemoteCall(t *testing.T) {
	st, c, _, _ := setup(t)
	key := model.Key{Type: model.TypeScenario, ID: "s1"}
	s1, _ := st.GetOne(model.TypeScenario, "s1")

	var during bool
	require.NoError(t, c.Mutate(context.Background(), s1, renameTo("B"), func(context.Context, model.Entity) (Result, error) {
		during = c.Pending(key)
		return Result{OK: true}, nil
	}, RenameMessages))

	assert.True(t, during)
	assert.False(t, c.Pending(key))
}

func TestPollDuringRenameKeepsOptimisticName(t *testing.T) {
	completeOnServer := func(context.Context, []string) ([]model.Pollable, error) {
		return []model.Pollable{&model.Scenario{ID: "s1", Name: "A", MeterCount: 3, Progress: model.Progress{IsComplete: true, PercentComplete: 100}}}, nil
	}
	key := model.Key{Type: model.TypeScenario, ID: "s1"}

	t.Run("commit", func(t *testing.T) {
		st, c, _, _ := setup(t)
		p := poller.New(st, poller.Config{Interval: time.Hour, Pending: c.Pending}, nil)
		require.NoError(t, p.RegisterPollableType(model.TypeScenario, completeOnServer))
		defer p.Close()
		require.True(t, p.IsTracked(model.TypeScenario, "s1"))

		err := c.Rename(context.Background(), key, "B", func(ctx context.Context, _ model.Entity) (Result, error) {
			p.Tick(ctx)
			return Result{OK: true}, nil
		})
		require.NoError(t, err)

		e, _ := st.GetOne(model.TypeScenario, "s1")
		assert.Equal(t, "B", e.(*model.Scenario).Name)
		assert.True(t, e.(*model.Scenario).Progress.IsComplete)
		assert.False(t, p.IsTracked(model.TypeScenario, "s1"))
	})

	t.Run("rollback tracks the restored entity again", func(t *testing.T) {
		st, c, n, _ := setup(t)
		p := poller.New(st, poller.Config{Interval: time.Hour, Pending: c.Pending}, nil)
		require.NoError(t, p.RegisterPollableType(model.TypeScenario, completeOnServer))
		defer p.Close()

		err := c.Rename(context.Background(), key, "B", func(ctx context.Context, _ model.Entity) (Result, error) {
			p.Tick(ctx)
			return Result{Status: 500}, nil
		})
		assert.ErrorIs(t, err, model.ErrNetworkFailure)
		assert.Equal(t, "A", nameOf(t, st, "s1"))
		assert.Equal(t, 1, n.count(model.NotificationError))

		// the restored snapshot predates the poll, so the next tick refreshes it
		assert.True(t, p.IsTracked(model.TypeScenario, "s1"))
		p.Tick(context.Background())
		e, _ := st.GetOne(model.TypeScenario, "s1")
		assert.True(t, e.(*model.Scenario).Progress.IsComplete)
		assert.False(t, p.IsTracked(model.TypeScenario, "s1"))
	})
}
