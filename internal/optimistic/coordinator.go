package optimistic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-der-dashboard/internal/metrics"
	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/store"
)

// Result is the server's answer to a mutation request
type Result struct {
	OK     bool `json:"ok"`
	Status int  `json:"status,omitempty"`
}

// RemoteCall sends a mutation of e to the server
type RemoteCall func(ctx context.Context, e model.Entity) (Result, error)

// Messages are the user-visible texts raised on success and on failure.
// An empty message raises no notification for that outcome.
type Messages struct {
	Success string
	Failure string
}

var (
	RenameMessages = Messages{Success: "Rename successful!", Failure: "Rename failed! Please try again."}
	DeleteMessages = Messages{Success: "Delete successful!", Failure: "Delete failed! Please try again."}
)

// Notifier surfaces mutation outcomes to the user
type Notifier interface {
	Notify(kind model.NotificationKind, message string, entity *model.Key) model.Notification
}

// Recorder keeps a journal of mutation outcomes
type Recorder interface {
	SaveMutation(model.MutationRecord) error
}

// Mutation outcomes recorded in the journal
const (
	OutcomeCommitted      = "committed"
	OutcomeRolledBack     = "rolled_back"
	OutcomeRollbackFailed = "rollback_failed"

	opUpdate = "update"
	opDelete = "delete"
)

// Coordinator applies user mutations to the store before the server confirms them
// and restores the previous state when the server refuses.
//
// Mutations of the same (type, id) run one after another; the second waits until the
// first has committed or rolled back and then starts from the state the first left.
type Coordinator struct {
	store    *store.Store
	notifier Notifier
	recorder Recorder
	log      *zap.SugaredLogger
	locks    *keyLock
}

// New creates a coordinator. The recorder may be nil.
func New(st *store.Store, notifier Notifier, recorder Recorder, log *zap.SugaredLogger) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{
		store:    st,
		notifier: notifier,
		recorder: recorder,
		log:      log,
		locks:    newKeyLock(),
	}
}

// Mutate applies localUpdate to the stored copy of e, then awaits remote.
// On failure the entity is overwritten with its pre-mutation snapshot and one failure
// notification is raised. The returned error is a network failure in that case, and
// nil once the server has accepted the change.
func (c *Coordinator) Mutate(ctx context.Context, e model.Entity, localUpdate func(model.Entity) model.Entity, remote RemoteCall, msgs Messages) error {
	if e == nil || localUpdate == nil || remote == nil {
		return fmt.Errorf("%w: mutate needs an entity, a local update and a remote call", model.ErrInvalidArgument)
	}
	key := model.KeyOf(e)
	unlock := c.locks.lock(key)
	defer unlock()

	started := time.Now()
	before, ok, err := c.store.Snapshot(key.Type, key.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mutate %s: %w", key, model.ErrNotFound)
	}

	working, err := store.Clone(before)
	if err != nil {
		return err
	}
	updated := localUpdate(working)
	if updated == nil || model.KeyOf(updated) != key {
		return fmt.Errorf("%w: local update of %s must keep the entity key", model.ErrInvalidArgument, key)
	}
	if err := c.store.UpsertOne(updated); err != nil {
		return err
	}

	remoteErr := c.call(ctx, key, opUpdate, updated, remote)
	if remoteErr == nil {
		c.finish(key, opUpdate, OutcomeCommitted, nil, started, model.NotificationSuccess, msgs.Success)
		return nil
	}

	outcome := OutcomeRolledBack
	if _, present := c.store.GetOne(key.Type, key.ID); present {
		if err := c.store.UpsertOne(before); err != nil {
			outcome = OutcomeRollbackFailed
			c.log.Errorw("Rollback failed", "entity", key, "error", err)
		}
	} else {
		outcome = OutcomeRollbackFailed
		c.log.Errorw("Rollback failed", "entity", key, "error", fmt.Errorf("%w: %s left the store", model.ErrRollbackFailure, key))
	}
	c.finish(key, opUpdate, outcome, remoteErr, started, model.NotificationError, msgs.Failure)
	return remoteErr
}

// Delete removes e from the store, then awaits remote.
// On failure the pre-deletion snapshot is put back.
func (c *Coordinator) Delete(ctx context.Context, e model.Entity, remote RemoteCall, msgs Messages) error {
	if e == nil || remote == nil {
		return fmt.Errorf("%w: delete needs an entity and a remote call", model.ErrInvalidArgument)
	}
	key := model.KeyOf(e)
	unlock := c.locks.lock(key)
	defer unlock()

	started := time.Now()
	before, ok, err := c.store.Snapshot(key.Type, key.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", key, model.ErrNotFound)
	}

	c.store.RemoveOne(key)

	remoteErr := c.call(ctx, key, opDelete, before, remote)
	if remoteErr == nil {
		c.finish(key, opDelete, OutcomeCommitted, nil, started, model.NotificationSuccess, msgs.Success)
		return nil
	}

	outcome := OutcomeRolledBack
	if err := c.store.UpsertOne(before); err != nil {
		outcome = OutcomeRollbackFailed
		c.log.Errorw("Rollback failed", "entity", key, "error", err)
	}
	c.finish(key, opDelete, outcome, remoteErr, started, model.NotificationError, msgs.Failure)
	return remoteErr
}

// Pending reports whether a mutation of key is applied or queued but not yet settled.
// The poller uses it to keep optimistic values while refreshing progress.
func (c *Coordinator) Pending(key model.Key) bool {
	return c.locks.busy(key)
}

// Rename is the dashboard's rename flow on top of Mutate
func (c *Coordinator) Rename(ctx context.Context, key model.Key, name string, remote RemoteCall) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", model.ErrInvalidArgument)
	}
	e, ok := c.store.GetOne(key.Type, key.ID)
	if !ok {
		return fmt.Errorf("rename %s: %w", key, model.ErrNotFound)
	}
	if _, ok := e.(model.Renamable); !ok {
		return fmt.Errorf("%w: %s cannot be renamed", model.ErrInvalidArgument, key.Type)
	}

	return c.Mutate(ctx, e, func(x model.Entity) model.Entity {
		x.(model.Renamable).SetName(name)
		return x
	}, remote, RenameMessages)
}

// call runs remote and folds every kind of refusal into a network failure
func (c *Coordinator) call(ctx context.Context, key model.Key, op string, e model.Entity, remote RemoteCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.NetworkError{Op: op + " " + key.String(), Err: fmt.Errorf("remote call panicked: %v", r)}
		}
	}()

	res, err := remote(ctx, e)
	switch {
	case err != nil && errors.Is(err, model.ErrNetworkFailure):
		return err
	case err != nil:
		return &model.NetworkError{Op: op + " " + key.String(), Status: res.Status, Err: err}
	case !res.OK:
		return &model.NetworkError{Op: op + " " + key.String(), Status: res.Status, Err: errors.New("request refused")}
	}
	return nil
}

func (c *Coordinator) finish(key model.Key, op, outcome string, cause error, started time.Time, kind model.NotificationKind, message string) {
	metrics.Mutations.WithLabelValues(string(key.Type), op, outcome).Inc()

	if outcome == OutcomeCommitted {
		c.log.Infow("Mutation committed", "entity", key, "op", op)
	} else {
		c.log.Warnw("Mutation rolled back", "entity", key, "op", op, "outcome", outcome, "error", cause)
	}

	if message != "" && c.notifier != nil {
		k := key
		c.notifier.Notify(kind, message, &k)
	}

	if c.recorder == nil {
		return
	}
	rec := model.MutationRecord{
		ID:         uuid.New().String(),
		Entity:     key,
		Op:         op,
		Outcome:    outcome,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := c.recorder.SaveMutation(rec); err != nil {
		c.log.Warnw("Could not journal mutation", "entity", key, "error", err)
	}
}
