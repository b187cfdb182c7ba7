package poller

import (
	"context"
	"sort"

	"github.com/looplab/fsm"

	"go-der-dashboard/internal/metrics"
	"go-der-dashboard/internal/model"
)

// Per-id states. An id leaves the set as soon as it reaches stateUntracked.
const (
	stateTracked   = "tracked"
	stateUntracked = "untracked"

	eventComplete = "complete"
	eventRemove   = "remove"
)

// trackedSet is the tracked-id set of one pollable type.
// It is not safe for concurrent use; the poller guards it with its own mutex.
type trackedSet struct {
	typ model.Type
	ids map[string]*fsm.FSM
}

func newTrackedSet(t model.Type) *trackedSet {
	return &trackedSet{typ: t, ids: make(map[string]*fsm.FSM)}
}

func (s *trackedSet) newMachine(id string) *fsm.FSM {
	return fsm.NewFSM(
		stateTracked,
		fsm.Events{
			{Name: eventComplete, Src: []string{stateTracked}, Dst: stateUntracked},
			{Name: eventRemove, Src: []string{stateTracked}, Dst: stateUntracked},
		},
		fsm.Callbacks{
			"enter_" + stateUntracked: func(_ context.Context, _ *fsm.Event) {
				delete(s.ids, id)
			},
		},
	)
}

// track adds id and reports whether it was not tracked before
func (s *trackedSet) track(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = s.newMachine(id)
	s.updateGauge()
	return true
}

// complete untracks id because its job finished
func (s *trackedSet) complete(id string) bool {
	return s.fire(id, eventComplete)
}

// remove untracks id because the entity left the store
func (s *trackedSet) remove(id string) bool {
	return s.fire(id, eventRemove)
}

func (s *trackedSet) fire(id, event string) bool {
	m, ok := s.ids[id]
	if !ok {
		return false
	}
	if err := m.Event(context.Background(), event); err != nil {
		return false
	}
	s.updateGauge()
	return true
}

func (s *trackedSet) contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *trackedSet) len() int {
	return len(s.ids)
}

// list returns the tracked ids in ascending order
func (s *trackedSet) list() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *trackedSet) updateGauge() {
	metrics.PollerTrackedIDs.WithLabelValues(string(s.typ)).Set(float64(len(s.ids)))
}
