package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-der-dashboard/internal/model"
)

func scenario(id, name string) *model.Scenario {
	return &model.Scenario{ID: id, Name: name}
}

func TestUpsertReplacesInPlace(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.UpsertOne(scenario("s1", "A")))
	require.NoError(t, s.UpsertOne(scenario("s1", "B")))

	all := s.GetAll(model.TypeScenario)
	require.Len(t, all, 1)
	assert.Equal(t, scenario("s1", "B"), all[0])
}

func TestSameIDDifferentTypes(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.UpsertMany([]model.Entity{
		scenario("x", "study"),
		&model.MeterGroup{ID: "x", Name: "group"},
	}))

	sc, ok := s.GetOne(model.TypeScenario, "x")
	require.True(t, ok)
	assert.Equal(t, "study", sc.(*model.Scenario).Name)

	mg, ok := s.GetOne(model.TypeMeterGroup, "x")
	require.True(t, ok)
	assert.Equal(t, "group", mg.(*model.MeterGroup).Name)
}

func TestGetAllOrderedByID(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.UpsertMany([]model.Entity{scenario("c", ""), scenario("a", ""), scenario("b", "")}))

	var ids []string
	for _, e := range s.GetAll(model.TypeScenario) {
		ids = append(ids, e.EntityID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Empty(t, s.GetAll(model.TypeRatePlan))
}

func TestUpsertRejectsInvalid(t *testing.T) {
	s := New(nil)

	assert.ErrorIs(t, s.UpsertOne(nil), model.ErrInvalidArgument)
	assert.ErrorIs(t, s.UpsertOne((*model.Scenario)(nil)), model.ErrInvalidArgument)
	assert.ErrorIs(t, s.UpsertOne(scenario("", "no id")), model.ErrInvalidArgument)

	// a bad entity anywhere in the batch rejects the whole batch
	err := s.UpsertMany([]model.Entity{scenario("ok", ""), scenario("", "")})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Equal(t, 0, s.Count(model.TypeScenario))
}

func TestRemoveOne(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.UpsertOne(scenario("s1", "A")))

	var events []Event
	s.Subscribe(model.TypeScenario, func(ev Event) { events = append(events, ev) })

	s.RemoveOne(model.Key{Type: model.TypeScenario, ID: "s1"})
	s.RemoveOne(model.Key{Type: model.TypeScenario, ID: "s1"})

	_, ok := s.GetOne(model.TypeScenario, "s1")
	assert.False(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, OpRemove, events[0].Op)
	assert.Equal(t, []string{"s1"}, events[0].IDs)
}

func TestReplaceAll(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.UpsertMany([]model.Entity{scenario("old", ""), scenario("keep", "v1")}))

	require.NoError(t, s.ReplaceAll(model.TypeScenario, []model.Entity{scenario("keep", "v2"), scenario("new", "")}))

	_, ok := s.GetOne(model.TypeScenario, "old")
	assert.False(t, ok)
	keep, _ := s.GetOne(model.TypeScenario, "keep")
	assert.Equal(t, "v2", keep.(*model.Scenario).Name)
	assert.Equal(t, 2, s.Count(model.TypeScenario))

	err := s.ReplaceAll(model.TypeScenario, []model.Entity{&model.RatePlan{ID: "r1"}})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Equal(t, 2, s.Count(model.TypeScenario))
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New(nil)
	orig := &model.Scenario{
		ID:            "s1",
		Name:          "A",
		Report:        model.ColumnFrame{"kw": {1.0, 2.0}},
		ReportSummary: map[string]interface{}{"savings": 10.0},
	}
	require.NoError(t, s.UpsertOne(orig))

	snap, ok, err := s.Snapshot(model.TypeScenario, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	cp := snap.(*model.Scenario)
	assert.Equal(t, orig, cp)
	assert.NotSame(t, orig, cp)

	cp.Name = "B"
	cp.Report["kw"][0] = 99.0
	cp.ReportSummary["savings"] = 0.0
	assert.Equal(t, "A", orig.Name)
	assert.Equal(t, 1.0, orig.Report["kw"][0])
	assert.Equal(t, 10.0, orig.ReportSummary["savings"])

	_, ok, err = s.Snapshot(model.TypeScenario, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObserversSeeAppliedState(t *testing.T) {
	s := New(nil)

	var seen []string
	unsubscribe := s.Subscribe(model.TypeScenario, func(ev Event) {
		// the whole batch is visible when the observer runs
		seen = append(seen, fmt.Sprintf("%s:%d", ev.Op, s.Count(model.TypeScenario)))
	})
	otherType := 0
	s.Subscribe(model.TypeRatePlan, func(Event) { otherType++ })

	require.NoError(t, s.UpsertMany([]model.Entity{scenario("a", ""), scenario("b", "")}))
	s.RemoveOne(model.Key{Type: model.TypeScenario, ID: "a"})
	require.NoError(t, s.ReplaceAll(model.TypeScenario, nil))

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.UpsertOne(scenario("c", "")))

	assert.Equal(t, []string{"upsert:2", "remove:1", "replace:0"}, seen)
	assert.Equal(t, 0, otherType)
}

func TestObserverPanicIsContained(t *testing.T) {
	s := New(nil)
	calls := 0
	s.Subscribe(model.TypeScenario, func(Event) { panic("boom") })
	s.Subscribe(model.TypeScenario, func(Event) { calls++ })

	require.NoError(t, s.UpsertOne(scenario("s1", "")))
	assert.Equal(t, 1, calls)
}

func TestConcurrentEventsArriveInMutationOrder(t *testing.T) {
	s := New(nil)

	var mu sync.Mutex
	var names []string
	s.Subscribe(model.TypeScenario, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, ev.Entities[0].(*model.Scenario).Name)
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.UpsertOne(scenario("s1", fmt.Sprintf("v%d", i)))
		}(i)
	}
	wg.Wait()

	// the last event delivered must describe the state the store ended in
	last, _ := s.GetOne(model.TypeScenario, "s1")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, names, 50)
	assert.Equal(t, last.(*model.Scenario).Name, names[len(names)-1])
}

func TestMergeManyDecidesUnderTheLock(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.UpsertMany([]model.Entity{scenario("a", "A"), scenario("b", "B")}))

	var events []Event
	s.Subscribe(model.TypeScenario, func(ev Event) { events = append(events, ev) })

	applied, err := s.MergeMany([]model.Entity{
		scenario("a", "A2"),
		scenario("b", "B2"),
		scenario("gone", "G"),
	}, func(current, incoming model.Entity) model.Entity {
		switch {
		case current == nil:
			return nil
		case current.EntityID() == "b":
			return current
		}
		return incoming
	})
	require.NoError(t, err)
	require.Len(t, applied, 2)

	a, _ := s.GetOne(model.TypeScenario, "a")
	assert.Equal(t, "A2", a.(*model.Scenario).Name)
	b, _ := s.GetOne(model.TypeScenario, "b")
	assert.Equal(t, "B", b.(*model.Scenario).Name)
	_, ok := s.GetOne(model.TypeScenario, "gone")
	assert.False(t, ok)

	require.Len(t, events, 1)
	assert.Equal(t, []string{"a", "b"}, events[0].IDs)
}

func TestMergeManyDropsEverything(t *testing.T) {
	s := New(nil)
	var events int
	s.Subscribe(model.TypeScenario, func(Event) { events++ })

	applied, err := s.MergeMany([]model.Entity{scenario("a", "A")}, func(current, _ model.Entity) model.Entity { return current })
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Zero(t, events)

	_, err = s.MergeMany(nil, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
