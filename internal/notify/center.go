package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"go-der-dashboard/internal/metrics"
	"go-der-dashboard/internal/model"
)

// DefaultTTL is how long a notification stays visible
const DefaultTTL = 6 * time.Second

// Journal persists raised notifications
type Journal interface {
	SaveNotification(model.Notification) error
}

// Center holds short-lived user notifications and fans them out to subscribers
type Center struct {
	active  *expiremap.ExpireMap[string, model.Notification]
	ttl     time.Duration
	journal Journal
	log     *zap.SugaredLogger

	mu          sync.Mutex
	subscribers map[uint64]func(model.Notification)
	nextID      uint64
}

// New creates a notification center. The journal may be nil.
func New(ttl time.Duration, journal Journal, log *zap.SugaredLogger) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cull := ttl / 2
	if cull < 10*time.Millisecond {
		cull = 10 * time.Millisecond
	}
	return &Center{
		active:      expiremap.NewEx[string, model.Notification](cull, ttl),
		ttl:         ttl,
		journal:     journal,
		log:         log,
		subscribers: make(map[uint64]func(model.Notification)),
	}
}

// Notify raises a notification and returns it
func (c *Center) Notify(kind model.NotificationKind, message string, entity *model.Key) model.Notification {
	n := model.Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		Entity:    entity,
		CreatedAt: time.Now(),
	}
	c.active.Set(n.ID, n)
	metrics.Notifications.WithLabelValues(string(kind)).Inc()

	if kind == model.NotificationError {
		c.log.Warnw("Notification", "kind", kind, "message", message, "entity", entity)
	} else {
		c.log.Infow("Notification", "kind", kind, "message", message, "entity", entity)
	}

	if c.journal != nil {
		if err := c.journal.SaveNotification(n); err != nil {
			c.log.Warnw("Could not journal notification", "id", n.ID, "error", err)
		}
	}

	c.mu.Lock()
	subs := make([]func(model.Notification), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
	return n
}

// Get returns an active notification by id
func (c *Center) Get(id string) (model.Notification, bool) {
	n, ok := c.active.Load(id)
	if !ok || c.expired(*n) {
		return model.Notification{}, false
	}
	return *n, true
}

// Active returns the notifications still visible, oldest first
func (c *Center) Active() []model.Notification {
	out := []model.Notification{}
	c.active.Range(func(_ string, n model.Notification) bool {
		if !c.expired(n) {
			out = append(out, n)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (c *Center) expired(n model.Notification) bool {
	return time.Since(n.CreatedAt) > c.ttl
}

// Subscribe calls fn for every notification raised from now on
func (c *Center) Subscribe(fn func(model.Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}
