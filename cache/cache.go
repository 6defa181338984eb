package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/model/user"
)

const (
	UserTTL = time.Hour
	RoleTTL = time.Hour
	TaskTTL = time.Hour

	cleanupInterval = 10 * time.Minute
)

// TTLCache is an in-process cache of values of a single type. Values are
// copied in and out so callers can't modify cached entries.
type TTLCache[T any] struct {
	ttl   time.Duration
	cache *gocache.Cache
}

func NewTTLCache[T any](ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{ttl: ttl, cache: gocache.New(ttl, cleanupInterval)}
}

func (c *TTLCache[T]) Get(key string) (T, bool) {
	val, ok := c.cache.Get(key)
	if !ok {
		return *new(T), false
	}
	out, ok := val.(T)
	return out, ok
}

func (c *TTLCache[T]) Set(key string, val T) {
	c.cache.Set(key, val, c.ttl)
}

func (c *TTLCache[T]) Clear(key string) {
	c.cache.Delete(key)
}

func (c *TTLCache[T]) Flush() {
	c.cache.Flush()
}

func (c *TTLCache[T]) Len() int {
	return c.cache.ItemCount()
}

// Caches holds the caches shared by the REST handlers and the auth
// middleware.
type Caches struct {
	Users *TTLCache[user.User]
	Roles *TTLCache[[]scrapedash.UserRole]
	Tasks *TTLCache[task.Task]
}

func New() *Caches {
	return &Caches{
		Users: NewTTLCache[user.User](UserTTL),
		Roles: NewTTLCache[[]scrapedash.UserRole](RoleTTL),
		Tasks: NewTTLCache[task.Task](TaskTTL),
	}
}

// GetUser returns a copy of the cached user.
func (c *Caches) GetUser(id string) (*user.User, bool) {
	u, ok := c.Users.Get(id)
	if !ok {
		return nil, false
	}
	u.Roles = append([]scrapedash.UserRole(nil), u.Roles...)
	return &u, true
}

func (c *Caches) SetUser(u *user.User) {
	if u == nil || u.Id == "" {
		return
	}
	cp := *u
	cp.Roles = append([]scrapedash.UserRole(nil), u.Roles...)
	c.Users.Set(u.Id, cp)
}

func (c *Caches) GetRoles(userID string) ([]scrapedash.UserRole, bool) {
	roles, ok := c.Roles.Get(userID)
	if !ok {
		return nil, false
	}
	return append([]scrapedash.UserRole{}, roles...), true
}

func (c *Caches) SetRoles(userID string, roles []scrapedash.UserRole) {
	c.Roles.Set(userID, append([]scrapedash.UserRole{}, roles...))
}

// InvalidateUser drops everything cached about the user.
func (c *Caches) InvalidateUser(userID string) {
	c.Users.Clear(userID)
	c.Roles.Clear(userID)
}

func (c *Caches) GetTask(id string) (*task.Task, bool) {
	t, ok := c.Tasks.Get(id)
	if !ok {
		return nil, false
	}
	return &t, true
}

func (c *Caches) SetTask(t *task.Task) {
	if t == nil || t.Id == "" {
		return
	}
	c.Tasks.Set(t.Id, *t)
}

func (c *Caches) InvalidateTask(id string) {
	c.Tasks.Clear(id)
}
