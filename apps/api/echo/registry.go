package echoapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

// registry holds the live sessions. Each access extends the session's lifetime by ttl.
type registry struct {
	sessions   *cache.Cache
	newSession SessionFactory
}

func newRegistry(ttl time.Duration, factory SessionFactory) *registry {
	expiration, cleanup := ttl, ttl
	if ttl <= 0 {
		expiration, cleanup = cache.NoExpiration, 0
	}
	return &registry{
		sessions:   cache.New(expiration, cleanup),
		newSession: factory,
	}
}

func (r *registry) create() (string, *attendance.Session) {
	id := uuid.NewString()
	sess := r.newSession()
	r.sessions.SetDefault(id, sess)
	return id, sess
}

func (r *registry) get(id string) (*attendance.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errSessionNotFound
	}
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, errSessionNotFound
	}
	sess := v.(*attendance.Session)
	r.sessions.SetDefault(id, sess)
	return sess, nil
}

func (r *registry) delete(id string) {
	r.sessions.Delete(id)
}

func (r *registry) count() int {
	return r.sessions.ItemCount()
}
