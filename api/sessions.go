package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"fmr-portal/annotate"
	"fmr-portal/camera"
	"fmr-portal/location"
	"fmr-portal/workflow"
)

// SessionConfig holds what every device session is built from.
type SessionConfig struct {
	Annotator   *annotate.Annotator
	Constraints camera.Constraints
	JPEGQuality int
	Watch       location.WatchOptions

	Projects workflow.ProjectQuery
	Blobs    workflow.BlobStore
	Reports  workflow.ReportStore
}

// DeviceSession is a report session together with the push providers its device feeds.
type DeviceSession struct {
	*workflow.Session
	GPS    *location.PushProvider
	Camera *camera.PushProvider
}

// SessionRegistry keeps device sessions alive while they are used. A session that sits idle
// for the TTL is evicted and reset, releasing its location watch and camera stream.
type SessionRegistry struct {
	cfg   SessionConfig
	log   *zap.Logger
	cache *cache.Cache
}

func NewSessionRegistry(cfg SessionConfig, ttl time.Duration, log *zap.Logger) *SessionRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &SessionRegistry{
		cfg:   cfg,
		log:   log,
		cache: cache.New(ttl, ttl/2),
	}
	r.cache.OnEvicted(func(id string, v interface{}) {
		if ds, ok := v.(*DeviceSession); ok {
			ds.Reset()
		}
		r.log.Info("session closed", zap.String("session", id))
	})
	return r
}

func (r *SessionRegistry) Create() *DeviceSession {
	id := uuid.NewString()
	log := r.log.With(zap.String("session", id))

	gps := location.NewPushProvider()
	cam := camera.NewPushProvider()
	ds := &DeviceSession{
		Session: workflow.NewSession(id, workflow.Deps{
			Tracker:  location.NewTracker(gps, r.cfg.Watch, log),
			Camera:   camera.NewController(cam, r.cfg.Annotator, r.cfg.Constraints, r.cfg.JPEGQuality, log),
			Projects: r.cfg.Projects,
			Blobs:    r.cfg.Blobs,
			Reports:  r.cfg.Reports,
			Logger:   r.log,
		}),
		GPS:    gps,
		Camera: cam,
	}
	r.cache.SetDefault(id, ds)
	r.log.Info("session opened", zap.String("session", id))
	return ds
}

// Get returns the session and extends its lifetime. Replace only succeeds while the item is
// still cached and unexpired, so an evicted session is never put back.
func (r *SessionRegistry) Get(id string) (*DeviceSession, bool) {
	v, exp, ok := r.cache.GetWithExpiration(id)
	if !ok || (!exp.IsZero() && time.Now().After(exp)) {
		return nil, false
	}
	if err := r.cache.Replace(id, v, cache.DefaultExpiration); err != nil {
		return nil, false
	}
	return v.(*DeviceSession), true
}

// Delete resets and drops the session.
func (r *SessionRegistry) Delete(id string) {
	r.cache.Delete(id)
}

func (r *SessionRegistry) Len() int {
	return r.cache.ItemCount()
}

// Close resets every open session. The cache's janitor goroutine is stopped by go-cache
// once the registry is garbage collected.
func (r *SessionRegistry) Close() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
