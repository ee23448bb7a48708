package location

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"fmr-portal/model"
)

// Tracker owns at most one active Provider subscription and remembers the latest fix.
type Tracker struct {
	provider Provider
	opts     WatchOptions
	log      *zap.Logger

	mu       sync.Mutex
	active   bool
	id       WatchID
	gen      uint64 // bumped on every Start/Stop so late callbacks of old watches are dropped
	latest   *model.GeoFix
	gotFix   bool
	lastErr  error
	deadline *time.Timer

	// OnFirstFix runs once per Start, on the first fix delivered by that subscription.
	OnFirstFix func(model.GeoFix)
	// OnFix runs for every fix.
	OnFix func(model.GeoFix)
	// OnError runs for every error, including the first-fix timeout.
	OnError func(error)
}

func NewTracker(provider Provider, opts WatchOptions, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Tracker{provider: provider, opts: opts, log: log}
}

// Start replaces any existing subscription with a fresh one.
func (t *Tracker) Start() error {
	t.Stop()

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.gotFix = false
	t.lastErr = nil
	t.mu.Unlock()

	id, err := t.provider.Watch(t.opts,
		func(fix model.GeoFix) { t.handleFix(gen, fix) },
		func(err error) { t.handleError(gen, err) },
	)
	if err != nil {
		t.mu.Lock()
		t.lastErr = err
		t.mu.Unlock()
		t.log.Warn("location watch failed", zap.Error(err))
		return err
	}

	t.mu.Lock()
	if t.gen != gen {
		// Stopped while Watch was in flight.
		t.mu.Unlock()
		t.provider.Cancel(id)
		return nil
	}
	t.active = true
	t.id = id
	if !t.gotFix {
		t.deadline = time.AfterFunc(t.opts.Timeout, func() { t.handleError(gen, ErrTimeout) })
	}
	t.mu.Unlock()

	t.log.Debug("location watch started", zap.Uint64("watch_id", uint64(id)))
	return nil
}

// Stop cancels the active subscription. Safe to call when none is active.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.gen++
	if t.deadline != nil {
		t.deadline.Stop()
		t.deadline = nil
	}
	if !t.active {
		t.mu.Unlock()
		return
	}
	id := t.id
	t.active = false
	t.mu.Unlock()

	t.provider.Cancel(id)
	t.log.Debug("location watch cancelled", zap.Uint64("watch_id", uint64(id)))
}

// Clear stops tracking and forgets the last fix.
func (t *Tracker) Clear() {
	t.Stop()
	t.mu.Lock()
	t.latest = nil
	t.gotFix = false
	t.lastErr = nil
	t.mu.Unlock()
}

func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Latest returns a copy of the most recent fix, or nil.
func (t *Tracker) Latest() *model.GeoFix {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return nil
	}
	fix := *t.latest
	return &fix
}

func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tracker) handleFix(gen uint64, fix model.GeoFix) {
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = time.Now()
	}

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.latest = &fix
	t.lastErr = nil
	first := !t.gotFix
	t.gotFix = true
	if t.deadline != nil {
		t.deadline.Stop()
		t.deadline = nil
	}
	onFirst, onFix := t.OnFirstFix, t.OnFix
	t.mu.Unlock()

	if first && onFirst != nil {
		onFirst(fix)
	}
	if onFix != nil {
		onFix(fix)
	}
}

func (t *Tracker) handleError(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.lastErr = err
	if errors.Is(err, ErrTimeout) {
		t.deadline = nil
	}
	onErr := t.OnError
	t.mu.Unlock()

	if IsPermission(err) {
		t.log.Info("location permission denied")
		// A denial ends this attempt; the user has to start again.
		t.Stop()
	} else {
		t.log.Warn("location error", zap.Error(err))
	}
	if onErr != nil {
		onErr(err)
	}
}
