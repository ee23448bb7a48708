package location

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fmr-portal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTracker(p Provider, timeout time.Duration) *Tracker {
	opts := DefaultWatchOptions()
	opts.Timeout = timeout
	return NewTracker(p, opts, nil)
}

func TestStartKeepsSingleSubscription(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, time.Minute)

	require.NoError(t, tr.Start())
	require.NoError(t, tr.Start())
	require.NoError(t, tr.Start())

	assert.Equal(t, 1, p.Watching())
	assert.True(t, tr.Active())

	tr.Stop()
	assert.Equal(t, 0, p.Watching())
	assert.False(t, tr.Active())
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, time.Minute)

	tr.Stop()
	require.NoError(t, tr.Start())
	tr.Stop()
	tr.Stop()
	assert.Equal(t, 0, p.Watching())
}

func TestLatestFixWins(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, time.Minute)

	var first, all int32
	tr.OnFirstFix = func(model.GeoFix) { atomic.AddInt32(&first, 1) }
	tr.OnFix = func(model.GeoFix) { atomic.AddInt32(&all, 1) }

	require.NoError(t, tr.Start())
	defer tr.Stop()
	assert.Nil(t, tr.Latest())

	p.Push(model.GeoFix{Latitude: 10.1, Longitude: 122.1, Accuracy: model.Float64(30)})
	p.Push(model.GeoFix{Latitude: 10.2, Longitude: 122.2, Accuracy: model.Float64(8)})

	fix := tr.Latest()
	require.NotNil(t, fix)
	assert.Equal(t, 10.2, fix.Latitude)
	assert.Equal(t, 8.0, *fix.Accuracy)
	assert.False(t, fix.CapturedAt.IsZero())
	assert.Equal(t, int32(1), atomic.LoadInt32(&first))
	assert.Equal(t, int32(2), atomic.LoadInt32(&all))
}

func TestPermissionDeniedEndsAttempt(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, time.Minute)

	var got error
	tr.OnError = func(err error) { got = err }

	require.NoError(t, tr.Start())
	p.Fail(ErrPermissionDenied)

	assert.True(t, IsPermission(got))
	assert.False(t, tr.Active())
	assert.Equal(t, 0, p.Watching())
	assert.ErrorIs(t, tr.LastError(), ErrPermissionDenied)

	// Explicit retry works.
	require.NoError(t, tr.Start())
	assert.True(t, tr.Active())
	assert.NoError(t, tr.LastError())
	tr.Stop()
}

func TestTransientErrorKeepsSubscription(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, time.Minute)

	require.NoError(t, tr.Start())
	defer tr.Stop()

	p.Fail(errors.New("position unavailable"))
	assert.True(t, tr.Active())
	assert.Error(t, tr.LastError())

	p.Push(model.GeoFix{Latitude: 1, Longitude: 2})
	assert.NotNil(t, tr.Latest())
	assert.NoError(t, tr.LastError())
}

func TestFirstFixTimeout(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, 20*time.Millisecond)

	errs := make(chan error, 1)
	tr.OnError = func(err error) { errs <- err }

	require.NoError(t, tr.Start())
	defer tr.Stop()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout error not delivered")
	}
	assert.True(t, tr.Active(), "subscription survives a timeout")

	p.Push(model.GeoFix{Latitude: 1, Longitude: 2})
	assert.NotNil(t, tr.Latest())
}

func TestNoTimeoutAfterFirstFix(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, 20*time.Millisecond)

	var errCount int32
	tr.OnError = func(error) { atomic.AddInt32(&errCount, 1) }

	require.NoError(t, tr.Start())
	defer tr.Stop()
	p.Push(model.GeoFix{Latitude: 1, Longitude: 2})

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&errCount))
}

func TestCallbacksFromStaleSubscriptionIgnored(t *testing.T) {
	p := &recordingProvider{}
	tr := newTracker(p, time.Minute)

	require.NoError(t, tr.Start())
	old := p.last
	require.NoError(t, tr.Start())

	old.onUpdate(model.GeoFix{Latitude: 99, Longitude: 99})
	assert.Nil(t, tr.Latest())

	p.last.onUpdate(model.GeoFix{Latitude: 1, Longitude: 1})
	require.NotNil(t, tr.Latest())
	assert.Equal(t, 1.0, tr.Latest().Latitude)
	tr.Stop()
	assert.Equal(t, []WatchID{1, 2}, p.cancelled)
}

func TestClearForgetsFix(t *testing.T) {
	p := NewPushProvider()
	tr := newTracker(p, time.Minute)
	require.NoError(t, tr.Start())
	p.Push(model.GeoFix{Latitude: 1, Longitude: 2})

	tr.Clear()
	assert.Nil(t, tr.Latest())
	assert.False(t, tr.Active())
}

func TestWatchFailure(t *testing.T) {
	tr := newTracker(&recordingProvider{watchErr: ErrUnavailable}, time.Minute)
	assert.ErrorIs(t, tr.Start(), ErrUnavailable)
	assert.False(t, tr.Active())
	assert.ErrorIs(t, tr.LastError(), ErrUnavailable)
}

type recordingProvider struct {
	watchErr  error
	nextID    WatchID
	last      subscription
	cancelled []WatchID
}

func (r *recordingProvider) Watch(_ WatchOptions, onUpdate func(model.GeoFix), onError func(error)) (WatchID, error) {
	if r.watchErr != nil {
		return 0, r.watchErr
	}
	r.nextID++
	r.last = subscription{onUpdate: onUpdate, onError: onError}
	return r.nextID, nil
}

func (r *recordingProvider) Cancel(id WatchID) {
	r.cancelled = append(r.cancelled, id)
}
