// Package location keeps a single live GPS subscription per report session.
package location

import (
	"errors"
	"time"

	"fmr-portal/model"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("timed out waiting for a location fix")
	ErrUnavailable      = errors.New("location unavailable")
)

// IsPermission reports whether err is a permission denial, which must not be retried automatically.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

const DefaultTimeout = 15 * time.Second

type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	NoCache      bool
}

// DefaultWatchOptions asks for fresh high-accuracy fixes.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{HighAccuracy: true, Timeout: DefaultTimeout, NoCache: true}
}

type WatchID uint64

// Provider is the device location source.
type Provider interface {
	Watch(opts WatchOptions, onUpdate func(model.GeoFix), onError func(error)) (WatchID, error)
	Cancel(id WatchID)
}
