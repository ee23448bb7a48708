// Package camera manages the live rear-camera feed used to take the report photo.
package camera

import (
	"context"
	"errors"
	"image"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device available")
	ErrNotReady         = errors.New("camera stream not ready")
)

func IsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

const (
	FacingEnvironment = "environment"

	DefaultWidth  = 1280
	DefaultHeight = 720
)

type Constraints struct {
	Facing      string
	IdealWidth  int
	IdealHeight int
}

func DefaultConstraints() Constraints {
	return Constraints{Facing: FacingEnvironment, IdealWidth: DefaultWidth, IdealHeight: DefaultHeight}
}

// Stream is a live video feed.
type Stream interface {
	// Ready is closed once the stream metadata (frame size) is known.
	Ready() <-chan struct{}
	// Frame returns the current frame at the stream's native resolution.
	Frame() (image.Image, error)
	// Stop releases every track of the stream. Idempotent.
	Stop()
}

type Provider interface {
	RequestStream(ctx context.Context, c Constraints) (Stream, error)
}
