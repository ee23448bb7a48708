package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fmr-portal/annotate"
	"fmr-portal/model"
)

const DefaultJPEGQuality = 85

// Controller owns at most one live stream and turns its current frame into an annotated photo.
type Controller struct {
	provider    Provider
	annotator   *annotate.Annotator
	constraints Constraints
	quality     int
	log         *zap.Logger

	mu         sync.Mutex
	stream     Stream
	ready      bool
	err        error
	gen        uint64
	cancelWait context.CancelFunc

	// OnReady runs when the active stream reports its metadata.
	OnReady func()
}

func NewController(provider Provider, annotator *annotate.Annotator, c Constraints, quality int, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Controller{
		provider:    provider,
		annotator:   annotator,
		constraints: c,
		quality:     quality,
		log:         log,
	}
}

// Start requests a fresh stream, releasing any previous one first.
// Acquisition errors are returned and kept; there is no automatic retry.
func (c *Controller) Start(ctx context.Context) error {
	c.Stop()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.err = nil
	c.mu.Unlock()

	stream, err := c.provider.RequestStream(ctx, c.constraints)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.err = err
		}
		c.mu.Unlock()
		c.log.Warn("camera acquisition failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		// Stopped while the request was in flight.
		c.mu.Unlock()
		stream.Stop()
		return nil
	}
	waitCtx, cancel := context.WithCancel(context.Background())
	c.stream = stream
	c.cancelWait = cancel
	c.mu.Unlock()

	go c.awaitReady(waitCtx, gen, stream)
	c.log.Debug("camera stream requested",
		zap.String("facing", c.constraints.Facing),
		zap.Int("ideal_width", c.constraints.IdealWidth),
		zap.Int("ideal_height", c.constraints.IdealHeight))
	return nil
}

func (c *Controller) awaitReady(ctx context.Context, gen uint64, stream Stream) {
	select {
	case <-ctx.Done():
		return
	case <-stream.Ready():
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.ready = true
	onReady := c.OnReady
	c.mu.Unlock()

	c.log.Debug("camera stream ready")
	if onReady != nil {
		onReady()
	}
}

// Stop releases the active stream and clears the ready state. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	stream := c.stream
	cancel := c.cancelWait
	c.stream = nil
	c.cancelWait = nil
	c.ready = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Stop()
		c.log.Debug("camera stream stopped")
	}
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Err is the last acquisition error, nil after a successful Start.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Capture grabs the current frame, burns in the timestamp and fix, encodes it as JPEG
// and stops the feed. It returns nil without error when no ready stream exists.
func (c *Controller) Capture(at time.Time, fix *model.GeoFix) (*model.CapturedPhoto, error) {
	c.mu.Lock()
	stream, ready := c.stream, c.ready
	c.mu.Unlock()
	if stream == nil || !ready {
		return nil, nil
	}

	frame, err := stream.Frame()
	if errors.Is(err, ErrNotReady) {
		// Stopped since the ready check.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("grab frame: %w", err)
	}
	if frame == nil {
		return nil, nil
	}

	annotated, _, err := c.annotator.Burn(frame, at, fix)
	if err != nil {
		return nil, fmt.Errorf("annotate frame: %w", err)
	}
	data, err := annotate.EncodeJPEG(annotated, c.quality)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	photo := &model.CapturedPhoto{
		Image:      data,
		CapturedAt: at,
		Width:      annotated.Bounds().Dx(),
		Height:     annotated.Bounds().Dy(),
	}
	if fix != nil {
		f := *fix
		photo.SourceFix = &f
	}

	c.Stop()
	c.log.Info("photo captured",
		zap.Int("width", photo.Width),
		zap.Int("height", photo.Height),
		zap.Int("bytes", len(data)),
		zap.Bool("with_fix", fix != nil))
	return photo, nil
}
