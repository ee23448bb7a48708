package camera

import (
	"context"
	"image"
	"sync"
)

// PushProvider serves streams whose frames are pushed in from outside,
// e.g. JPEG frames a device uploads over HTTP.
type PushProvider struct {
	mu     sync.Mutex
	deny   error
	stream *pushStream
	opened int
}

func NewPushProvider() *PushProvider {
	return &PushProvider{}
}

// Deny makes subsequent stream requests fail with err until Deny(nil).
func (p *PushProvider) Deny(err error) {
	p.mu.Lock()
	p.deny = err
	p.mu.Unlock()
}

func (p *PushProvider) RequestStream(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.deny != nil {
		err := p.deny
		p.mu.Unlock()
		return nil, err
	}
	prev := p.stream
	s := &pushStream{ready: make(chan struct{}), owner: p}
	p.stream = s
	p.opened++
	p.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	return s, nil
}

// PushFrame hands a frame to the live stream. It reports false when no stream is open.
func (p *PushProvider) PushFrame(img image.Image) bool {
	p.mu.Lock()
	s := p.stream
	p.mu.Unlock()
	if s == nil {
		return false
	}
	return s.push(img)
}

// Live reports whether a stream is currently open.
func (p *PushProvider) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// Opened counts streams handed out so far.
func (p *PushProvider) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

func (p *PushProvider) detach(s *pushStream) {
	p.mu.Lock()
	if p.stream == s {
		p.stream = nil
	}
	p.mu.Unlock()
}

type pushStream struct {
	owner *PushProvider

	mu      sync.Mutex
	ready   chan struct{}
	frame   image.Image
	stopped bool
}

func (s *pushStream) Ready() <-chan struct{} {
	return s.ready
}

func (s *pushStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.frame == nil {
		return nil, ErrNotReady
	}
	return s.frame, nil
}

func (s *pushStream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.frame = nil
	s.mu.Unlock()
	s.owner.detach(s)
}

func (s *pushStream) push(img image.Image) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || img == nil {
		return false
	}
	first := s.frame == nil
	s.frame = img
	if first {
		close(s.ready)
	}
	return true
}
