package location

import (
	"sync"

	"fmr-portal/model"
)

// PushProvider is a Provider fed from outside, e.g. by fixes a device posts over HTTP.
type PushProvider struct {
	mu     sync.Mutex
	nextID WatchID
	subs   map[WatchID]subscription
}

type subscription struct {
	onUpdate func(model.GeoFix)
	onError  func(error)
}

func NewPushProvider() *PushProvider {
	return &PushProvider{subs: make(map[WatchID]subscription)}
}

func (p *PushProvider) Watch(_ WatchOptions, onUpdate func(model.GeoFix), onError func(error)) (WatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.subs[p.nextID] = subscription{onUpdate: onUpdate, onError: onError}
	return p.nextID, nil
}

func (p *PushProvider) Cancel(id WatchID) {
	p.mu.Lock()
	delete(p.subs, id)
	p.mu.Unlock()
}

// Watching reports the number of live subscriptions.
func (p *PushProvider) Watching() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Push delivers a fix to every live subscription and reports how many received it.
func (p *PushProvider) Push(fix model.GeoFix) int {
	subs := p.snapshot()
	for _, s := range subs {
		if s.onUpdate != nil {
			s.onUpdate(fix)
		}
	}
	return len(subs)
}

// Fail delivers err to every live subscription.
func (p *PushProvider) Fail(err error) int {
	subs := p.snapshot()
	for _, s := range subs {
		if s.onError != nil {
			s.onError(err)
		}
	}
	return len(subs)
}

func (p *PushProvider) snapshot() []subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := make([]subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	return subs
}
