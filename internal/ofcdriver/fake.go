package ofcdriver

import (
	"context"
	"sync"

	"ofcd/internal/model"
)

// Fake is an in-memory Driver used by reconciler tests and by the daemon
// when no OFC URL is configured, so mutations stay in memory rather than
// reaching a real controller.
type Fake struct {
	mu          sync.Mutex
	KnownPorts  map[string]bool
	rules       map[string]model.Flow
	NewFlowErr  error
	DelFlowErr  error
	ClearErr    error
	NewFlowCall int
	DelFlowCall int
}

// NewFake returns a Fake with every port in knownPorts recognized.
func NewFake(knownPorts ...string) *Fake {
	known := make(map[string]bool, len(knownPorts))
	for _, p := range knownPorts {
		known[p] = true
	}
	return &Fake{KnownPorts: known, rules: make(map[string]model.Flow)}
}

func (f *Fake) PortKnown(_ context.Context, switchPort string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.KnownPorts[switchPort], nil
}

func (f *Fake) GetOfRules(_ context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{}, len(f.rules))
	for name := range f.rules {
		out[name] = struct{}{}
	}
	return out, nil
}

func (f *Fake) NewFlow(_ context.Context, name string, flow model.Flow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NewFlowCall++
	if f.NewFlowErr != nil {
		return f.NewFlowErr
	}
	f.rules[name] = flow
	return nil
}

func (f *Fake) DelFlow(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DelFlowCall++
	if f.DelFlowErr != nil {
		return f.DelFlowErr
	}
	delete(f.rules, name)
	return nil
}

func (f *Fake) ClearAllFlows(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClearErr != nil {
		return f.ClearErr
	}
	f.rules = make(map[string]model.Flow)
	return nil
}

// HasRule reports whether name is currently installed — test convenience.
func (f *Fake) HasRule(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rules[name]
	return ok
}
