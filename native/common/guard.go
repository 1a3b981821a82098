package common

import (
	"errors"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a PauseView backed by an in-memory set, used when pause
// switches come from configuration or operator toggles rather than chain state.
type StaticPauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewStaticPauses(modules ...string) *StaticPauses {
	p := &StaticPauses{paused: make(map[string]bool)}
	for _, module := range modules {
		p.SetPaused(module, true)
	}
	return p
}

func (p *StaticPauses) SetPaused(module string, paused bool) {
	trimmed := strings.ToLower(strings.TrimSpace(module))
	if trimmed == "" {
		return
	}
	p.mu.Lock()
	p.paused[trimmed] = paused
	p.mu.Unlock()
}

func (p *StaticPauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[strings.ToLower(strings.TrimSpace(module))]
}
