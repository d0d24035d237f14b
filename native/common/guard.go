package common

import (
	"errors"
	"sync/atomic"
)

var (
	ErrModulePaused = errors.New("module paused")
	// ErrReentrantCall is returned when a state-mutating call starts while
	// another one on the same guard has not finished.
	ErrReentrantCall = errors.New("reentrant call rejected")
)

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

// ExecutionGuard rejects entry while a call is in progress. It does not queue
// callers: ordering between callers belongs to whoever submits them.
type ExecutionGuard struct {
	entered atomic.Bool
}

// Enter marks the guard as held and returns the function that releases it.
func (g *ExecutionGuard) Enter() (func(), error) {
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.entered.Store(false) }, nil
}

// Active reports whether a call currently holds the guard.
func (g *ExecutionGuard) Active() bool {
	return g.entered.Load()
}
