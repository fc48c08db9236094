package useragent

import (
	"fmt"
	"sync"
)

var (
	factoryMu sync.Mutex
	factory   SurfaceFactory
)

// Factory returns the process-wide surface factory, lazily creating the
// default browser-backed factory on first access.
func Factory() SurfaceFactory {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if factory == nil {
		factory = NewBrowserSurfaceFactory(nil)
	}
	return factory
}

// SetFactory replaces the process-wide surface factory. A nil factory is
// rejected and the previous binding stays in place. Call before any flow
// starts.
func SetFactory(f SurfaceFactory) error {
	if f == nil {
		return fmt.Errorf("surface factory cannot be nil")
	}
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factory = f
	return nil
}
