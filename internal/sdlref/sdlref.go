// Package sdlref refcounts process-wide SDL initialization across players.
package sdlref

import (
	"fmt"
	"sync"

	"github.com/veandco/go-sdl2/sdl"
)

// Subsystems initialized on the first Acquire.
const Subsystems = sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_TIMER

var (
	mu    sync.Mutex
	count int

	// initFn and quitFn are replaced in tests.
	initFn = func() error {
		sdl.SetHint(sdl.HINT_NO_SIGNAL_HANDLERS, "1")
		return sdl.Init(Subsystems)
	}
	quitFn = sdl.Quit
)

// Acquire initializes SDL on the 0 to 1 transition and takes a reference.
// No reference is taken when initialization fails.
func Acquire() error {
	mu.Lock()
	defer mu.Unlock()
	if count == 0 {
		if err := initFn(); err != nil {
			return fmt.Errorf("sdl init: %w", err)
		}
	}
	count++
	return nil
}

// Release drops a reference and shuts SDL down when the last one goes.
func Release() {
	mu.Lock()
	defer mu.Unlock()
	if count == 0 {
		return
	}
	count--
	if count == 0 {
		quitFn()
	}
}

// Count returns the number of live references.
func Count() int {
	mu.Lock()
	defer mu.Unlock()
	return count
}
