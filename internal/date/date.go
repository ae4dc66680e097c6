// Package date provides a cached, thread-safe RFC1123 date string.
package date

import (
	"sync"
	"sync/atomic"
	"time"
)

const layout = "Mon, 02 Jan 2006 15:04:05 GMT"

// current caches the formatted date so responses do not pay for
// time.Now().Format() each. Reads are lock-free.
var current atomic.Pointer[string]

func init() {
	update()
}

// Now returns the cached date string. Without a running ticker it is the
// string cached at init or by the last update.
func Now() string {
	return *current.Load()
}

// StartTicker refreshes the cached date every 500ms until the returned stop
// function is called. The stop function is safe to call more than once.
func StartTicker() func() {
	update()

	ticker := time.NewTicker(500 * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				update()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

func update() {
	s := time.Now().UTC().Format(layout)
	current.Store(&s)
}
