// Package dialog owns the transient state of confirmation dialogs: the
// open/closed flag and the exchange payload under confirmation.
//
// Closing keeps the payload alive for a short delay so an exit transition
// can still read it, then clears it. The pending clear is a single-slot
// delayed task with an owned timer handle: reopening or shutting down
// cancels it, which rules out use-after-clear on a dialog reopened
// mid-animation.
package dialog

import (
	"sync"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

// DefaultClearDelay is how long a closed dialog retains its payload.
const DefaultClearDelay = 300 * time.Millisecond

// Controller manages one confirmation dialog. Safe for concurrent use. Two
// independent instances back the take-over and remove confirmations.
type Controller struct {
	mu         sync.Mutex
	open       bool
	payload    *domain.Exchange
	clearDelay time.Duration
	timer      *time.Timer
}

// NewController creates a Controller with the given payload-clear delay;
// zero or negative falls back to DefaultClearDelay.
func NewController(clearDelay time.Duration) *Controller {
	if clearDelay <= 0 {
		clearDelay = DefaultClearDelay
	}
	return &Controller{clearDelay: clearDelay}
}

// Open shows the dialog for the given exchange. Any clear pending from an
// earlier Close is cancelled first, so the payload is never transiently nil
// between a close and a reopen.
func (c *Controller) Open(x domain.Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingClearLocked()
	c.open = true
	c.payload = &x
}

// Close hides the dialog but retains the payload until the clear delay
// elapses. A second Close while a clear is already pending resets the timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open && c.timer == nil {
		return
	}
	c.open = false

	c.cancelPendingClearLocked()
	timer := time.AfterFunc(c.clearDelay, c.clearPayload)
	c.timer = timer
}

// clearPayload is the deferred task behind the Close timer. It re-checks the
// open flag: an Open that raced the timer firing wins and the payload stays.
func (c *Controller) clearPayload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return
	}
	c.payload = nil
	c.timer = nil
}

// Shutdown cancels any pending clear and drops the payload immediately. Used
// on unmount so no timer outlives the controller's owner.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingClearLocked()
	c.open = false
	c.payload = nil
}

// IsOpen reports whether the dialog is currently shown.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Payload returns the exchange under confirmation, or nil once a completed
// close has cleared it.
func (c *Controller) Payload() *domain.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.payload == nil {
		return nil
	}
	x := *c.payload
	return &x
}

func (c *Controller) cancelPendingClearLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
