package panel

import (
	"context"
	"errors"
	"sync"
)

// ErrDialogClosed is returned when a dialog was closed before its request finished.
var ErrDialogClosed = errors.New("panel: dialog closed")

// Dialog scopes one create interaction. A result that arrives after Close
// is discarded and never committed.
type Dialog struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu     sync.Mutex
	closed bool
}

// NewDialog opens a dialog bound to parent; cancelling parent closes it too.
func NewDialog(parent context.Context) *Dialog {
	ctx, cancel := context.WithCancelCause(parent)
	return &Dialog{ctx: ctx, cancel: cancel}
}

// Context is cancelled when the dialog closes.
func (d *Dialog) Context() context.Context {
	return d.ctx
}

// Close dismisses the dialog. After Close returns no commit runs.
func (d *Dialog) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel(ErrDialogClosed)
}

// Closed reports whether the dialog was closed or its parent cancelled.
func (d *Dialog) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closedLocked()
}

func (d *Dialog) closedLocked() bool {
	return d.closed || d.ctx.Err() != nil
}

// Run executes call under the dialog context. When call succeeds and the
// dialog is still open, commit runs while Close is held off. A dialog that
// closed in the meantime yields ErrDialogClosed regardless of call's result.
func (d *Dialog) Run(call func(ctx context.Context) error, commit func()) error {
	if d.Closed() {
		return ErrDialogClosed
	}
	err := call(d.ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closedLocked() {
		return ErrDialogClosed
	}
	if err != nil {
		return err
	}
	if commit != nil {
		commit()
	}
	return nil
}
