package attendance

import "context"

const promptUnsaved = "You have unsaved attendance changes that will be lost. Continue?"

type (
	// Confirmer asks the user to confirm a destructive or incomplete action.
	Confirmer interface {
		Confirm(ctx context.Context, prompt string) bool
	}

	ConfirmFunc func(ctx context.Context, prompt string) bool
)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Always answers every prompt with the same value.
type Always bool

func (a Always) Confirm(context.Context, string) bool { return bool(a) }

// NavigationGuard blocks actions that would drop unsaved edits unless the user confirms.
type NavigationGuard struct {
	dirty func() bool
}

func NewNavigationGuard(dirty func() bool) NavigationGuard {
	return NavigationGuard{dirty: dirty}
}

// Allow reports whether the guarded action may proceed. A nil Confirmer declines.
func (g NavigationGuard) Allow(ctx context.Context, confirm Confirmer) bool {
	if !g.dirty() {
		return true
	}
	return confirm != nil && confirm.Confirm(ctx, promptUnsaved)
}
