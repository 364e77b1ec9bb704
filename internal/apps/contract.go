package apps

import (
	"github.com/glasspane/webdesk/internal/shared/types"
)

// App is the contract every loadable application satisfies. The kernel
// never inspects application internals beyond it.
type App interface {
	// Meta returns the static descriptive metadata.
	Meta() types.AppMeta
	// Launch opens the application's window and returns its id.
	Launch(teamID string) (types.WindowID, error)
	// Mounted reports whether the instance currently has an open window.
	Mounted() bool
	// Close tears the instance down.
	Close() error
}

// Constructor produces a fresh application instance. A nil return means
// construction failed; the registry logs and degrades instead of
// propagating.
type Constructor func() App
