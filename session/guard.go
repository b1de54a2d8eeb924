package session

import (
	"log/slog"
	"sync/atomic"

	"github.com/Aalibrarytechnologies/library-management-system/api"
)

// RedirectFunc points the presentation layer at the login surface for the
// given role after the session has been invalidated.
type RedirectFunc func(role api.Role)

// Guard reacts to authentication failures. A batch of concurrent requests can
// all come back 401 at once; the guard collapses them into a single logout
// and redirect.
type Guard struct {
	store    *Store
	redirect RedirectFunc
	logger   *slog.Logger
	tripped  atomic.Bool
}

func NewGuard(store *Store, redirect RedirectFunc, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, redirect: redirect, logger: logger}
}

// OnAuthError invalidates the session exactly once. Repeat and concurrent
// invocations are no-ops until Reset re-arms the guard after a fresh login.
func (g *Guard) OnAuthError(err error) {
	if !g.tripped.CompareAndSwap(false, true) {
		return
	}
	role := api.RoleStudent
	if user, ok := g.store.User(); ok && user.Role != "" {
		role = user.Role
	}
	g.logger.Warn("session invalidated", "error", err, "role", string(role))
	if cErr := g.store.Clear(); cErr != nil {
		g.logger.Error("failed to clear session", "error", cErr)
	}
	if g.redirect != nil {
		g.redirect(role)
	}
}

// Tripped reports whether the guard has fired since the last Reset.
func (g *Guard) Tripped() bool {
	return g.tripped.Load()
}

func (g *Guard) Reset() {
	g.tripped.Store(false)
}
