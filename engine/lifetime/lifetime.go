// Package lifetime provides resource scopes. A Lifetime collects release functions for
// resources created against it and runs them, newest first, when the scope is destroyed.
//
// Long-lived GPU objects are created against the owning application's Lifetime, while
// short-lived resources (for example a shader source file opened only for pipeline
// compilation) are bracketed by a temporary Lifetime destroyed right after use.
package lifetime

import (
	"errors"
	"sync"
)

// ReleaseFunc releases a single resource tracked by a Lifetime.
type ReleaseFunc func() error

// Lifetime is a resource scope. The zero value is ready to use.
type Lifetime struct {
	mu        sync.Mutex
	name      string
	releases  []ReleaseFunc
	destroyed bool
}

// New creates an empty named Lifetime. The name only appears in error messages.
//
// Parameters:
//   - name: a debug name for the scope
//
// Returns:
//   - *Lifetime: the new scope
func New(name string) *Lifetime {
	return &Lifetime{name: name}
}

// Name returns the debug name of the scope.
func (l *Lifetime) Name() string {
	return l.name
}

// Add registers a release function to run when the scope is destroyed.
// Adding to a destroyed scope releases the resource immediately so it cannot leak.
//
// Parameters:
//   - release: the function releasing the resource
//
// Returns:
//   - error: ErrDestroyed joined with the release error when the scope was already destroyed
func (l *Lifetime) Add(release ReleaseFunc) error {
	if release == nil {
		return nil
	}
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return errors.Join(ErrDestroyed, release())
	}
	l.releases = append(l.releases, release)
	l.mu.Unlock()
	return nil
}

// Len returns the number of resources currently tracked by the scope.
func (l *Lifetime) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.releases)
}

// Destroyed reports whether Destroy has been called.
func (l *Lifetime) Destroyed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.destroyed
}

// Destroy releases every tracked resource in reverse registration order.
// All release functions run even when some fail; their errors are joined.
// Calling Destroy more than once is a no-op.
//
// Returns:
//   - error: the joined release errors, or nil
func (l *Lifetime) Destroy() error {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return nil
	}
	l.destroyed = true
	releases := l.releases
	l.releases = nil
	l.mu.Unlock()

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		if err := releases[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrDestroyed is returned when a resource is added to a scope that was already destroyed.
var ErrDestroyed = errors.New("lifetime: scope already destroyed")
