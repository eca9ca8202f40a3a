// Package extractor defines the platform driver contract and the registry
// that maps a configured platform name to its implementation.
package extractor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mediagrab/pkg/config"
	"mediagrab/pkg/models"
	"mediagrab/pkg/state"
)

// Driver is a platform-specific protocol driver. Implementations are either
// stateless (every request carries stored credentials) or stateful (a
// session-bound multi-step protocol); the crawler drives both through the
// same page-by-page contract.
type Driver interface {
	// Platform returns the registered platform name.
	Platform() string

	// ResolveUser opens the session if needed and fetches the target
	// creator's profile. Identity failures are fatal auth errors.
	ResolveUser(ctx context.Context, handle string) (models.User, error)

	// FetchPage returns one timeline page starting at cursor ("" for the
	// first page). A page with no posts or an empty next cursor is terminal.
	FetchPage(ctx context.Context, user models.User, cursor string) (state.Page, error)

	// Finalize runs any post-crawl resolution over the captured state, such
	// as the unlock protocol that reveals direct video URLs. Drivers without
	// one return nil immediately.
	Finalize(ctx context.Context, st *state.CrawlState) error
}

// Factory constructs a driver from configuration.
type Factory func(cfg *config.Config) (Driver, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register makes a driver factory available under the given platform name.
// Called from driver package init functions.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("extractor: duplicate registration for %q", name))
	}
	registry[name] = factory
}

// New constructs the driver for the configured platform.
func New(cfg *config.Config) (Driver, error) {
	mu.RLock()
	factory, ok := registry[cfg.Platform.Name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (registered: %v)", cfg.Platform.Name, Platforms())
	}
	return factory(cfg)
}

// Platforms lists the registered platform names.
func Platforms() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
