package registry

import (
	"context"
	"sync/atomic"

	"github.com/jingkaihe/skillrouter/pkg/logger"
)

// Store holds the current registry snapshot behind an atomic pointer.
// Readers always see a complete snapshot, old or new; Reload swaps the
// pointer only after a full successful build.
type Store struct {
	root    string
	opts    []Option
	current atomic.Pointer[Registry]
}

// NewStore builds the initial registry and returns a store serving it.
// A failed initial build fails the constructor.
func NewStore(ctx context.Context, rootPath string, opts ...Option) (*Store, error) {
	reg, err := Build(ctx, rootPath, opts...)
	if err != nil {
		return nil, err
	}

	s := &Store{root: rootPath, opts: opts}
	s.current.Store(reg)
	return s, nil
}

// Registry returns the current snapshot
func (s *Store) Registry() *Registry {
	return s.current.Load()
}

// Reload rebuilds the registry from disk and atomically swaps it in.
// On build failure the previous snapshot stays in place and the error is
// returned; a malformed corpus won't fix itself, so nothing is retried.
func (s *Store) Reload(ctx context.Context) error {
	reg, err := Build(ctx, s.root, s.opts...)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("registry reload failed, keeping previous snapshot")
		return err
	}

	s.current.Store(reg)
	logger.G(ctx).WithField("skills", reg.Len()).Info("registry reloaded")
	return nil
}
