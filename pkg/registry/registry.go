// Package registry builds and serves an immutable snapshot of all skill
// descriptors discovered in a corpus directory. A build either succeeds
// completely or fails with a ConfigError; there is no partial registry.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillrouter/pkg/logger"
	"github.com/jingkaihe/skillrouter/pkg/skills"
)

// skillFileNames are the candidate primary documents for a skill
// directory, in precedence order.
var skillFileNames = []string{"SKILL.md", "README.md"}

// ConfigError reports a malformed or inconsistent corpus: a missing
// required field, a duplicate id, a dangling parent reference or a parent
// cycle. It is fatal to Build and never retried; a bad registry would
// silently misroute every future query.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid skill corpus: %s", e.Reason)
	}
	return fmt.Sprintf("invalid skill corpus: %s: %s", e.Path, e.Reason)
}

func configErrorf(path, format string, args ...interface{}) error {
	return &ConfigError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Registry is an immutable snapshot of all skill descriptors
type Registry struct {
	root     string
	byID     map[string]*skills.Descriptor
	ordered  []*skills.Descriptor
	children map[string][]string
}

// Option configures a registry build
type Option func(*buildConfig)

type buildConfig struct {
	ignorePatterns []string
}

// WithIgnorePatterns skips corpus subdirectories whose names match any of
// the given doublestar patterns (e.g. "node_modules", ".*", "archive/**").
func WithIgnorePatterns(patterns ...string) Option {
	return func(c *buildConfig) {
		c.ignorePatterns = append(c.ignorePatterns, patterns...)
	}
}

// Build walks the corpus one directory level deep and constructs the
// registry. Any malformed skill fails the whole build.
func Build(ctx context.Context, rootPath string, opts ...Option) (*Registry, error) {
	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	entries, err := os.ReadDir(rootPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read corpus root %s", rootPath)
	}

	reg := &Registry{
		root:     rootPath,
		byID:     make(map[string]*skills.Descriptor),
		children: make(map[string][]string),
	}

	for _, entry := range entries {
		entryPath := filepath.Join(rootPath, entry.Name())

		// follow symlinks: corpora are routinely assembled by linking
		// skill directories together
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		if ignored(cfg.ignorePatterns, entry.Name()) {
			logger.G(ctx).WithField("dir", entry.Name()).Debug("skipping ignored directory")
			continue
		}

		desc, err := loadDescriptor(entry.Name(), entryPath)
		if err != nil {
			if errors.Is(err, errNoSkillFile) {
				continue
			}
			return nil, err
		}

		if _, exists := reg.byID[desc.ID]; exists {
			return nil, configErrorf(entryPath, "duplicate skill id %q", desc.ID)
		}
		reg.byID[desc.ID] = desc
		reg.ordered = append(reg.ordered, desc)
	}

	if err := reg.validateParents(); err != nil {
		return nil, err
	}

	sort.Slice(reg.ordered, func(i, j int) bool { return reg.ordered[i].ID < reg.ordered[j].ID })

	logger.G(ctx).WithFields(map[string]interface{}{
		"root":   rootPath,
		"skills": len(reg.ordered),
	}).Debug("registry built")

	return reg, nil
}

var errNoSkillFile = errors.New("no skill file")

func loadDescriptor(id, dir string) (*skills.Descriptor, error) {
	var filePath string
	for _, candidate := range skillFileNames {
		path := filepath.Join(dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			filePath = path
			break
		}
	}
	if filePath == "" {
		return nil, errNoSkillFile
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", filePath)
	}

	metadata, _, err := skills.Parse(content)
	if err != nil {
		return nil, configErrorf(filePath, "%v", err)
	}

	userInvocable := true
	if metadata.UserInvocable != nil {
		userInvocable = *metadata.UserInvocable
	}

	subRefs := make([]string, 0, len(metadata.References))
	for _, ref := range metadata.References {
		subRefs = append(subRefs, filepath.Join(dir, ref))
	}

	return &skills.Descriptor{
		ID:                     id,
		Name:                   metadata.Name,
		Description:            metadata.Description,
		TriggerTerms:           skills.DeriveTriggerTerms(metadata.Description),
		UserInvocable:          userInvocable,
		DisableModelInvocation: metadata.DisableModelInvocation,
		ParentID:               metadata.Parent,
		FilePath:               filePath,
		ContentSize:            len(content),
		SubReferences:          subRefs,
		AllowedTools:           metadata.AllowedTools,
		Extra:                  metadata.Extra,
	}, nil
}

// validateParents checks that every parent reference resolves and that the
// parent relation is acyclic. DFS over the (single-parent) chains: a node
// revisited while still in progress is a cycle.
func (r *Registry) validateParents() error {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(r.byID))

	for id, desc := range r.byID {
		if desc.ParentID == "" {
			continue
		}
		if _, ok := r.byID[desc.ParentID]; !ok {
			return configErrorf(desc.FilePath, "parent %q does not exist", desc.ParentID)
		}
		r.children[desc.ParentID] = append(r.children[desc.ParentID], id)
	}

	for id := range r.byID {
		if state[id] != unvisited {
			continue
		}
		for current := id; current != ""; {
			switch state[current] {
			case inProgress:
				return configErrorf("", "cycle detected in parent chain at %q", current)
			case done:
				current = ""
				continue
			}
			state[current] = inProgress
			current = r.byID[current].ParentID
		}
		// everything reached from id is now settled
		for current := id; current != "" && state[current] == inProgress; current = r.byID[current].ParentID {
			state[current] = done
		}
	}

	for _, kids := range r.children {
		sort.Strings(kids)
	}

	return nil
}

func ignored(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Root returns the corpus root the registry was built from
func (r *Registry) Root() string { return r.root }

// Get returns the descriptor for id. The second return is false when the
// id is unknown; callers routinely probe for optional parents, so an
// unknown id is not an error.
func (r *Registry) Get(id string) (*skills.Descriptor, bool) {
	desc, ok := r.byID[id]
	return desc, ok
}

// All returns every descriptor in lexicographic id order
func (r *Registry) All() []*skills.Descriptor {
	return append([]*skills.Descriptor(nil), r.ordered...)
}

// Len returns the number of skills in the registry
func (r *Registry) Len() int { return len(r.ordered) }

// HasChildren reports whether id is referenced as a parent by any skill
func (r *Registry) HasChildren(id string) bool {
	return len(r.children[id]) > 0
}

// Children returns the ids of skills whose parent is id, sorted
func (r *Registry) Children(id string) []string {
	return append([]string(nil), r.children[id]...)
}
