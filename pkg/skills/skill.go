// Package skills defines the descriptor model for documentation skills:
// directories holding a primary markdown document (SKILL.md or README.md)
// whose YAML frontmatter describes when the skill should be loaded into a
// model's context.
package skills

// Descriptor represents one invocable skill in the corpus
type Descriptor struct {
	// ID is the directory slug, stable identity within the registry
	ID string
	// Name from frontmatter, required
	Name string
	// Description from frontmatter, required; used for matching
	Description string
	// TriggerTerms are derived from Description: lowercase tokens with
	// stopwords removed, sorted and de-duplicated
	TriggerTerms []string
	// UserInvocable controls direct user-facing listings (default true)
	UserInvocable bool
	// DisableModelInvocation excludes the skill from automatic matching
	DisableModelInvocation bool
	// ParentID references an optional parent orchestrator skill
	ParentID string
	// FilePath is the location of the primary document
	FilePath string
	// ContentSize is the primary document's size in bytes, cached at
	// registry build so routing needs no file I/O
	ContentSize int
	// SubReferences are additional documents the skill may pull in,
	// resolved relative to the skill directory. One hop only: references
	// of references are never followed.
	SubReferences []string
	// AllowedTools is passthrough metadata, not interpreted by the router
	AllowedTools string
	// Extra holds unrecognized frontmatter keys, preserved but ignored
	Extra map[string]interface{}
}

// Metadata is the recognized YAML frontmatter of a skill document
type Metadata struct {
	Name                   string                 `mapstructure:"name"`
	Description            string                 `mapstructure:"description"`
	UserInvocable          *bool                  `mapstructure:"user-invocable"`
	DisableModelInvocation bool                   `mapstructure:"disable-model-invocation"`
	AllowedTools           string                 `mapstructure:"allowed-tools"`
	Parent                 string                 `mapstructure:"parent"`
	References             []string               `mapstructure:"references"`
	Extra                  map[string]interface{} `mapstructure:",remain"`
}
