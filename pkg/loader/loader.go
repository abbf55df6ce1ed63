// Package loader materializes the documents chosen by a routing decision.
// One unreadable file never blocks the rest of the batch: failures are
// collected per document alongside whatever did load.
package loader

import (
	"context"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillrouter/pkg/logger"
	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/router"
)

// Document is one loaded file
type Document struct {
	SkillID string `json:"skillId"`
	Path    string `json:"path"`
	Content string `json:"content"`
	// Reference marks a one-hop sub-reference rather than a primary document
	Reference bool `json:"reference,omitempty"`
}

// DocumentError records a single document that failed to load
type DocumentError struct {
	SkillID string `json:"skillId"`
	Path    string `json:"path"`
	Message string `json:"error"`
}

// Result is the outcome of loading a decision: everything that loaded,
// plus per-document failures.
type Result struct {
	Documents []Document      `json:"documents"`
	Failures  []DocumentError `json:"failures,omitempty"`
	// Truncated is set when the deadline expired mid-batch
	Truncated bool `json:"truncated,omitempty"`
}

// Err aggregates the per-document failures, or nil when everything loaded
func (r *Result) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failures {
		merr = multierror.Append(merr, errors.Errorf("%s: %s", f.Path, f.Message))
	}
	return merr.ErrorOrNil()
}

// Load reads the primary document of every skill in the decision. With
// withRefs set it also reads each skill's sub-references — exactly one
// hop; references found inside referenced files are never followed.
func Load(ctx context.Context, reg *registry.Registry, decision *router.Decision, withRefs bool) *Result {
	result := &Result{Documents: []Document{}}

	for _, match := range decision.Matches {
		if deadlineHit(ctx) {
			result.Truncated = true
			return result
		}

		desc, ok := reg.Get(match.ID)
		if !ok {
			// decision built against a different snapshot; report rather
			// than fail the batch
			result.Failures = append(result.Failures, DocumentError{
				SkillID: match.ID,
				Path:    match.Path,
				Message: "skill no longer present in registry",
			})
			continue
		}

		readInto(result, desc.ID, desc.FilePath, false)

		if !withRefs {
			continue
		}
		for _, refPath := range desc.SubReferences {
			if deadlineHit(ctx) {
				result.Truncated = true
				return result
			}
			readInto(result, desc.ID, refPath, true)
		}
	}

	if len(result.Failures) > 0 {
		logger.G(ctx).WithField("failures", len(result.Failures)).Warn("some documents failed to load")
	}

	return result
}

func readInto(result *Result, skillID, path string, reference bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		result.Failures = append(result.Failures, DocumentError{
			SkillID: skillID,
			Path:    path,
			Message: err.Error(),
		})
		return
	}
	result.Documents = append(result.Documents, Document{
		SkillID:   skillID,
		Path:      path,
		Content:   string(content),
		Reference: reference,
	})
}

func deadlineHit(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
