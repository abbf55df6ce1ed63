package presenter

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTerminalPresenter(t *testing.T) {
	t.Run("messages go to output", func(t *testing.T) {
		var out, errOut bytes.Buffer
		p := NewWithOptions(&out, &errOut, ColorNever)

		p.Success("done")
		p.Warning("careful")
		p.Info("note")
		p.Section("Documents")

		assert.Contains(t, out.String(), "done")
		assert.Contains(t, out.String(), "careful")
		assert.Contains(t, out.String(), "note")
		assert.Contains(t, out.String(), "=== Documents ===")
		assert.Empty(t, errOut.String())
	})

	t.Run("errors go to error output", func(t *testing.T) {
		var out, errOut bytes.Buffer
		p := NewWithOptions(&out, &errOut, ColorNever)

		p.Error(errors.New("boom"), "Failed to build")

		assert.Contains(t, errOut.String(), "[ERROR] Failed to build: boom")
		assert.Empty(t, out.String())
	})

	t.Run("nil error prints nothing", func(t *testing.T) {
		var out, errOut bytes.Buffer
		p := NewWithOptions(&out, &errOut, ColorNever)

		p.Error(nil, "ignored")
		assert.Empty(t, errOut.String())
	})

	t.Run("quiet suppresses everything but errors", func(t *testing.T) {
		var out, errOut bytes.Buffer
		p := NewWithOptions(&out, &errOut, ColorNever)
		p.SetQuiet(true)

		p.Success("done")
		p.Warning("careful")
		p.Info("note")
		p.Error(errors.New("boom"), "")

		assert.Empty(t, out.String())
		assert.Contains(t, errOut.String(), "boom")
	})
}
