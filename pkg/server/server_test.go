package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/router"
)

func writeSkill(t *testing.T, root, id, frontmatter string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\n" + frontmatter + "---\n\n# " + id + "\n\nInstructions.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "seo-audit", `name: SEO Audit
description: Manages SEO audits and keyword research
`)
	writeSkill(t, tmpDir, "internal-notes", `name: Internal Notes
description: Maintains internal notes
user-invocable: false
`)

	store, err := registry.NewStore(context.Background(), tmpDir)
	require.NoError(t, err)

	srv, err := New(store, router.New(), &Config{
		Host:          "localhost",
		Port:          7430,
		DefaultBudget: 32768,
		RouteTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return srv, tmpDir
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid",
			config: Config{Host: "localhost", Port: 7430, DefaultBudget: 1024},
		},
		{
			name:    "empty host",
			config:  Config{Port: 7430, DefaultBudget: 1024},
			wantErr: "host cannot be empty",
		},
		{
			name:    "bad port",
			config:  Config{Host: "localhost", Port: 0, DefaultBudget: 1024},
			wantErr: "port must be between",
		},
		{
			name:    "non-positive budget",
			config:  Config{Host: "localhost", Port: 7430},
			wantErr: "default budget must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestListSkills(t *testing.T) {
	srv, _ := testServer(t)

	t.Run("hides non-user-invocable skills by default", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		var resp struct {
			Skills []skillSummary `json:"skills"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Skills, 1)
		assert.Equal(t, "seo-audit", resp.Skills[0].ID)
	})

	t.Run("all=true includes everything", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills?all=true", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Skills []skillSummary `json:"skills"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Skills, 2)
	})
}

func TestGetSkill(t *testing.T) {
	srv, _ := testServer(t)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills/seo-audit", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var summary skillSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, "seo-audit", summary.ID)
		assert.Equal(t, "SEO Audit", summary.Name)
		assert.Greater(t, summary.Size, 0)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRoute(t *testing.T) {
	srv, _ := testServer(t)

	post := func(t *testing.T, body interface{}) *httptest.ResponseRecorder {
		t.Helper()
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/route", bytes.NewReader(raw)))
		return rec
	}

	t.Run("routes a query", func(t *testing.T) {
		rec := post(t, routeRequest{Query: "audit my seo keywords"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp routeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Decision)
		require.Len(t, resp.Decision.Matches, 1)
		assert.Equal(t, "seo-audit", resp.Decision.Matches[0].ID)
		assert.Nil(t, resp.Documents)
	})

	t.Run("load returns documents", func(t *testing.T) {
		rec := post(t, routeRequest{Query: "audit my seo keywords", Load: true})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp routeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Documents)
		require.Len(t, resp.Documents.Documents, 1)
		assert.Contains(t, resp.Documents.Documents[0].Content, "Instructions.")
	})

	t.Run("no match is an empty decision, not an error", func(t *testing.T) {
		rec := post(t, routeRequest{Query: "bake a sourdough loaf"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp routeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Decision.Matches)
	})

	t.Run("missing query", func(t *testing.T) {
		rec := post(t, routeRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/route", bytes.NewReader([]byte("{not json"))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReload(t *testing.T) {
	srv, tmpDir := testServer(t)

	writeSkill(t, tmpDir, "late-arrival", `name: Late Arrival
description: Added after startup
`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp["skills"])

	t.Run("failed reload keeps the old snapshot", func(t *testing.T) {
		broken := filepath.Join(tmpDir, "late-arrival", "SKILL.md")
		require.NoError(t, os.WriteFile(broken, []byte("---\nname: Late Arrival\n---\n"), 0o644))

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/reload", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills/late-arrival", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}
