package activities

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWritesPDFFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/render", r.URL.Path)
		_, _ = w.Write([]byte("%PDF-1.4 fake document"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewRenderer(srv.URL, 5*time.Second, dir)
	outcome := r.render(context.Background(), RenderInput{
		WorkflowID: "research-abc",
		Title:      "summary",
		Markdown:   "# Report",
	})

	require.True(t, outcome.Success, "render failed: %s", outcome.ErrorMessage)
	require.NotEmpty(t, outcome.FilePath)

	data, err := os.ReadFile(outcome.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake document", string(data))
	assert.Contains(t, outcome.FilePath, "research_report_")
}

func TestRenderDegradesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRenderer(srv.URL, 5*time.Second, t.TempDir())
	outcome := r.render(context.Background(), RenderInput{Markdown: "# Report"})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "status 500")
}

func TestRenderDegradesOnEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	r := NewRenderer(srv.URL, 5*time.Second, t.TempDir())
	outcome := r.render(context.Background(), RenderInput{Markdown: "# Report"})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "empty document")
}

func TestRenderUnconfiguredDegrades(t *testing.T) {
	var r *Renderer
	outcome := r.render(context.Background(), RenderInput{Markdown: "# Report"})
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "not configured")
}
