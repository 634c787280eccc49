package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/orbital-labs/researchflow/internal/metrics"
)

// Renderer calls the external markdown-to-PDF rendering service. Rendering
// is best-effort: every failure path degrades to a PdfOutcome with
// Success=false and the workflow still returns the markdown report.
type Renderer struct {
	baseURL   string
	client    *http.Client
	outputDir string
}

// NewRenderer creates a renderer client. An empty baseURL disables
// rendering; RenderPDF then reports a degraded outcome immediately.
func NewRenderer(baseURL string, timeout time.Duration, outputDir string) *Renderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Renderer{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		outputDir: outputDir,
	}
}

type renderRequest struct {
	Markdown string            `json:"markdown"`
	Title    string            `json:"title"`
	Style    map[string]string `json:"style,omitempty"`
}

// RenderPDF converts the markdown report to a PDF file in the output
// directory. Never returns an error for renderer failures.
func (a *Activities) RenderPDF(ctx context.Context, in RenderInput) (PdfOutcome, error) {
	logger := activity.GetLogger(ctx)

	outcome := a.renderer.render(ctx, in)
	if outcome.Success {
		metrics.PDFRenders.WithLabelValues("succeeded").Inc()
	} else {
		metrics.PDFRenders.WithLabelValues("degraded").Inc()
		logger.Warn("PDF rendering degraded",
			"workflow_id", in.WorkflowID,
			"error", outcome.ErrorMessage,
		)
	}
	return outcome, nil
}

func (r *Renderer) render(ctx context.Context, in RenderInput) PdfOutcome {
	if r == nil || r.baseURL == "" {
		return PdfOutcome{Success: false, ErrorMessage: "pdf renderer not configured"}
	}

	body, err := json.Marshal(renderRequest{Markdown: in.Markdown, Title: in.Title})
	if err != nil {
		return PdfOutcome{Success: false, ErrorMessage: fmt.Sprintf("marshal render request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return PdfOutcome{Success: false, ErrorMessage: fmt.Sprintf("build render request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return PdfOutcome{Success: false, ErrorMessage: fmt.Sprintf("render call failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PdfOutcome{Success: false, ErrorMessage: fmt.Sprintf("renderer returned status %d", resp.StatusCode)}
	}

	pdf, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return PdfOutcome{Success: false, ErrorMessage: fmt.Sprintf("read rendered pdf: %v", err)}
	}
	if len(pdf) == 0 {
		return PdfOutcome{Success: false, ErrorMessage: "renderer returned empty document"}
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return PdfOutcome{Success: false, ErrorMessage: fmt.Sprintf("create output dir: %v", err)}
	}
	name := fmt.Sprintf("research_report_%s.pdf", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(r.outputDir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return PdfOutcome{Success: false, ErrorMessage: fmt.Sprintf("write pdf: %v", err)}
	}

	return PdfOutcome{
		Success:         true,
		FilePath:        path,
		FormattingNotes: fmt.Sprintf("rendered %d bytes from %d markdown chars", len(pdf), len(in.Markdown)),
	}
}
