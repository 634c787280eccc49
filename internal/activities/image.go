package activities

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/orbital-labs/researchflow/internal/agents"
	"github.com/orbital-labs/researchflow/internal/metrics"
)

// illustrationSpec is the Illustrator role's structured output: a short
// visual description the image service turns into an actual image.
type illustrationSpec struct {
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

type imageGenerateRequest struct {
	Prompt       string `json:"prompt"`
	Size         string `json:"size"`
	OutputFormat string `json:"output_format"`
}

type imageGenerateResponse struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// GenerateIllustration produces a cover illustration for the report. It runs
// concurrently with the rest of the pipeline and never returns an error:
// every failure path degrades to an ImageOutcome with Success=false.
func (a *Activities) GenerateIllustration(ctx context.Context, in IllustrationInput) (ImageOutcome, error) {
	logger := activity.GetLogger(ctx)

	outcome := a.illustrate(ctx, in)
	if outcome.Success {
		metrics.Illustrations.WithLabelValues("succeeded").Inc()
	} else {
		metrics.Illustrations.WithLabelValues("degraded").Inc()
		logger.Warn("Illustration degraded",
			"workflow_id", in.WorkflowID,
			"error", outcome.ErrorMessage,
		)
	}
	return outcome, nil
}

func (a *Activities) illustrate(ctx context.Context, in IllustrationInput) ImageOutcome {
	raw, _, err := a.invoker.Invoke(ctx, agents.Illustrator, map[string]any{
		"query": in.Instruction,
	})
	if err != nil {
		return ImageOutcome{Success: false, ErrorMessage: fmt.Sprintf("illustrator invocation failed: %v", err)}
	}

	var spec illustrationSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return ImageOutcome{Success: false, ErrorMessage: fmt.Sprintf("decode illustration spec: %v", err)}
	}
	if strings.TrimSpace(spec.Description) == "" {
		return ImageOutcome{Success: false, ErrorMessage: "illustrator returned empty description"}
	}

	png, err := a.invoker.generateImage(ctx, spec.Description)
	if err != nil {
		return ImageOutcome{Success: false, Description: spec.Description, ErrorMessage: err.Error()}
	}

	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return ImageOutcome{Success: false, Description: spec.Description, ErrorMessage: fmt.Sprintf("create output dir: %v", err)}
	}
	name := fmt.Sprintf("research_image_%s.png", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(a.outputDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return ImageOutcome{Success: false, Description: spec.Description, ErrorMessage: fmt.Sprintf("write image: %v", err)}
	}

	return ImageOutcome{
		Success:     true,
		FilePath:    path,
		Description: spec.Description,
	}
}

// generateImage calls the agent service's image endpoint and returns the
// decoded image bytes.
func (inv *Invoker) generateImage(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(imageGenerateRequest{
		Prompt:       prompt,
		Size:         "1024x1024",
		OutputFormat: "png",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	url := fmt.Sprintf("%s/images/generate", inv.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image service returned status %d", resp.StatusCode)
	}

	var ir imageGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}
	img, err := base64.StdEncoding.DecodeString(ir.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("image service returned empty image")
	}
	return img, nil
}
