package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iqralabs/iqra/internal/exam"
)

// LLM generates exams by prompting a JSON-capable language model behind
// an Ollama-compatible generation endpoint.
//
// No timeout is imposed on the generation call itself; cancellation comes
// from the caller's context. A hung call leaves the session in its
// loading state until the learner exits.
type LLM struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewLLM creates a generator talking to baseURL (default
// http://localhost:11434) using the given model.
func NewLLM(baseURL, model string) *LLM {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &LLM{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// Generate prompts the model and decodes its output into a validated
// exam. Schema violations are reported as ErrMalformed; no partial exam
// is ever returned.
func (g *LLM) Generate(ctx context.Context, level int, lang string) (*exam.Data, error) {
	if level < 1 || level > exam.TotalLevels {
		return nil, fmt.Errorf("level %d out of range 1..%d", level, exam.TotalLevels)
	}

	reqBody := map[string]any{
		"model":  g.model,
		"prompt": buildPrompt(level, lang),
		"stream": false,
		"format": "json",
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("requesting exam generation", "level", level, "lang", lang, "model", g.model)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if result.Response == "" {
		return nil, fmt.Errorf("%w: empty model response", ErrMalformed)
	}

	raw := []byte(stripFences(result.Response))
	if err := exam.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var data exam.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return finalize(&data, level)
}

// stripFences removes a surrounding markdown code fence, which some
// models emit despite JSON-only instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
