package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/pseudotran/internal/postprocess"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "qwen2.5-coder:7b"

// OllamaTranslator translates pseudocode to Python through a self-hosted
// Ollama instance.
type OllamaTranslator struct {
	baseURL string
	model   string
	client  *http.Client
	stats   Stats
}

// NewOllamaTranslator returns a translator against baseURL. Empty arguments
// fall back to http://localhost:11434 and DefaultOllamaModel.
func NewOllamaTranslator(baseURL, model string) *OllamaTranslator {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaTranslator{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OllamaTranslator) Name() string {
	return "ollama"
}

// Stats returns the instance's translation counters.
func (s *OllamaTranslator) Stats() Snapshot {
	return s.stats.Snapshot()
}

// ResetStats zeroes the instance's translation counters.
func (s *OllamaTranslator) ResetStats() {
	s.stats.Reset()
}

func (s *OllamaTranslator) Translate(ctx context.Context, req Request) (*Result, error) {
	result := &Result{Metadata: map[string]string{"model": s.model}}
	start := time.Now()
	defer func() {
		result.Latency = time.Since(start)
		s.stats.record(result.Success, result.Latency)
	}()

	if strings.TrimSpace(req.Text) == "" {
		result.Errors = append(result.Errors, "empty input text")
		return result, nil
	}

	prompt := buildPrompt(req)

	ollamaReq := map[string]any{
		"model":  s.model,
		"prompt": prompt,
		"stream": false,
	}

	jsonData, err := json.Marshal(ollamaReq)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to marshal request: %v", err))
		return result, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to create request: %v", err))
		return result, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("request failed: %v", err))
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("API returned status %d", resp.StatusCode)
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to decode response: %v", err))
		return result, err
	}

	code := postprocess.Clean(ollamaResp.Response)
	if code == "" {
		result.Errors = append(result.Errors, "model returned empty result")
		return result, nil
	}

	result.Success = true
	result.Code = code
	result.Warnings = LintGenerated(code)
	return result, nil
}

func (s *OllamaTranslator) IsAvailable(ctx context.Context) error {
	req, _ := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/tags", s.baseURL), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama not available: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// buildPrompt renders the translation prompt, prepending the trailing window
// of previously translated code when the pipeline supplied one.
func buildPrompt(req Request) string {
	lang := req.TargetLanguage
	if lang == "" {
		lang = "Python"
	}

	var sb strings.Builder
	if before := req.Context[CtxBefore]; before != "" {
		sb.WriteString("Previously translated code for context:\n")
		sb.WriteString(before)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, `Translate the following pseudocode to %s:

Pseudocode:
%s

Requirements:
- Generate clean, readable %s code
- Include appropriate comments for clarity
- Follow %s naming conventions
- Ensure proper syntax and structure
- Handle edge cases appropriately

%s Code:`, lang, req.Text, lang, lang, lang)
	return sb.String()
}

// LintGenerated returns best-effort warnings about generated code: empty or
// suspiciously short output and leftover TODO/FIXME markers.
func LintGenerated(code string) []string {
	var warnings []string
	if strings.TrimSpace(code) == "" {
		return []string{"generated code is empty"}
	}
	if len(strings.Split(code, "\n")) < 2 {
		warnings = append(warnings, "generated code seems too short")
	}
	if strings.Contains(code, "TODO") || strings.Contains(code, "FIXME") {
		warnings = append(warnings, "generated code contains TODO/FIXME comments")
	}
	return warnings
}
