package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// HTTPConfig Ollama 兼容服务配置
type HTTPConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
	Client   *http.Client // 为空时按 Timeout 新建
}

func (c HTTPConfig) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (c HTTPConfig) url(path string) string {
	return strings.TrimRight(c.Endpoint, "/") + path
}

// HTTPEmbedder 调用 /api/embeddings
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPEmbedder 创建 embedding 适配器
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	return &HTTPEmbedder{cfg: cfg, client: cfg.client()}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed 实现 Embedder
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var out embedResponse
	if err := postJSON(ctx, e.client, e.cfg.url("/api/embeddings"), embedRequest{Model: e.cfg.Model, Prompt: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, eris.Wrap(model.ErrCapabilityUnavailable, "embedding response is empty")
	}
	return out.Embedding, nil
}

// HTTPAdvisor 调用 /api/generate
type HTTPAdvisor struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPAdvisor 创建建议适配器
func NewHTTPAdvisor(cfg HTTPConfig) *HTTPAdvisor {
	return &HTTPAdvisor{cfg: cfg, client: cfg.client()}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Advise 实现 Advisor
func (a *HTTPAdvisor) Advise(ctx context.Context, p Prompt) (Suggestion, error) {
	var out generateResponse
	req := generateRequest{Model: a.cfg.Model, Prompt: p.Render(), Stream: false, Format: "json"}
	if err := postJSON(ctx, a.client, a.cfg.url("/api/generate"), req, &out); err != nil {
		return Suggestion{}, err
	}
	var s Suggestion
	if err := json.Unmarshal([]byte(out.Response), &s); err != nil {
		return Suggestion{}, eris.Wrapf(model.ErrCapabilityUnavailable, "advisor returned non-json answer: %v", err)
	}
	if s.Score < 0 {
		s.Score = 0
	}
	if s.Score > 1 {
		s.Score = 1
	}
	return s, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "failed to encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrapf(model.ErrCapabilityUnavailable, "request %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Wrapf(model.ErrCapabilityUnavailable, "%s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(model.ErrCapabilityUnavailable, fmt.Sprintf("failed to decode %s response: %v", url, err))
	}
	return nil
}
