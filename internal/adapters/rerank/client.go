// Package rerank asks an OpenAI-compatible chat model to reorder a short
// list of search candidates.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"propsearch/internal/adapters/observability"
	"propsearch/internal/domain"
)

var (
	ErrMalformed = errors.New("rerank: malformed model output")
	ErrNoAPIKey  = errors.New("rerank: api key required")
)

const (
	defaultModel = "gpt-4o-mini"
	maxItems     = 8
	maxSnippet   = 200
)

type Client struct {
	base  string
	key   string
	model string
	hc    *http.Client
}

func New(base, key, model string, timeout time.Duration) (*Client, error) {
	if key == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		key:   key,
		model: model,
		hc:    &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `Eres un asistente que ordena resultados de búsqueda por relevancia para la consulta del usuario.
Prefiere avisos de propiedades individuales con precio y ubicación explícitos por sobre portadas de portales o artículos.
Responde SOLO con JSON: {"order":[<rangos en el nuevo orden>],"notes":"<breve justificación>"}.
"order" debe contener cada rango de entrada exactamente una vez.`

// Rerank returns a permutation of the 1-based item ranks. Items beyond
// the first eight are ignored.
func (c *Client) Rerank(ctx context.Context, query string, items []domain.RerankItem) (domain.RerankOutcome, error) {
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	if len(items) < 2 {
		return domain.RerankOutcome{Order: identity(len(items))}, nil
	}

	var req chatRequest
	req.Model = c.model
	req.ResponseFormat.Type = "json_object"
	req.Messages = []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt(query, items)},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.RerankOutcome{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.RerankOutcome{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.key)

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		observability.ObserveExternal("rerank", "chat", 0, time.Since(start))
		return domain.RerankOutcome{}, fmt.Errorf("rerank: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("rerank", "chat", resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.RerankOutcome{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.RerankOutcome{}, fmt.Errorf("rerank: status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil || len(cr.Choices) == 0 {
		return domain.RerankOutcome{}, ErrMalformed
	}
	return ParseOutcome(cr.Choices[0].Message.Content, len(items))
}

func userPrompt(query string, items []domain.RerankItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consulta: %s\n\nResultados:\n", query)
	for _, it := range items {
		snip := it.Snippet
		if r := []rune(snip); len(r) > maxSnippet {
			snip = string(r[:maxSnippet]) + "…"
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", it.Rank, it.Title, it.Domain, snip)
	}
	return b.String()
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
