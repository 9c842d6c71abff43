package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/entrhq/webpilot/pkg/llm"
)

// staticPricing is the built-in fallback table, in USD per million tokens.
// Used when the live models lookup fails or the model is not listed.
var staticPricing = map[string]llm.ModelPricing{
	"anthropic/claude-sonnet-4":   {PromptPerMTok: 3, CompletionPerMTok: 15},
	"anthropic/claude-opus-4":     {PromptPerMTok: 15, CompletionPerMTok: 75},
	"openai/gpt-4o":               {PromptPerMTok: 2.5, CompletionPerMTok: 10},
	"openai/gpt-4o-mini":          {PromptPerMTok: 0.15, CompletionPerMTok: 0.6},
	"google/gemini-2.5-pro":       {PromptPerMTok: 1.25, CompletionPerMTok: 10},
	"meta-llama/llama-4-maverick": {PromptPerMTok: 0.2, CompletionPerMTok: 0.85},
}

// pricingCache caches resolved prices per model ID. The first successful
// lookup for a model is reused for the remainder of the client's lifetime;
// keying by model means a controller reset onto a different model still
// gets correct prices.
type pricingCache struct {
	mu      sync.Mutex
	byModel map[string]llm.ModelPricing
}

func newPricingCache() *pricingCache {
	return &pricingCache{byModel: make(map[string]llm.ModelPricing)}
}

func (pc *pricingCache) get(model string) (llm.ModelPricing, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	p, ok := pc.byModel[model]
	return p, ok
}

func (pc *pricingCache) put(model string, p llm.ModelPricing) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.byModel[model] = p
}

// Pricing resolves per-million-token prices for the given model. It queries
// the models catalog endpoint once per model, matches by exact identifier,
// and falls back to the static table on any failure. It never returns an
// error; unknown models price at zero.
func (c *Client) Pricing(ctx context.Context, model string) llm.ModelPricing {
	if p, ok := c.pricing.get(model); ok {
		return p
	}

	p, err := c.fetchPricing(ctx, model)
	if err != nil {
		debugLog.Debugf("Pricing lookup for %s failed (%v), using static table", model, err)
		p = staticPricing[model] // zero value when absent
	}

	c.pricing.put(model, p)
	return p
}

// modelsResponse mirrors the models catalog payload. Prices arrive as USD
// per token, usually encoded as strings.
type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Pricing struct {
			Prompt     json.RawMessage `json:"prompt"`
			Completion json.RawMessage `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}

// fetchPricing queries the live models catalog for the given model.
func (c *Client) fetchPricing(ctx context.Context, model string) (llm.ModelPricing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return llm.ModelPricing{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llm.ModelPricing{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.ModelPricing{}, &llm.APIError{StatusCode: resp.StatusCode, Body: "models lookup failed"}
	}

	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return llm.ModelPricing{}, err
	}

	for _, m := range models.Data {
		if m.ID != model {
			continue
		}
		// Catalog prices are per token; convert to per million.
		return llm.ModelPricing{
			PromptPerMTok:     parsePrice(m.Pricing.Prompt) * 1_000_000,
			CompletionPerMTok: parsePrice(m.Pricing.Completion) * 1_000_000,
		}, nil
	}

	return llm.ModelPricing{}, fmt.Errorf("model %q not found in catalog", model)
}

// parsePrice decodes a catalog price that may be a JSON string or number.
func parsePrice(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}
