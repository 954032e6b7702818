package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ExaToolName is the name agents use to request an Exa search.
const ExaToolName = "exa_search"

// DefaultExaURL is the Exa search endpoint.
const DefaultExaURL = "https://api.exa.ai/search"

// ExaTool runs Exa semantic search and returns result highlights.
type ExaTool struct {
	APIKey     string
	URL        string
	Results    int
	SearchType string
	Highlights bool
	Client     *http.Client
}

// NewExaTool creates an Exa tool: neural search, 30 results, highlights on.
func NewExaTool(apiKey string) *ExaTool {
	return &ExaTool{
		APIKey:     apiKey,
		URL:        DefaultExaURL,
		Results:    30,
		SearchType: "neural",
		Highlights: true,
		Client:     http.DefaultClient,
	}
}

func (t *ExaTool) Name() string { return ExaToolName }

func (t *ExaTool) Description() string {
	return "Exa search and get contents. Runs a semantic search and returns titles, URLs and highlights of matching pages."
}

func (t *ExaTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"question": map[string]interface{}{
				"type":        "string",
				"description": "Natural language description of the pages to find",
			},
		},
		"required": []string{"question"},
	}
}

type exaRequest struct {
	Query      string      `json:"query"`
	Type       string      `json:"type"`
	NumResults int         `json:"numResults"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Highlights bool `json:"highlights"`
}

type exaResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Highlights []string `json:"highlights"`
}

// Execute never fails the task on search errors. The error is handed back to
// the agent as text so it can retry or move on.
func (t *ExaTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	question, err := stringArg(args, "question")
	if err != nil {
		return nil, err
	}
	results, err := t.search(ctx, question)
	if err != nil {
		return fmt.Sprintf("Error during Exa search: %v", err), nil
	}
	return formatExa(results), nil
}

func (t *ExaTool) search(ctx context.Context, question string) ([]exaResult, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("EXA_API_KEY is not set")
	}
	body, _ := json.Marshal(exaRequest{
		Query:      question,
		Type:       t.SearchType,
		NumResults: t.Results,
		Contents:   exaContents{Highlights: t.Highlights},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client(t.Client).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed exaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse exa response: %w", err)
	}
	return parsed.Results, nil
}

func formatExa(results []exaResult) string {
	items := make([]string, 0, len(results))
	for idx, r := range results {
		items = append(items, fmt.Sprintf(
			"<Title id=%d>%s</Title>\n<URL id=%d>%s</URL>\n<Highlight id=%d>%s</Highlight>",
			idx, r.Title, idx, r.URL, idx, strings.Join(r.Highlights, " | "),
		))
	}
	return strings.Join(items, "\n\n")
}
