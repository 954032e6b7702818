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

// SerperToolName is the name agents use to request a Serper search.
const SerperToolName = "serper_search"

// DefaultSerperURL is the Serper web search endpoint.
const DefaultSerperURL = "https://google.serper.dev/search"

// SerperTool searches Google through the Serper API.
type SerperTool struct {
	APIKey  string
	URL     string
	Results int
	Client  *http.Client
}

// NewSerperTool creates a Serper tool with default endpoint and result count.
func NewSerperTool(apiKey string) *SerperTool {
	return &SerperTool{APIKey: apiKey, URL: DefaultSerperURL, Results: 10, Client: http.DefaultClient}
}

func (t *SerperTool) Name() string { return SerperToolName }

func (t *SerperTool) Description() string {
	return "Search the internet with Serper. Returns titles, links and snippets of Google results for a query."
}

func (t *SerperTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"search_query": map[string]interface{}{
				"type":        "string",
				"description": "Mandatory search query you want to use to search the internet",
			},
		},
		"required": []string{"search_query"},
	}
}

type serperResponse struct {
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Type        string `json:"type"`
		Website     string `json:"website"`
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (t *SerperTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, err := stringArg(args, "search_query")
	if err != nil {
		return nil, err
	}
	if t.APIKey == "" {
		return nil, fmt.Errorf("SERPER_API_KEY is not set")
	}

	body, _ := json.Marshal(map[string]interface{}{"q": query, "num": t.Results})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client(t.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("serper search error (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse serper response: %w", err)
	}
	return formatSerper(&parsed), nil
}

func formatSerper(r *serperResponse) string {
	var b strings.Builder
	if kg := r.KnowledgeGraph; kg != nil && kg.Title != "" {
		fmt.Fprintf(&b, "Knowledge Graph: %s", kg.Title)
		if kg.Type != "" {
			fmt.Fprintf(&b, " (%s)", kg.Type)
		}
		if kg.Website != "" {
			fmt.Fprintf(&b, " - %s", kg.Website)
		}
		if kg.Description != "" {
			fmt.Fprintf(&b, "\n%s", kg.Description)
		}
		b.WriteString("\n---\n")
	}
	if len(r.Organic) == 0 {
		b.WriteString("No results found.")
		return b.String()
	}
	for i, o := range r.Organic {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "Title: %s\nLink: %s\nSnippet: %s", o.Title, o.Link, o.Snippet)
	}
	return b.String()
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
