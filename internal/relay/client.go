// Package relay is the HTTP client for the backend proxy endpoints the chat
// widget talks to: camp listing, segment extraction, the streaming chat
// relay, suggested questions, query rewriting, and custom-instruction
// storage. Success means 2xx with a JSON body; everything else is an error
// the caller degrades from.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campchat/internal/logging"
	"campchat/internal/roster"
	"campchat/internal/stream"
)

// Camp is one selectable knowledge-base scope. ID doubles as the knowledge
// base id on the backend.
type Camp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Title returns the widget header text for a camp.
func (c Camp) Title() string {
	return c.Name + " AI"
}

// HistoryTurn is one prior conversation turn forwarded for context.
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest is the body of a streaming chat call.
type ChatRequest struct {
	Message            string        `json:"message"`
	CampID             string        `json:"vectorStoreId"`
	Instructions       string        `json:"instructions"`
	CustomInstructions string        `json:"customInstructions,omitempty"`
	CamperContext      string        `json:"camperContext,omitempty"`
	History            []HistoryTurn `json:"conversationHistory,omitempty"`
}

// Client calls the relay endpoints. Safe for concurrent use.
type Client struct {
	baseURL string
	// jsonClient has a round-trip timeout; streamClient must not, because a
	// chat stream legitimately outlives any fixed request timeout.
	jsonClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a relay client for the given base URL (e.g.
// "http://localhost:3000/api").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		jsonClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// postJSON marshals in, POSTs it, and decodes the 2xx response into out.
func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	logging.RelayDebug("POST %s completed in %v", path, time.Since(start))
	return nil
}

// ListCamps fetches the selectable camps. The backend returns the raw vector
// store listing; a store with an empty name falls back to its id.
func (c *Client) ListCamps(ctx context.Context) ([]Camp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/vector-stores", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("vector store listing failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var listing struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to parse vector store listing: %w", err)
	}

	camps := make([]Camp, 0, len(listing.Data))
	for _, vs := range listing.Data {
		name := vs.Name
		if name == "" {
			name = vs.ID
		}
		camps = append(camps, Camp{ID: vs.ID, Name: name})
	}
	logging.Relay("listed %d camps", len(camps))
	return camps, nil
}

// ExtractSegments fetches the segment schema for a camp.
func (c *Client) ExtractSegments(ctx context.Context, campID string) ([]roster.SegmentOption, error) {
	var out struct {
		Segments []roster.SegmentOption `json:"segments"`
	}
	in := map[string]string{"vectorStoreId": campID}
	if err := c.postJSON(ctx, "/extract-segments", in, &out); err != nil {
		return nil, err
	}
	return out.Segments, nil
}

// StreamChat opens a streaming chat request and returns its decoder. It never
// returns an error: a request that cannot be issued, or that the relay
// rejects, yields a pre-failed decoder whose single synthetic delta describes
// the connection failure.
func (c *Client) StreamChat(ctx context.Context, chatReq ChatRequest) *stream.Decoder {
	body, err := json.Marshal(chatReq)
	if err != nil {
		logging.RelayError("failed to marshal chat request: %v", err)
		return stream.NewFailedDecoder()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		logging.RelayError("failed to create chat request: %v", err)
		return stream.NewFailedDecoder()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		logging.RelayError("chat request failed: %v", err)
		return stream.NewFailedDecoder()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		logging.RelayError("chat request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return stream.NewFailedDecoder()
	}

	logging.Relay("chat stream opened for camp %s", chatReq.CampID)
	return stream.NewDecoder(resp.Body)
}

// SuggestQuestions fetches suggested questions for a camp, personalized when
// a camper context is present.
func (c *Client) SuggestQuestions(ctx context.Context, campID, personalization string) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	in := map[string]string{
		"vectorStoreId": campID,
		"camperContext": personalization,
	}
	if err := c.postJSON(ctx, "/suggest-questions", in, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// TransformQuery rewrites a question into a retrieval-friendly query using
// recent conversation history. Best-effort by contract; the caller falls back
// to the original question on any error.
func (c *Client) TransformQuery(ctx context.Context, question string, history []string) (string, error) {
	var out struct {
		TransformedQuery string `json:"transformedQuery"`
	}
	in := map[string]interface{}{
		"question":            question,
		"conversationHistory": history,
	}
	if err := c.postJSON(ctx, "/transform-query", in, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.TransformedQuery) == "" {
		return "", fmt.Errorf("empty transformed query")
	}
	return out.TransformedQuery, nil
}

// LoadCustomInstructions fetches the operator instruction override for a
// camp. An empty string means no override is configured.
func (c *Client) LoadCustomInstructions(ctx context.Context, campID string) (string, error) {
	var out struct {
		CustomInstructions string `json:"customInstructions"`
	}
	in := map[string]string{"vectorStoreId": campID}
	if err := c.postJSON(ctx, "/load-custom-instructions", in, &out); err != nil {
		return "", err
	}
	return out.CustomInstructions, nil
}

// SaveCustomInstructions uploads a new instruction override for a camp.
func (c *Client) SaveCustomInstructions(ctx context.Context, campID, text string) error {
	in := map[string]string{
		"vectorStoreId":      campID,
		"customInstructions": text,
	}
	return c.postJSON(ctx, "/upload-custom-instructions", in, nil)
}

// DeleteCustomInstructions removes the instruction override for a camp.
func (c *Client) DeleteCustomInstructions(ctx context.Context, campID string) error {
	in := map[string]string{"vectorStoreId": campID}
	return c.postJSON(ctx, "/delete-custom-instructions", in, nil)
}
