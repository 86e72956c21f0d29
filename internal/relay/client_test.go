package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campchat/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second), srv
}

func TestListCampsNameFallsBackToID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/vector-stores", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"vs_1","name":"Camp Pinecrest"},{"id":"vs_2","name":""}]}`))
	}))

	camps, err := client.ListCamps(context.Background())
	require.NoError(t, err)
	require.Len(t, camps, 2)
	assert.Equal(t, "Camp Pinecrest", camps[0].Name)
	assert.Equal(t, "vs_2", camps[1].Name, "empty name must fall back to the id")
}

func TestListCampsErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
	}))

	_, err := client.ListCamps(context.Background())
	assert.ErrorContains(t, err, "502")
}

func TestExtractSegments(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract-segments", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vs_1", body["vectorStoreId"])
		_, _ = w.Write([]byte(`{"segments":[{"label":"Session","values":["June","July"]}]}`))
	}))

	segs, err := client.ExtractSegments(context.Background(), "vs_1")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "Session", segs[0].Label)
	assert.Equal(t, []string{"June", "July"}, segs[0].Values)
}

func TestStreamChatDecodesDeltas(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "when is pickup", req.Message)
		assert.Equal(t, "vs_1", req.CampID)
		assert.NotEmpty(t, req.Instructions)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"type":"response.output_text.delta","delta":"Pickup is at 3pm."}` + "\n"))
		_, _ = w.Write([]byte("data: [DONE]\n"))
	}))

	dec := client.StreamChat(context.Background(), ChatRequest{
		Message:      "when is pickup",
		CampID:       "vs_1",
		Instructions: "base prompt",
	})
	defer dec.Close()

	ev, ok := dec.Next()
	require.True(t, ok)
	assert.Equal(t, stream.EventTextDelta, ev.Kind)
	assert.Equal(t, "Pickup is at 3pm.", ev.Text)

	_, ok = dec.Next()
	assert.False(t, ok)
	assert.False(t, dec.Failed())
}

func TestStreamChatNonOKYieldsFailedDecoder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	dec := client.StreamChat(context.Background(), ChatRequest{Message: "hi", CampID: "vs_1"})
	defer dec.Close()

	ev, ok := dec.Next()
	require.True(t, ok)
	assert.Equal(t, stream.ConnectionFailureText, ev.Text)
	assert.True(t, dec.Failed())
}

func TestStreamChatUnreachableRelay(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	dec := client.StreamChat(context.Background(), ChatRequest{Message: "hi", CampID: "vs_1"})
	defer dec.Close()

	ev, ok := dec.Next()
	require.True(t, ok)
	assert.Equal(t, stream.ConnectionFailureText, ev.Text)
	assert.True(t, dec.Failed())
}

func TestSuggestQuestions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggest-questions", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2 campers", body["camperContext"])
		_, _ = w.Write([]byte(`{"questions":["What are the swim requirements?","When is drop-off?"]}`))
	}))

	qs, err := client.SuggestQuestions(context.Background(), "vs_1", "2 campers")
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestTransformQuery(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Question string   `json:"question"`
			History  []string `json:"conversationHistory"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what about july", body.Question)
		assert.Len(t, body.History, 2)
		_, _ = w.Write([]byte(`{"transformedQuery":"July session details"}`))
	}))

	got, err := client.TransformQuery(context.Background(), "what about july", []string{"User: sessions?", "Assistant: June and July."})
	require.NoError(t, err)
	assert.Equal(t, "July session details", got)
}

func TestTransformQueryRejectsEmptyRewrite(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transformedQuery":"  "}`))
	}))

	_, err := client.TransformQuery(context.Background(), "q", nil)
	assert.Error(t, err)
}

func TestCustomInstructionsRoundTrip(t *testing.T) {
	saved := map[string]string{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/upload-custom-instructions":
			saved[body["vectorStoreId"]] = body["customInstructions"]
			_, _ = w.Write([]byte(`{}`))
		case "/load-custom-instructions":
			_ = json.NewEncoder(w).Encode(map[string]string{"customInstructions": saved[body["vectorStoreId"]]})
		case "/delete-custom-instructions":
			delete(saved, body["vectorStoreId"])
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	require.NoError(t, client.SaveCustomInstructions(ctx, "vs_1", "Mention the lake rules."))
	text, err := client.LoadCustomInstructions(ctx, "vs_1")
	require.NoError(t, err)
	assert.Equal(t, "Mention the lake rules.", text)

	require.NoError(t, client.DeleteCustomInstructions(ctx, "vs_1"))
	text, err = client.LoadCustomInstructions(ctx, "vs_1")
	require.NoError(t, err)
	assert.Empty(t, text)
}
