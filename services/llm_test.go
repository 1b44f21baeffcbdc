package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptRoundTrip(t *testing.T) {
	transcript := NewTranscript([]Message{
		TextMessage("user", "Pick an outfit"),
		BlocksMessage("assistant", []ContentBlock{
			{Type: ContentBlockText, Text: "Let me check the weather."},
			{Type: ContentBlockToolUse, ID: "toolu_01", Name: ToolGetWeather, Input: json.RawMessage(`{"lat":40.7,"lon":-74.0}`)},
		}),
	})
	require.NoError(t, transcript.AppendToolResult("toolu_01", "Sunny"))

	data, err := json.Marshal(transcript.Messages)
	require.NoError(t, err)

	var parsed []Message
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Equal(t, transcript.Messages, parsed)
}

func TestTranscriptStringContentRoundTrip(t *testing.T) {
	message := TextMessage("user", "hello")
	data, err := json.Marshal(message)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))

	var parsed Message
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Equal(t, message, parsed)
}

func TestAppendToolResultMismatchRejected(t *testing.T) {
	transcript := NewTranscript([]Message{
		TextMessage("user", "Pick an outfit"),
		BlocksMessage("assistant", []ContentBlock{
			{Type: ContentBlockToolUse, ID: "toolu_01", Name: ToolGetWeather, Input: json.RawMessage(`{}`)},
		}),
	})

	err := transcript.AppendToolResult("toolu_02", "Sunny")
	require.ErrorIs(t, err, ErrToolResultMismatch)
	assert.Len(t, transcript.Messages, 2)
}

func TestAppendToolResultNoPendingToolUse(t *testing.T) {
	transcript := NewTranscript([]Message{
		TextMessage("user", "Pick an outfit"),
	})
	err := transcript.AppendToolResult("toolu_01", "Sunny")
	require.ErrorIs(t, err, ErrToolResultMismatch)
}

func TestAnthropicServiceCreateMessage(t *testing.T) {
	var gotPath, gotAPIKey, gotVersion string
	var gotRequest MessagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&gotRequest)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"role": "assistant",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Hi"}]
		}`))
	}))
	defer server.Close()

	service := &AnthropicService{APIKey: "test-key", BaseURL: server.URL, Client: server.Client()}
	response, err := service.CreateMessage(context.Background(), &MessagesRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
		Messages:  []Message{TextMessage("user", "hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "test-key", gotAPIKey)
	assert.Equal(t, "2023-06-01", gotVersion)
	assert.Equal(t, 1024, gotRequest.MaxTokens)
	require.Len(t, gotRequest.Messages, 1)

	assert.Equal(t, StopReasonEndTurn, response.StopReason)
	assert.Equal(t, "Hi", response.TextContent())
}

func TestAnthropicServiceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "overloaded"}`))
	}))
	defer server.Close()

	service := &AnthropicService{APIKey: "test-key", BaseURL: server.URL, Client: server.Client()}
	_, err := service.CreateMessage(context.Background(), &MessagesRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
		Messages:  []Message{TextMessage("user", "hello")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFirstToolUsePicksFirstBlock(t *testing.T) {
	response := &MessagesResponse{
		Content: []ContentBlock{
			{Type: ContentBlockText, Text: "Checking"},
			{Type: ContentBlockToolUse, ID: "toolu_01", Name: ToolGetWeather},
			{Type: ContentBlockToolUse, ID: "toolu_02", Name: ToolGetLocation},
		},
	}
	toolUse := response.FirstToolUse()
	require.NotNil(t, toolUse)
	assert.Equal(t, "toolu_01", toolUse.ID)
}
