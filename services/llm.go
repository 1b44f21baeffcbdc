package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// StopReason is the stop_reason tag of a messages API response.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonPauseTurn StopReason = "pause_turn"
)

const (
	ContentBlockText       = "text"
	ContentBlockToolUse    = "tool_use"
	ContentBlockToolResult = "tool_result"
)

// ContentBlock is one typed element of a turn's content list.
// ID and Input are set on tool_use blocks, ToolUseID and Content
// on tool_result blocks, Text on text blocks.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// MessageContent is either a plain string or a list of content blocks,
// matching both shapes the messages API accepts.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.Blocks != nil {
		return json.Marshal(mc.Blocks)
	}
	return json.Marshal(mc.Text)
}

func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		mc.Blocks = nil
		return json.Unmarshal(trimmed, &mc.Text)
	}
	mc.Text = ""
	return json.Unmarshal(trimmed, &mc.Blocks)
}

type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

func TextMessage(role string, text string) Message {
	return Message{Role: role, Content: MessageContent{Text: text}}
}

func BlocksMessage(role string, blocks []ContentBlock) Message {
	return Message{Role: role, Content: MessageContent{Blocks: blocks}}
}

var ErrToolResultMismatch = errors.New("tool result id does not match last tool use id")

// Transcript is the ordered list of turns exchanged with the model. It is the
// unit of resumable state: a suspended generation hands it back to the caller
// and accepts it again on resume.
type Transcript struct {
	Messages []Message `json:"messages"`
}

func NewTranscript(messages []Message) *Transcript {
	return &Transcript{Messages: messages}
}

func (t *Transcript) Append(message Message) {
	t.Messages = append(t.Messages, message)
}

// LastToolUseID returns the id of the first tool_use block of the most
// recent assistant turn, or empty string when there is none.
func (t *Transcript) LastToolUseID() string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role != "assistant" {
			continue
		}
		for _, block := range t.Messages[i].Content.Blocks {
			if block.Type == ContentBlockToolUse {
				return block.ID
			}
		}
		return ""
	}
	return ""
}

// AppendToolResult appends a user turn carrying a tool_result block. The
// id must match the pending tool_use id of the last assistant turn,
// mismatches mean the caller is building an invalid conversation.
func (t *Transcript) AppendToolResult(toolUseID string, content string) error {
	if toolUseID == "" || toolUseID != t.LastToolUseID() {
		return fmt.Errorf("%w: got %q, want %q", ErrToolResultMismatch, toolUseID, t.LastToolUseID())
	}
	t.Append(BlocksMessage("user", []ContentBlock{
		{
			Type:      ContentBlockToolResult,
			ToolUseID: toolUseID,
			Content:   content,
		},
	}))
	return nil
}

type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type ToolChoice struct {
	Type                   string `json:"type"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

type MessagesRequest struct {
	Model      string           `json:"model"`
	MaxTokens  int              `json:"max_tokens"`
	Messages   []Message        `json:"messages"`
	System     string           `json:"system,omitempty"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice *ToolChoice      `json:"tool_choice,omitempty"`
}

type MessagesUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
}

type MessagesResponse struct {
	ID         string         `json:"id"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      MessagesUsage  `json:"usage"`
}

// FirstToolUse returns the first tool_use block of the response content,
// or nil when the model produced none.
func (r *MessagesResponse) FirstToolUse() *ContentBlock {
	for i := range r.Content {
		if r.Content[i].Type == ContentBlockToolUse {
			return &r.Content[i]
		}
	}
	return nil
}

// TextContent concatenates all text blocks of the response.
func (r *MessagesResponse) TextContent() string {
	var out string
	for _, block := range r.Content {
		if block.Type == ContentBlockText {
			out += block.Text
		}
	}
	return out
}

type MessageCreator interface {
	CreateMessage(ctx context.Context, request *MessagesRequest) (*MessagesResponse, error)
}

const anthropicAPIVersion = "2023-06-01"

type AnthropicService struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewAnthropicService() *AnthropicService {
	return &AnthropicService{
		APIKey:  GetEnv("ANTHROPIC_API_KEY", ""),
		BaseURL: GetEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		Client:  &http.Client{},
	}
}

func (as *AnthropicService) CreateMessage(ctx context.Context, request *MessagesRequest) (*MessagesResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", as.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", as.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := as.Client.Do(req)
	if err != nil {
		fmt.Println("Error calling messages API:", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fmt.Printf("Messages API error %d: %s\n", resp.StatusCode, string(body))
		return nil, fmt.Errorf("messages API returned status %d", resp.StatusCode)
	}

	var response MessagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse messages response: %v", err)
	}
	return &response, nil
}
