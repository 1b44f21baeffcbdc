package services

import (
	"context"
	"errors"
	"strings"
)

const chatSystemPrompt = "You are a fashion expert tasked with providing expert fashion advice"

var ErrEmptyChatResponse = errors.New("model returned no text")

// ChatService is a single-pass wrapper over the messages API, no tools.
type ChatService struct {
	LLM       MessageCreator
	Model     string
	MaxTokens int
}

func NewChatService(llm MessageCreator) *ChatService {
	return &ChatService{
		LLM:       llm,
		Model:     GetEnv("OUTFIT_MODEL", "claude-haiku-4-5-20251001"),
		MaxTokens: 1000,
	}
}

// GenerateResponse sends the conversation history and returns the
// concatenated text blocks of the reply.
func (cs *ChatService) GenerateResponse(ctx context.Context, messages []Message) (string, error) {
	response, err := cs.LLM.CreateMessage(ctx, &MessagesRequest{
		Model:     cs.Model,
		MaxTokens: cs.MaxTokens,
		System:    chatSystemPrompt,
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}

	result := strings.TrimSpace(response.TextContent())
	if result == "" {
		return "", ErrEmptyChatResponse
	}
	return result, nil
}
