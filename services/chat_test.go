package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatGenerateResponse(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		{
			StopReason: StopReasonEndTurn,
			Content: []ContentBlock{
				{Type: ContentBlockText, Text: "Wear the "},
				{Type: ContentBlockText, Text: "blue jacket."},
			},
		},
	}}
	chat := &ChatService{LLM: creator, Model: "claude-haiku-4-5-20251001", MaxTokens: 1000}

	result, err := chat.GenerateResponse(context.Background(), []Message{TextMessage("user", "What should I wear?")})
	require.NoError(t, err)
	assert.Equal(t, "Wear the blue jacket.", result)
	assert.Equal(t, chatSystemPrompt, creator.requests[0].System)
	assert.Nil(t, creator.requests[0].Tools)
}

func TestChatGenerateResponseEmpty(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		{StopReason: StopReasonEndTurn, Content: []ContentBlock{}},
	}}
	chat := &ChatService{LLM: creator, Model: "claude-haiku-4-5-20251001", MaxTokens: 1000}

	_, err := chat.GenerateResponse(context.Background(), []Message{TextMessage("user", "hi")})
	require.ErrorIs(t, err, ErrEmptyChatResponse)
}
