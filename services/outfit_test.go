package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"wardrobeapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCreator struct {
	responses []*MessagesResponse
	err       error

	calls    int
	requests []MessagesRequest
}

func (sc *scriptedCreator) CreateMessage(ctx context.Context, request *MessagesRequest) (*MessagesResponse, error) {
	sc.calls++
	snapshot := *request
	snapshot.Messages = append([]Message{}, request.Messages...)
	sc.requests = append(sc.requests, snapshot)
	if sc.err != nil {
		return nil, sc.err
	}
	if len(sc.responses) == 0 {
		return nil, errors.New("scripted creator exhausted")
	}
	response := sc.responses[0]
	sc.responses = sc.responses[1:]
	return response, nil
}

type recordingWeather struct {
	calls  int
	lat    float64
	lon    float64
	result string
}

func (rw *recordingWeather) Lookup(ctx context.Context, lat float64, lon float64) string {
	rw.calls++
	rw.lat = lat
	rw.lon = lon
	return rw.result
}

func toolUseResponse(id string, name string, input string) *MessagesResponse {
	return &MessagesResponse{
		ID:         "msg_" + id,
		Role:       "assistant",
		StopReason: StopReasonToolUse,
		Content: []ContentBlock{
			{Type: ContentBlockToolUse, ID: id, Name: name, Input: json.RawMessage(input)},
		},
	}
}

func testWardrobe() []models.Garment {
	return []models.Garment{
		{JsonModel: models.JsonModel{ID: 1}, Name: "White shirt", Category: models.CategoryShirt, Material: models.MaterialCotton, Color: "#ffffff"},
		{JsonModel: models.JsonModel{ID: 2}, Name: "Blue jeans", Category: models.CategoryJeans, Material: models.MaterialDenim, Color: "#2244aa"},
		{JsonModel: models.JsonModel{ID: 3}, Name: "Leather boots", Category: models.CategoryShoes, Material: models.MaterialLeather, Color: "#442200", Dirty: true},
	}
}

func newTestGenerator(llm MessageCreator, weather WeatherProvider) *OutfitGeneratorService {
	return &OutfitGeneratorService{
		LLM:       llm,
		Weather:   weather,
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
	}
}

func TestSelectGarmentsByID(t *testing.T) {
	wardrobe := testWardrobe()
	selected := SelectGarmentsByID(wardrobe, []uint{2, 3, 99})
	require.Len(t, selected, 2)
	assert.Equal(t, uint(2), selected[0].ID)
	assert.Equal(t, uint(3), selected[1].ID)

	assert.Empty(t, SelectGarmentsByID(wardrobe, []uint{77}))
}

func TestGenerateOutfitTerminal(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		toolUseResponse("toolu_01", ToolPrintOutfitGarments, `{"garments":[1,2]}`),
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	outcome, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "casual friday", nil)
	require.NoError(t, err)
	require.Equal(t, 1, creator.calls)
	require.False(t, outcome.Suspended())
	require.Len(t, outcome.Garments, 2)
	assert.Equal(t, "White shirt", outcome.Garments[0].Name)
	assert.Equal(t, "Blue jeans", outcome.Garments[1].Name)

	// Opening turn carries the catalog and the context.
	require.Len(t, creator.requests[0].Messages, 1)
	prompt := creator.requests[0].Messages[0].Content.Text
	assert.Contains(t, prompt, "White shirt")
	assert.Contains(t, prompt, "casual friday")
	require.NotNil(t, creator.requests[0].ToolChoice)
	assert.Equal(t, "any", creator.requests[0].ToolChoice.Type)
	assert.True(t, creator.requests[0].ToolChoice.DisableParallelToolUse)
}

func TestGenerateOutfitDefaultContext(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		toolUseResponse("toolu_01", ToolPrintOutfitGarments, `{"garments":[1]}`),
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	_, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.NoError(t, err)
	assert.Contains(t, creator.requests[0].Messages[0].Content.Text, "no additional context provided")
}

func TestGenerateOutfitTruncatedResent(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		{StopReason: StopReasonMaxTokens, Content: []ContentBlock{{Type: ContentBlockText, Text: "partial"}}},
		{StopReason: StopReasonMaxTokens, Content: []ContentBlock{{Type: ContentBlockText, Text: "partial again"}}},
		toolUseResponse("toolu_01", ToolPrintOutfitGarments, `{"garments":[2]}`),
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	outcome, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.NoError(t, err)
	require.Equal(t, 3, creator.calls)
	require.Len(t, outcome.Garments, 1)

	// Resends, not appends: the truncated turn never enters the transcript.
	assert.Len(t, creator.requests[0].Messages, 1)
	assert.Len(t, creator.requests[1].Messages, 1)
	assert.Len(t, creator.requests[2].Messages, 1)
	assert.Equal(t, 1024, creator.requests[0].MaxTokens)
	assert.Equal(t, 2048, creator.requests[1].MaxTokens)
	assert.Equal(t, 4096, creator.requests[2].MaxTokens)
}

func TestGenerateOutfitPausedContinues(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		{StopReason: StopReasonPauseTurn, Content: []ContentBlock{{Type: ContentBlockText, Text: "thinking"}}},
		toolUseResponse("toolu_01", ToolPrintOutfitGarments, `{"garments":[1]}`),
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	_, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.NoError(t, err)
	require.Equal(t, 2, creator.calls)

	// The partial turn is appended and the budget stays at the original.
	require.Len(t, creator.requests[1].Messages, 2)
	assert.Equal(t, "assistant", creator.requests[1].Messages[1].Role)
	assert.Equal(t, "thinking", creator.requests[1].Messages[1].Content.Blocks[0].Text)
	assert.Equal(t, 1024, creator.requests[1].MaxTokens)
}

func TestGenerateOutfitWeatherRoundTrip(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		toolUseResponse("toolu_01", ToolGetWeather, `{"lat":40.7,"lon":-74.0}`),
		toolUseResponse("toolu_02", ToolPrintOutfitGarments, `{"garments":[1,3]}`),
	}}
	weather := &recordingWeather{result: "Sunny, 22°C"}
	generator := newTestGenerator(creator, weather)

	outcome, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.NoError(t, err)
	require.Equal(t, 2, creator.calls)
	require.Equal(t, 1, weather.calls)
	assert.Equal(t, 40.7, weather.lat)
	assert.Equal(t, -74.0, weather.lon)
	require.Len(t, outcome.Garments, 2)

	// Exactly one assistant turn and one tool result between the two calls.
	require.Len(t, creator.requests[1].Messages, 3)
	assistant := creator.requests[1].Messages[1]
	assert.Equal(t, "assistant", assistant.Role)
	assert.Equal(t, ToolGetWeather, assistant.Content.Blocks[0].Name)
	toolResult := creator.requests[1].Messages[2]
	assert.Equal(t, "user", toolResult.Role)
	require.Len(t, toolResult.Content.Blocks, 1)
	assert.Equal(t, ContentBlockToolResult, toolResult.Content.Blocks[0].Type)
	assert.Equal(t, "toolu_01", toolResult.Content.Blocks[0].ToolUseID)
	assert.Equal(t, "Sunny, 22°C", toolResult.Content.Blocks[0].Content)
}

func TestGenerateOutfitLocationSuspends(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		toolUseResponse("toolu_01", ToolGetLocation, `{}`),
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	outcome, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.NoError(t, err)
	require.Equal(t, 1, creator.calls, "suspension must not call the model again")
	require.True(t, outcome.Suspended())

	messages := outcome.PreviousMessages
	require.Len(t, messages, 3)
	last := messages[len(messages)-1]
	assert.Equal(t, "user", last.Role)
	require.Len(t, last.Content.Blocks, 1)
	assert.Equal(t, ContentBlockToolResult, last.Content.Blocks[0].Type)
	assert.Equal(t, "toolu_01", last.Content.Blocks[0].ToolUseID)
	assert.Equal(t, "No location provided.", last.Content.Blocks[0].Content)
}

func TestGenerateOutfitResumesPriorTranscript(t *testing.T) {
	prior := []Message{
		TextMessage("user", "Pick an outfit"),
		BlocksMessage("assistant", []ContentBlock{
			{Type: ContentBlockToolUse, ID: "toolu_01", Name: ToolGetLocation, Input: json.RawMessage(`{}`)},
		}),
		BlocksMessage("user", []ContentBlock{
			{Type: ContentBlockToolResult, ToolUseID: "toolu_01", Content: "No location provided."},
		}),
		TextMessage("user", "My location is Oslo, Norway"),
	}
	creator := &scriptedCreator{responses: []*MessagesResponse{
		toolUseResponse("toolu_02", ToolPrintOutfitGarments, `{"garments":[2]}`),
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	outcome, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", prior)
	require.NoError(t, err)
	require.Len(t, outcome.Garments, 1)
	require.Len(t, creator.requests[0].Messages, 4)
	assert.Equal(t, "My location is Oslo, Norway", creator.requests[0].Messages[3].Content.Text)
}

func TestGenerateOutfitNoToolUse(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		{StopReason: StopReasonEndTurn, Content: []ContentBlock{{Type: ContentBlockText, Text: "Nice outfit!"}}},
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	_, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.ErrorIs(t, err, ErrNoToolUse)
}

func TestGenerateOutfitUnknownTool(t *testing.T) {
	creator := &scriptedCreator{responses: []*MessagesResponse{
		toolUseResponse("toolu_01", "get_horoscope", `{}`),
	}}
	generator := newTestGenerator(creator, &recordingWeather{})

	_, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestGenerateOutfitTransportErrorPropagates(t *testing.T) {
	transportErr := errors.New("connection reset")
	creator := &scriptedCreator{err: transportErr}
	generator := newTestGenerator(creator, &recordingWeather{})

	_, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.ErrorIs(t, err, transportErr)
	require.Equal(t, 1, creator.calls)
}

func TestGenerateOutfitFirstToolUseWins(t *testing.T) {
	response := &MessagesResponse{
		ID:         "msg_1",
		Role:       "assistant",
		StopReason: StopReasonToolUse,
		Content: []ContentBlock{
			{Type: ContentBlockToolUse, ID: "toolu_01", Name: ToolGetWeather, Input: json.RawMessage(`{"lat":10,"lon":20}`)},
			{Type: ContentBlockToolUse, ID: "toolu_02", Name: ToolGetLocation, Input: json.RawMessage(`{}`)},
		},
	}
	creator := &scriptedCreator{responses: []*MessagesResponse{
		response,
		toolUseResponse("toolu_03", ToolPrintOutfitGarments, `{"garments":[1]}`),
	}}
	weather := &recordingWeather{result: "Cloudy"}
	generator := newTestGenerator(creator, weather)

	outcome, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.NoError(t, err)
	require.False(t, outcome.Suspended(), "only the first tool use is dispatched")
	require.Equal(t, 1, weather.calls)

	// Both blocks stay in the recorded assistant turn.
	assistant := creator.requests[1].Messages[1]
	require.Len(t, assistant.Content.Blocks, 2)
	assert.Equal(t, "toolu_01", assistant.Content.Blocks[0].ID)
	assert.Equal(t, "toolu_02", assistant.Content.Blocks[1].ID)
}

func TestGenerateOutfitModelCallLimit(t *testing.T) {
	var responses []*MessagesResponse
	for i := 0; i < maxOutfitModelCalls; i++ {
		responses = append(responses, toolUseResponse("toolu_w", ToolGetWeather, `{"lat":1,"lon":1}`))
	}
	creator := &scriptedCreator{responses: responses}
	generator := newTestGenerator(creator, &recordingWeather{result: "Rain"})

	_, err := generator.GenerateOutfit(context.Background(), testWardrobe(), "", nil)
	require.ErrorIs(t, err, ErrModelCallLimit)
	require.Equal(t, maxOutfitModelCalls, creator.calls)
}
