package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"wardrobeapi/models"
)

var (
	// ErrNoToolUse means the model finished a turn without calling any tool,
	// so the loop cannot conclude.
	ErrNoToolUse = errors.New("model response contains no tool use")
	// ErrUnknownTool means the model called a tool outside the registry.
	ErrUnknownTool = errors.New("model called an unknown tool")
	// ErrModelCallLimit means the conversation did not reach a terminal tool
	// within the allowed number of model calls.
	ErrModelCallLimit = errors.New("model call limit reached without a terminal tool")
)

// maxOutfitModelCalls bounds one generation run. The model is expected to
// finish in a handful of turns, anything past this is a runaway conversation.
const maxOutfitModelCalls = 16

const defaultOutfitContext = "no additional context provided"

// OutfitOutcome is the terminal state of one generation run. Exactly one
// of Garments or PreviousMessages is populated: PreviousMessages means the
// run suspended waiting for client-side information and the caller must
// resubmit the transcript to continue.
type OutfitOutcome struct {
	Garments         []models.Garment
	PreviousMessages []Message
}

func (o *OutfitOutcome) Suspended() bool {
	return o.PreviousMessages != nil
}

type OutfitGeneratorService struct {
	LLM       MessageCreator
	Weather   WeatherProvider
	Model     string
	MaxTokens int
}

func NewOutfitGeneratorService(llm MessageCreator, weather WeatherProvider) *OutfitGeneratorService {
	return &OutfitGeneratorService{
		LLM:       llm,
		Weather:   weather,
		Model:     GetEnv("OUTFIT_MODEL", "claude-haiku-4-5-20251001"),
		MaxTokens: 1024,
	}
}

type outfitCatalogEntry struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Material string `json:"material"`
	Color    string `json:"color"`
	Dirty    bool   `json:"dirty"`
}

func openingPrompt(garments []models.Garment, contextText string) (string, error) {
	catalog := make([]outfitCatalogEntry, 0, len(garments))
	for _, garment := range garments {
		catalog = append(catalog, outfitCatalogEntry{
			ID:       garment.ID,
			Name:     garment.Name,
			Category: garment.Category.String(),
			Material: garment.Material.String(),
			Color:    garment.Color,
			Dirty:    garment.Dirty,
		})
	}
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return "", fmt.Errorf("failed to marshal garment catalog: %v", err)
	}
	if contextText == "" {
		contextText = defaultOutfitContext
	}
	return fmt.Sprintf(
		"You are a fashion assistant. Pick one complete outfit from the user's wardrobe below. "+
			"Prefer clean garments over dirty ones and make the pieces work together. "+
			"If the outfit should account for local weather, call get_weather; if you need the user's "+
			"location first, call get_location. When the outfit is final, call print_outfit_garments "+
			"with the chosen garment IDs.\n\nWardrobe:\n%s\n\nContext: %s",
		string(catalogJSON), contextText,
	), nil
}

// SelectGarmentsByID returns the catalog entries whose ID appears in ids.
// IDs without a catalog entry are dropped, models hallucinate.
func SelectGarmentsByID(catalog []models.Garment, ids []uint) []models.Garment {
	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	selected := []models.Garment{}
	for _, garment := range catalog {
		if wanted[garment.ID] {
			selected = append(selected, garment)
		}
	}
	return selected
}

// GenerateOutfit drives the tool-calling conversation to a terminal
// outcome. It is a sequential blocking loop: one model call in flight at a
// time, at most one tool dispatched per response. A non-nil prior resumes
// a previously suspended run instead of opening a new conversation.
func (gen *OutfitGeneratorService) GenerateOutfit(ctx context.Context, garments []models.Garment, contextText string, prior []Message) (*OutfitOutcome, error) {
	var transcript *Transcript
	if len(prior) > 0 {
		transcript = NewTranscript(prior)
	} else {
		prompt, err := openingPrompt(garments, contextText)
		if err != nil {
			return nil, err
		}
		transcript = NewTranscript([]Message{TextMessage("user", prompt)})
	}

	budget := gen.MaxTokens
	calls := 0
	for {
		if calls >= maxOutfitModelCalls {
			return nil, ErrModelCallLimit
		}
		response, err := gen.LLM.CreateMessage(ctx, &MessagesRequest{
			Model:     gen.Model,
			MaxTokens: budget,
			Messages:  transcript.Messages,
			Tools:     OutfitToolDefinitions(),
			ToolChoice: &ToolChoice{
				Type:                   "any",
				DisableParallelToolUse: true,
			},
		})
		calls++
		if err != nil {
			return nil, err
		}

		if response.StopReason == StopReasonMaxTokens {
			// Resend the same transcript with a bigger budget. The truncated
			// turn is discarded, not appended.
			budget *= 2
			fmt.Printf("[Outfit] call %d truncated, retrying with budget %d\n", calls, budget)
			continue
		}
		if response.StopReason == StopReasonPauseTurn {
			transcript.Append(BlocksMessage("assistant", response.Content))
			budget = gen.MaxTokens
			fmt.Printf("[Outfit] call %d paused, continuing\n", calls)
			continue
		}

		toolUse := response.FirstToolUse()
		if toolUse == nil {
			return nil, ErrNoToolUse
		}
		kind, known := OutfitToolKind(toolUse.Name)
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolUse.Name)
		}

		// Record the assistant turn verbatim, extra tool_use blocks included.
		transcript.Append(BlocksMessage("assistant", response.Content))

		switch kind {
		case ToolKindTerminal:
			var input struct {
				Garments []uint `json:"garments"`
			}
			if err := json.Unmarshal(toolUse.Input, &input); err != nil {
				return nil, fmt.Errorf("failed to parse %s input: %v", toolUse.Name, err)
			}
			return &OutfitOutcome{Garments: SelectGarmentsByID(garments, input.Garments)}, nil

		case ToolKindClientResolved:
			if err := transcript.AppendToolResult(toolUse.ID, "No location provided."); err != nil {
				return nil, err
			}
			return &OutfitOutcome{PreviousMessages: transcript.Messages}, nil

		case ToolKindServerResolved:
			var input struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			}
			if err := json.Unmarshal(toolUse.Input, &input); err != nil {
				return nil, fmt.Errorf("failed to parse %s input: %v", toolUse.Name, err)
			}
			result := gen.Weather.Lookup(ctx, input.Lat, input.Lon)
			if err := transcript.AppendToolResult(toolUse.ID, result); err != nil {
				return nil, err
			}
			budget = gen.MaxTokens
		}
	}
}
