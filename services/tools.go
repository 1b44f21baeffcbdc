package services

// ToolKind tells the loop how a tool call is satisfied.
type ToolKind int32

const (
	// ToolKindTerminal ends the loop, its input is the final answer.
	ToolKindTerminal ToolKind = iota + 1
	// ToolKindServerResolved is answered by the backend and the loop continues.
	ToolKindServerResolved
	// ToolKindClientResolved suspends the loop until the device answers.
	ToolKindClientResolved
)

const (
	ToolPrintOutfitGarments = "print_outfit_garments"
	ToolGetWeather          = "get_weather"
	ToolGetLocation         = "get_location"
)

type outfitTool struct {
	Definition ToolDefinition
	Kind       ToolKind
}

// Adding a tool is one entry here plus, for server-resolved tools, one
// dispatch case in the generator.
var outfitTools = map[string]outfitTool{
	ToolPrintOutfitGarments: {
		Kind: ToolKindTerminal,
		Definition: ToolDefinition{
			Name:        ToolPrintOutfitGarments,
			Description: "Print the selected outfit to the user. Call this exactly once, when the outfit is final.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"garments": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "IDs of the selected garments",
					},
				},
				"required": []string{"garments"},
			},
		},
	},
	ToolGetWeather: {
		Kind: ToolKindServerResolved,
		Definition: ToolDefinition{
			Name:        ToolGetWeather,
			Description: "Get the current weather and today's forecast for a latitude/longitude pair.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"lat": map[string]interface{}{
						"type":        "number",
						"description": "Latitude in decimal degrees",
					},
					"lon": map[string]interface{}{
						"type":        "number",
						"description": "Longitude in decimal degrees",
					},
				},
				"required": []string{"lat", "lon"},
			},
		},
	},
	ToolGetLocation: {
		Kind: ToolKindClientResolved,
		Definition: ToolDefinition{
			Name:        ToolGetLocation,
			Description: "Get the user's current location from their device. Use it when the outfit depends on local weather and no location is known.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	},
}

// OutfitToolKind reports the dispatch kind for a tool name, false for
// tools the loop does not know.
func OutfitToolKind(name string) (ToolKind, bool) {
	tool, ok := outfitTools[name]
	return tool.Kind, ok
}

// OutfitToolDefinitions returns the tool list sent with every model call,
// in a stable order.
func OutfitToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		outfitTools[ToolPrintOutfitGarments].Definition,
		outfitTools[ToolGetWeather].Definition,
		outfitTools[ToolGetLocation].Definition,
	}
}
