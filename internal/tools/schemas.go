package tools

// Input type definitions for all registered tools.
// Schemas are derived from these structs via jsonschema.For, keeping the
// model-facing declaration and the Go-side validation in one place.

// ClockInput defines input for the getCurrentTime tool (none needed).
type ClockInput struct{}

// WeatherInput defines input for the getWeather tool.
type WeatherInput struct {
	Location string `json:"location" jsonschema:"A cidade para a qual obter a previsão do tempo (ex: 'Curitiba, BR')."`
}
