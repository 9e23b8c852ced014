package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// WeatherName is the registered name of the weather tool.
const WeatherName = "getWeather"

// maxWeatherResponseSize caps the upstream response body (1 MB).
const maxWeatherResponseSize = 1 << 20

// User-facing error messages, in the conversation's language.
const (
	msgWeatherNotConfigured = "A chave da API para o serviço de clima não está configurada no servidor."
	msgWeatherUnavailable   = "Não foi possível obter o tempo no momento."
)

// WeatherConfig configures the OpenWeatherMap client.
type WeatherConfig struct {
	APIKey  string
	BaseURL string        // current weather endpoint
	Units   string        // e.g. "metric"
	Lang    string        // e.g. "pt_br"
	Timeout time.Duration // per-request timeout (zero = 10s)
}

// Weather looks up current conditions for a city via OpenWeatherMap.
//
// One outbound HTTP call per dispatch, no retry: a failure is surfaced to
// the model as an error result in the same turn.
type Weather struct {
	cfg    WeatherConfig
	client *http.Client
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewWeather creates the weather handler.
// An empty API key is allowed; dispatches then return a configuration error
// result instead of failing startup.
func NewWeather(cfg WeatherConfig, logger *slog.Logger) (*Weather, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	schema, err := jsonschema.For[WeatherInput](nil)
	if err != nil {
		return nil, err
	}

	return &Weather{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		schema: schema,
		logger: logger,
	}, nil
}

// Name implements Handler.
func (w *Weather) Name() string { return WeatherName }

// Description implements Handler.
func (w *Weather) Description() string {
	return "Obtém a previsão do tempo atual para uma cidade específica."
}

// InputSchema implements Handler.
func (w *Weather) InputSchema() *jsonschema.Schema { return w.schema }

// openWeatherResponse mirrors the subset of the upstream payload we consume.
type openWeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Message string `json:"message"`
}

// Execute performs the upstream lookup for the requested location.
//
// Returned errors carry user-facing messages only; upstream details (status
// codes, URLs with the API key) stay in the logs.
func (w *Weather) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	location, _ := args["location"].(string)
	if location == "" {
		return nil, fmt.Errorf("%w: location", ErrMissingArgument)
	}
	if w.cfg.APIKey == "" {
		w.logger.Warn("weather tool called without API key configured")
		return nil, errors.New(msgWeatherNotConfigured)
	}

	query := url.Values{}
	query.Set("q", location)
	query.Set("appid", w.cfg.APIKey)
	query.Set("units", w.cfg.Units)
	query.Set("lang", w.cfg.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		w.logger.Error("building weather request", "error", err)
		return nil, errors.New(msgWeatherUnavailable)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("weather request failed", "location", location, "error", err)
		return nil, errors.New(msgWeatherUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherResponseSize))
	if err != nil {
		w.logger.Error("reading weather response", "location", location, "error", err)
		return nil, errors.New(msgWeatherUnavailable)
	}

	var payload openWeatherResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		w.logger.Error("decoding weather response", "location", location, "status", resp.StatusCode, "error", err)
		return nil, errors.New(msgWeatherUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		w.logger.Warn("weather lookup rejected",
			"location", location,
			"status", resp.StatusCode,
			"message", payload.Message,
		)
		if resp.StatusCode == http.StatusNotFound || payload.Message == "city not found" {
			return nil, fmt.Errorf("Não foi possível encontrar a cidade %q. Verifique o nome e tente novamente.", location)
		}
		return nil, errors.New(msgWeatherUnavailable)
	}

	if len(payload.Weather) == 0 {
		w.logger.Warn("weather response missing conditions", "location", location)
		return nil, errors.New(msgWeatherUnavailable)
	}

	w.logger.Debug("weather lookup succeeded",
		"location", payload.Name,
		"temperature", payload.Main.Temp,
	)
	return map[string]any{
		"location":    payload.Name,
		"temperature": payload.Main.Temp,
		"description": payload.Weather[0].Description,
	}, nil
}
