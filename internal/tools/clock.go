package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// ClockName is the registered name of the clock tool.
const ClockName = "getCurrentTime"

// saoPauloOffset is the fallback offset when the tzdata lookup fails
// (static binaries without zoneinfo). America/Sao_Paulo has no DST since 2019.
var saoPauloOffset = time.FixedZone("-03", -3*60*60)

// Clock reports the current date and time in Brazilian format.
// It ignores its arguments and never fails.
type Clock struct {
	location *time.Location
	now      func() time.Time
	schema   *jsonschema.Schema
	logger   *slog.Logger
}

// NewClock creates the clock handler.
// now may be nil; tests inject a fixed clock through it.
func NewClock(now func() time.Time, logger *slog.Logger) (*Clock, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}

	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		logger.Warn("tzdata lookup failed, using fixed offset", "error", err)
		loc = saoPauloOffset
	}

	schema, err := jsonschema.For[ClockInput](nil)
	if err != nil {
		return nil, err
	}

	return &Clock{location: loc, now: now, schema: schema, logger: logger}, nil
}

// Name implements Handler.
func (c *Clock) Name() string { return ClockName }

// Description implements Handler.
func (c *Clock) Description() string {
	return "Obtém a data e hora atuais para informar ao usuário."
}

// InputSchema implements Handler.
func (c *Clock) InputSchema() *jsonschema.Schema { return c.schema }

// Execute returns the current date and time for the São Paulo timezone as a
// single pre-formatted field, matching what the persona prompt expects.
func (c *Clock) Execute(_ context.Context, _ map[string]any) (map[string]any, error) {
	now := c.now().In(c.location)
	info := "Data: " + now.Format("02/01/2006") + ", Hora: " + now.Format("15:04")
	c.logger.Debug("clock tool executed", "date_time_info", info)
	return map[string]any{"dateTimeInfo": info}, nil
}
