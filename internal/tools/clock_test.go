package tools

import (
	"context"
	"testing"
	"time"

	"github.com/kensei-chat/kensei/internal/log"
)

func TestClockFormatsBrazilianDateTime(t *testing.T) {
	tests := []struct {
		name string
		utc  time.Time
		want string
	}{
		{
			name: "afternoon",
			utc:  time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
			want: "Data: 01/01/2024, Hora: 10:00",
		},
		{
			name: "crosses the day boundary",
			utc:  time.Date(2024, 7, 10, 1, 30, 0, 0, time.UTC),
			want: "Data: 09/07/2024, Hora: 22:30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock, err := NewClock(func() time.Time { return tt.utc }, log.NewNop())
			if err != nil {
				t.Fatalf("NewClock: %v", err)
			}

			value, err := clock.Execute(context.Background(), nil)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got := value["dateTimeInfo"]; got != tt.want {
				t.Fatalf("dateTimeInfo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClockIgnoresArguments(t *testing.T) {
	clock, err := NewClock(func() time.Time {
		return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	}, log.NewNop())
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}

	withArgs, err := clock.Execute(context.Background(), map[string]any{"unexpected": true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	withoutArgs, _ := clock.Execute(context.Background(), nil)
	if withArgs["dateTimeInfo"] != withoutArgs["dateTimeInfo"] {
		t.Fatal("arguments must not affect the result")
	}
}

func TestClockRegistersUnderExpectedName(t *testing.T) {
	clock, err := NewClock(nil, log.NewNop())
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	if clock.Name() != "getCurrentTime" {
		t.Fatalf("Name() = %q", clock.Name())
	}
}
