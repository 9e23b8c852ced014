package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kensei-chat/kensei/internal/log"
)

func newWeatherServer(t *testing.T, handler http.HandlerFunc) (*Weather, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	w, err := NewWeather(WeatherConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Units:   "metric",
		Lang:    "pt_br",
	}, log.NewNop())
	if err != nil {
		t.Fatalf("NewWeather: %v", err)
	}
	return w, srv
}

func TestWeatherLookup(t *testing.T) {
	var gotQuery map[string]string
	w, _ := newWeatherServer(t, func(rw http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":     r.URL.Query().Get("q"),
			"appid": r.URL.Query().Get("appid"),
			"units": r.URL.Query().Get("units"),
			"lang":  r.URL.Query().Get("lang"),
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{
			"name": "Curitiba",
			"main": {"temp": 18.5},
			"weather": [{"description": "nublado"}]
		}`))
	})

	value, err := w.Execute(context.Background(), map[string]any{"location": "Curitiba, BR"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gotQuery["q"] != "Curitiba, BR" || gotQuery["appid"] != "test-key" {
		t.Fatalf("query = %v", gotQuery)
	}
	if gotQuery["units"] != "metric" || gotQuery["lang"] != "pt_br" {
		t.Fatalf("query = %v", gotQuery)
	}
	if value["location"] != "Curitiba" {
		t.Fatalf("location = %v", value["location"])
	}
	if value["temperature"] != 18.5 {
		t.Fatalf("temperature = %v", value["temperature"])
	}
	if value["description"] != "nublado" {
		t.Fatalf("description = %v", value["description"])
	}
}

func TestWeatherCityNotFound(t *testing.T) {
	w, _ := newWeatherServer(t, func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
		_, _ = rw.Write([]byte(`{"cod": "404", "message": "city not found"}`))
	})

	_, err := w.Execute(context.Background(), map[string]any{"location": "Atlantis"})
	if err == nil {
		t.Fatal("expected error for unknown city")
	}
	if !strings.Contains(err.Error(), "Atlantis") {
		t.Fatalf("err = %q, want city name in the message", err)
	}
}

func TestWeatherUpstreamFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(rw http.ResponseWriter, _ *http.Request) {
				rw.WriteHeader(http.StatusInternalServerError)
				_, _ = rw.Write([]byte(`{"message": "internal"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(rw http.ResponseWriter, _ *http.Request) {
				_, _ = rw.Write([]byte(`not json`))
			},
		},
		{
			name: "missing conditions",
			handler: func(rw http.ResponseWriter, _ *http.Request) {
				_, _ = rw.Write([]byte(`{"name": "Curitiba", "main": {"temp": 20}, "weather": []}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newWeatherServer(t, tt.handler)

			_, err := w.Execute(context.Background(), map[string]any{"location": "Curitiba"})
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != msgWeatherUnavailable {
				t.Fatalf("err = %q, want %q", err, msgWeatherUnavailable)
			}
		})
	}
}

func TestWeatherWithoutAPIKey(t *testing.T) {
	w, err := NewWeather(WeatherConfig{BaseURL: "http://127.0.0.1:0"}, log.NewNop())
	if err != nil {
		t.Fatalf("NewWeather: %v", err)
	}

	_, err = w.Execute(context.Background(), map[string]any{"location": "Curitiba"})
	if err == nil || err.Error() != msgWeatherNotConfigured {
		t.Fatalf("err = %v, want configuration message", err)
	}
}

func TestWeatherRequiresLocation(t *testing.T) {
	w, err := NewWeather(WeatherConfig{APIKey: "k", BaseURL: "http://127.0.0.1:0"}, log.NewNop())
	if err != nil {
		t.Fatalf("NewWeather: %v", err)
	}

	for _, args := range []map[string]any{nil, {}, {"location": ""}, {"location": 42}} {
		if _, err := w.Execute(context.Background(), args); err == nil {
			t.Fatalf("args %v: expected error", args)
		}
	}
}
