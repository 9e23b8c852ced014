// Package cmd provides the kensei CLI commands.
//
// Commands:
//   - serve: HTTP API server for the chat service
//   - version: build and configuration information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kensei-chat/kensei/internal/config"
	"github.com/kensei-chat/kensei/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "kensei",
	Short: "Kensei backend de chat conversacional",
	Long: `Kensei é o backend do assistente de chat conversacional: um serviço
HTTP que orquestra o modelo Gemini com ferramentas (hora atual, previsão
do tempo) e mantém o histórico das conversas.`,
}

// Execute is the main entry point for the kensei CLI.
func Execute() error {
	return rootCmd.Execute()
}

// setupLogger installs the process-wide default logger from configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}

	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})
	slog.SetDefault(logger)
	return logger
}
