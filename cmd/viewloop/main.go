package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/viewloop/internal/command"
	"github.com/joeycumines/viewloop/internal/config"
)

const version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
		cfg = config.NewConfig()
	}

	registry := command.NewRegistry()
	registry.Register(command.NewHelpCommand(registry))
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, configPath))
	registry.Register(command.NewKindsCommand())
	registry.Register(command.NewRunCommand(cfg))
	registry.Register(command.NewDemoCommand(cfg))

	return registry.Dispatch(ctx, args, stdout, stderr)
}
