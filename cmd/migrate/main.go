package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"helixdesk/internal/config"
	"helixdesk/internal/database"
	"helixdesk/internal/logger"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Int("version", -1, "Target version (for force)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	if err := run(cfg.DatabaseURL, *command, *steps, *version); err != nil {
		slog.Error("migration failed", "command", *command, "error", err)
		os.Exit(1)
	}
}

func run(databaseURL string, command string, steps int, version int) error {
	mg, err := database.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer mg.Close()

	switch command {
	case "up":
		if err := mg.Up(steps); err != nil {
			return err
		}
		slog.Info("migrations applied")
	case "down":
		if err := mg.Down(steps); err != nil {
			return err
		}
		slog.Info("migrations rolled back")
	case "version":
		v, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		slog.Info("migration version", "version", v, "dirty", dirty)
		if dirty {
			return fmt.Errorf("database is dirty at version %d", v)
		}
	case "force":
		if version < 0 {
			return fmt.Errorf("force requires -version")
		}
		if err := mg.Force(version); err != nil {
			return err
		}
		slog.Info("migration version forced", "version", version)
	default:
		return fmt.Errorf("unknown command %q (supported: up, down, version, force)", command)
	}

	return nil
}
