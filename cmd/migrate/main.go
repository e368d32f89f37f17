package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/db"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/migrate"
)

const serviceName = "migrate"

// gooseCommands are passed straight through to goose and need a connection.
var gooseCommands = map[string]bool{
	"up":     true,
	"down":   true,
	"redo":   true,
	"status": true,
}

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exitf("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	if !gooseCommands[*cmd] && *cmd != "version" {
		exitf("unknown -cmd value: %s", *cmd)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	if *cmd == "version" {
		if *version == "" {
			exitf("missing -version for version command")
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, *version); err != nil {
			exitf("goose version migrate failed: %v", err)
		}
		return
	}

	if err := migrate.Run(ctx, sqlDB, *dir, *cmd); err != nil {
		exitf("goose %s failed: %v", *cmd, err)
	}
	logg.Info(ctx, "migrate finished")
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
