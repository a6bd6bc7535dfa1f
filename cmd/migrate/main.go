package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/school/backend/internal/infrastructure/config"
	"github.com/school/backend/internal/infrastructure/logger"
	"github.com/school/backend/internal/infrastructure/migration"
	"github.com/school/backend/migrations"
)

func main() {
	var (
		configPath string
		sourceDir  string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Config file (default: search ./, ./config, /etc/school)")
	flag.StringVar(&sourceDir, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout", TimeFormat: "2006-01-02 15:04:05"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(log, configPath, sourceDir, args); err != nil {
		log.Error("migrate failed", zap.String("command", args[0]), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func run(log *zap.Logger, configPath, sourceDir string, args []string) error {
	command := args[0]

	if command == "create" {
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate create <name>")
		}
		dir := sourceDir
		if dir == "" {
			dir = "migrations"
		}
		mf, err := migration.CreateMigration(dir, args[1])
		if err != nil {
			return err
		}
		log.Info("migration created", zap.Uint("version", mf.Version), zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to reach database %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	var m *migration.Migrator
	if sourceDir != "" {
		m, err = migration.New(db, sourceDir, log)
	} else {
		m, err = migration.NewFromFS(db, migrations.FS, log)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("failed to close migrator", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		return m.Up()
	case "down":
		n := 0
		if len(args) > 1 {
			if n, err = strconv.Atoi(args[1]); err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
		}
		return m.Down(n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		return m.Force(version)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Fee ledger schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up               Apply all pending migrations
  down [n]         Roll back n migrations, or all when n is omitted
  version          Show the applied version and dirty flag
  force <version>  Record a version without running it (dirty recovery)
  create <name>    Write the next numbered up/down pair

Flags:
  -config string     Config file
  -path string       Migrations directory (default: embedded set; "migrations" for create)
  -log-level string  debug, info, warn or error (default "info")

Database settings come from the config file or SCHOOL_DATABASE_* variables.`)
}
