// Package app wires a workspace into a ready runtime: environment, config, logging, database,
// engine and host ledger.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/config"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/db"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/events"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/ledger"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/logger"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/migrate"
)

const EnvFile = ".env"

// Runtime is everything a command needs against one workspace.
type Runtime struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Host      ledger.Host
}

// LoadEnv loads <workspace>/.env when present. Variables already set in the process win.
func LoadEnv(workspace string) error {
	path := filepath.Join(workspace, EnvFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig returns the workspace config, falling back to defaults when survey.yml is absent.
func LoadConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitLogging installs the process logger from cfg.Logging. Relative log paths resolve against
// the workspace's state directory.
func InitLogging(workspace string, cfg *config.Config) error {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(workspace, db.WorkspaceDir, p)
	}
	return logger.Initialize(logger.Configuration{
		Level:     cfg.Logging.Level,
		Console:   cfg.Logging.Console,
		LogFile:   resolve(cfg.Logging.File),
		ErrorFile: resolve(cfg.Logging.ErrorFile),
	})
}

// Open prepares the workspace and returns a migrated runtime. Callers must Close it.
func Open(ctx context.Context, workspace string) (*Runtime, error) {
	if err := LoadEnv(workspace); err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(workspace)
	if err != nil {
		return nil, err
	}
	if err := InitLogging(workspace, cfg); err != nil {
		return nil, err
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	eng, err := engine.New(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	logger.Debug("workspace opened", zap.String("workspace", workspace), zap.String("program_id", eng.ProgramID.String()))
	return &Runtime{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    eng,
		Host:      ledger.NewHost(conn, events.Writer{}),
	}, nil
}

func (r *Runtime) Close() error {
	logger.Sync()
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}
