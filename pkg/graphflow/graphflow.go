package graphflow

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/graphflowhq/graphflow/internal/agents"
	"github.com/graphflowhq/graphflow/internal/config"
	"github.com/graphflowhq/graphflow/internal/controllers"
	"github.com/graphflowhq/graphflow/internal/engine"
	"github.com/graphflowhq/graphflow/internal/migrations"
	"github.com/graphflowhq/graphflow/internal/repository"
	"github.com/graphflowhq/graphflow/internal/seed"
	"github.com/graphflowhq/graphflow/pkg/graphflow/core"
	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Start boots the run engine and HTTP server. Callers can pass their own mux
// to mount extra routes; nil gets a fresh one. This call blocks until the
// HTTP server stops.
func Start(mux *http.ServeMux) error {
	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLITE {
		panic("GRAPHFLOW_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLITE")
	}

	var db *sql.DB
	if databaseType == config.DATABASE_TYPE_POSTGRES {
		db = setupPostgresDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_SQLITE {
		db = setupSqliteDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_MYSQL {
		db = setupMysqlDatabase()
		defer db.Close()
	}

	clock := core.NewRealClock()
	runRepo := repository.NewRunRepository(db, clock)
	stepRepo := repository.NewRunStepRepository(db)
	definitionRepo := repository.NewDefinitionRepository(db)

	if err := seed.LoadDirectory(config.GetSystemSettingString(config.SEED_DEFINITIONS_DIR), definitionRepo, clock); err != nil {
		slog.Error("Definition seeding failed", "error", err)
		return err
	}

	manager := engine.NewRunManager(runRepo, stepRepo, definitionRepo, DefaultAgentRegistry(), clock)

	dur := config.GetSystemSettingDuration(config.ENGINE_CHECK_DB_INTERVAL, 3*time.Second)
	go manager.StartEngine(context.Background(), dur)

	if mux == nil {
		mux = http.NewServeMux()
	}
	controllers.NewDefinitionsController(manager, clock).RegisterRoutes(mux)
	controllers.NewRunsController(manager, clock).RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

// DefaultAgentRegistry wires one agent per kind. OpenAI-backed agents are
// used when GRAPHFLOW_OPENAI_API_KEY is set, otherwise a static echo agent
// keeps local development and demos runnable offline.
func DefaultAgentRegistry() *agents.Registry {
	registry := agents.NewRegistry()
	useOpenAI := config.GetSystemSettingString(config.OPENAI_API_KEY) != ""
	if !useOpenAI {
		slog.Warn("No OpenAI API key configured, using static agents")
	}
	for _, kind := range workflow.AgentKinds() {
		if useOpenAI {
			agent, err := agents.NewOpenAIAgent(string(kind))
			if err != nil {
				panic(err)
			}
			registry.Register(kind, agent)
			continue
		}
		registry.Register(kind, &agents.StaticAgent{AgentName: string(kind)})
	}
	return registry
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("GRAPHFLOW_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	dbPostgres, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbPostgres
}

func setupSqliteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLITE_FILE_NAME)
	if fileName == "" {
		panic("GRAPHFLOW_DATABASE_SQLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqlite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	dbSqlite, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := dbSqlite.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return dbSqlite
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("GRAPHFLOW_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("GRAPHFLOW_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("GRAPHFLOW_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	dbMysql, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbMysql
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
