package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const DATABASE_TYPE = "GRAPHFLOW_DATABASE_TYPE"
const DATABASE_URL = "GRAPHFLOW_DATABASE_URL"
const DATABASE_SQLITE_FILE_NAME = "GRAPHFLOW_DATABASE_SQLITE_FILE_NAME"
const SERVER_WEB_PORT = "GRAPHFLOW_SERVER_WEB_PORT"
const ENGINE_CHECK_DB_INTERVAL = "GRAPHFLOW_ENGINE_CHECK_DB_INTERVAL"
const ENGINE_STUCK_RUNS_INTERVAL = "GRAPHFLOW_ENGINE_STUCK_RUNS_INTERVAL"
const ENGINE_STUCK_RUNS_REPAIR_AFTER_MINUTES = "GRAPHFLOW_ENGINE_STUCK_RUNS_REPAIR_AFTER_MINUTES"
const ENGINE_BATCH_SIZE = "GRAPHFLOW_ENGINE_BATCH_SIZE"         //number of runs to pull from the database at a time
const ENGINE_EXECUTOR_GROUP = "GRAPHFLOW_ENGINE_EXECUTOR_GROUP" //the group id this executor will process runs for
const ENGINE_EXECUTOR_SIZE = "GRAPHFLOW_ENGINE_EXECUTOR_SIZE"   //number of workers ie the parallel nature of the runs
const SEED_DEFINITIONS_DIR = "GRAPHFLOW_SEED_DEFINITIONS_DIR"   //optional directory of definition files loaded at startup
const OPENAI_API_KEY = "GRAPHFLOW_OPENAI_API_KEY"
const OPENAI_MODEL = "GRAPHFLOW_OPENAI_MODEL"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLITE = "SQLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

// GetSystemSettingDuration parses an interval setting, falling back when the
// value is missing, unparseable or non-positive so a bad env var cannot feed
// a zero interval into a ticker.
func GetSystemSettingDuration(settingKey string, fallback time.Duration) time.Duration {
	val := GetSystemSettingString(settingKey)
	dur, err := time.ParseDuration(val)
	if err != nil || dur <= 0 {
		slog.Warn("Invalid duration setting, using fallback", "key", settingKey, "value", val, "fallback", fallback)
		return fallback
	}
	return dur
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == ENGINE_CHECK_DB_INTERVAL {
		return "3s"
	}
	if settingKey == ENGINE_STUCK_RUNS_INTERVAL {
		return "60s"
	}
	if settingKey == ENGINE_BATCH_SIZE {
		return "5"
	}
	if settingKey == ENGINE_STUCK_RUNS_REPAIR_AFTER_MINUTES {
		return "5"
	}
	if settingKey == ENGINE_EXECUTOR_SIZE {
		return "5"
	}
	if settingKey == ENGINE_EXECUTOR_GROUP {
		return "default"
	}
	if settingKey == SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == DATABASE_SQLITE_FILE_NAME {
		return "./graphflow.db"
	}
	if settingKey == OPENAI_MODEL {
		return "gpt-4o-mini"
	}
	return ""
}
