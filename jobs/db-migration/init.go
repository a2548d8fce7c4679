package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/case-framework/field-survey-backend/pkg/db"
	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/utils"
	"gopkg.in/yaml.v2"
)

// Environment variables
const (
	ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

	// Variables to override "secrets" in the config file
	ENV_FIELD_DB_USERNAME = "FIELD_DB_USERNAME"
	ENV_FIELD_DB_PASSWORD = "FIELD_DB_PASSWORD"
)

type config struct {
	// Logging configs
	Logging utils.LoggerConfig `json:"logging" yaml:"logging"`

	// DB configs
	DBConfigs struct {
		FieldDB db.DBConfigYaml `json:"field_db" yaml:"field_db"`
	} `json:"db_configs" yaml:"db_configs"`

	// Task configurations
	TaskConfigs TaskConfigs `json:"task_configs" yaml:"task_configs"`
}

// Tasks run in the order get, drop, create.
type TaskConfigs struct {
	GetIndexes    bool            `json:"get_indexes" yaml:"get_indexes"`
	DropIndexes   DropIndexesMode `json:"drop_indexes" yaml:"drop_indexes"`
	CreateIndexes bool            `json:"create_indexes" yaml:"create_indexes"`
}

type DropIndexesMode string

const (
	DropIndexesModeAll      DropIndexesMode = "all"
	DropIndexesModeDefaults DropIndexesMode = "defaults"
	DropIndexesModeNone     DropIndexesMode = "none"
)

func (mode DropIndexesMode) IsValid() bool {
	switch mode {
	case DropIndexesModeAll, DropIndexesModeDefaults, DropIndexesModeNone:
		return true
	default:
		return false
	}
}

func (tasks TaskConfigs) validate() error {
	if tasks.DropIndexes == "" {
		return nil
	}
	if !tasks.DropIndexes.IsValid() {
		return fmt.Errorf("invalid drop indexes mode for task_configs.drop_indexes: %q. Use one of: %v", tasks.DropIndexes, []DropIndexesMode{DropIndexesModeAll, DropIndexesModeDefaults, DropIndexesModeNone})
	}
	return nil
}

func (tasks TaskConfigs) needsDB() bool {
	dropping := tasks.DropIndexes != "" && tasks.DropIndexes != DropIndexesModeNone
	return tasks.GetIndexes || tasks.CreateIndexes || dropping
}

var conf config

var fieldDBService *docstore.MongoStore

func init() {
	// Read config from file
	yamlFile, err := os.ReadFile(os.Getenv(ENV_CONFIG_FILE_PATH))
	if err != nil {
		panic(err)
	}

	err = yaml.UnmarshalStrict(yamlFile, &conf)
	if err != nil {
		panic(err)
	}

	if err := conf.TaskConfigs.validate(); err != nil {
		panic(err)
	}

	// Init logger:
	utils.InitLoggerFromConfig(conf.Logging)

	// Override secrets from environment variables
	secretsOverride()

	// init db
	initDB()
}

func secretsOverride() {
	if dbUsername := os.Getenv(ENV_FIELD_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.FieldDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_FIELD_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.FieldDB.Password = dbPassword
	}
}

func initDB() {
	if !conf.TaskConfigs.needsDB() {
		slog.Info("No index task configured, not connecting to Field DB")
		return
	}

	// index creation is a task of its own here
	dbConfig := db.DBConfigFromYamlObj(conf.DBConfigs.FieldDB)
	dbConfig.RunIndexCreation = false

	var err error
	fieldDBService, err = docstore.NewMongoStore(dbConfig, types.Indexes)
	if err != nil {
		slog.Error("Error connecting to Field DB", slog.String("error", err.Error()))
		panic(err)
	}
	slog.Info("Database connection established", slog.Bool("field_db", true))
}
