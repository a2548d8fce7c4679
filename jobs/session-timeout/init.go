package main

import (
	"log/slog"
	"os"

	"github.com/case-framework/field-survey-backend/pkg/db"
	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/engine"
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

	StoreBackend string `json:"store_backend" yaml:"store_backend"`

	// DB configs
	DBConfigs struct {
		FieldDB db.DBConfigYaml `json:"field_db" yaml:"field_db"`
	} `json:"db_configs" yaml:"db_configs"`

	Engine engine.ConfigYaml `json:"engine" yaml:"engine"`
}

var conf config

var (
	fieldEngine *engine.Engine
)

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

	// Init logger:
	utils.InitLoggerFromConfig(conf.Logging)

	// Override secrets from environment variables
	secretsOverride()

	initEngine()
}

func secretsOverride() {
	if dbUsername := os.Getenv(ENV_FIELD_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.FieldDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_FIELD_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.FieldDB.Password = dbPassword
	}
}

func initEngine() {
	opts, err := engine.OptionsFromYamlObj(conf.Engine)
	if err != nil {
		slog.Error("Error reading engine config", slog.String("error", err.Error()))
		panic(err)
	}

	store, err := docstore.Open(conf.StoreBackend, conf.DBConfigs.FieldDB, types.Indexes)
	if err != nil {
		slog.Error("Error connecting to Field DB", slog.String("error", err.Error()))
		panic(err)
	}

	fieldEngine = engine.New(store, utils.SystemClock, opts)
}
