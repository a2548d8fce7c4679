package main

import (
	"log/slog"
	"os"

	"github.com/case-framework/field-survey-backend/pkg/apihelpers"
	"github.com/case-framework/field-survey-backend/pkg/db"
	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/engine"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v2"
)

// Environment variables
const (
	ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

	// Variables to override "secrets" in the config file
	ENV_FIELD_DB_USERNAME         = "FIELD_DB_USERNAME"
	ENV_FIELD_DB_PASSWORD         = "FIELD_DB_PASSWORD"
	ENV_FIELD_USER_JWT_SIGN_KEY   = "FIELD_USER_JWT_SIGN_KEY"
	ENV_SERVICE_API_KEYS_OVERRIDE = "FIELD_API_SERVICE_API_KEY"
)

type FieldApiConfig struct {
	// Logging configs
	Logging utils.LoggerConfig `json:"logging" yaml:"logging"`

	// Gin configs
	GinConfig struct {
		DebugMode    bool     `json:"debug_mode" yaml:"debug_mode"`
		AllowOrigins []string `json:"allow_origins" yaml:"allow_origins"`
		Port         string   `json:"port" yaml:"port"`

		// Mutual TLS configs
		MTLS struct {
			Use              bool                        `json:"use" yaml:"use"`
			CertificatePaths apihelpers.CertificatePaths `json:"certificate_paths" yaml:"certificate_paths"`
		} `json:"mtls" yaml:"mtls"`
	} `json:"gin_config" yaml:"gin_config"`

	// user management configs
	UserManagementConfig struct {
		JWTSignKey string `json:"jwt_sign_key" yaml:"jwt_sign_key"`
	} `json:"user_management_config" yaml:"user_management_config"`

	// keys accepted on /v1/internal endpoints
	ServiceAPIKeys []string `json:"service_api_keys" yaml:"service_api_keys"`

	// mongo or memory
	StoreBackend string `json:"store_backend" yaml:"store_backend"`

	// DB configs
	DBConfigs struct {
		FieldDB db.DBConfigYaml `json:"field_db" yaml:"field_db"`
	} `json:"db_configs" yaml:"db_configs"`

	Engine engine.ConfigYaml `json:"engine" yaml:"engine"`
}

var conf FieldApiConfig

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

	if conf.UserManagementConfig.JWTSignKey == "" {
		slog.Error("JWT sign key not set - configure " + ENV_FIELD_USER_JWT_SIGN_KEY)
		panic("JWT sign key not set")
	}

	if !conf.GinConfig.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	initEngine()
}

func secretsOverride() {
	if dbUsername := os.Getenv(ENV_FIELD_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.FieldDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_FIELD_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.FieldDB.Password = dbPassword
	}

	if signKey := os.Getenv(ENV_FIELD_USER_JWT_SIGN_KEY); signKey != "" {
		conf.UserManagementConfig.JWTSignKey = signKey
	}

	if apiKey := os.Getenv(ENV_SERVICE_API_KEYS_OVERRIDE); apiKey != "" {
		conf.ServiceAPIKeys = []string{apiKey}
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
