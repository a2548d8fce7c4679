package db

import (
	"fmt"
	"log/slog"
)

const (
	defaultTimeout         = 30
	defaultIdleConnTimeout = 45
	defaultMaxPoolSize     = 8
)

// DBConfigFromYamlObj builds the connection config from the yaml section, filling defaults for
// unset numeric values.
func DBConfigFromYamlObj(yamlObj DBConfigYaml) DBConfig {
	if yamlObj.ConnectionStr == "" {
		slog.Error("couldn't read DB connection string")
		panic("couldn't read DB connection string")
	}

	var URI string
	if yamlObj.Username == "" && yamlObj.Password == "" {
		URI = fmt.Sprintf(`mongodb%s://%s`, yamlObj.ConnectionPrefix, yamlObj.ConnectionStr)
	} else {
		URI = fmt.Sprintf(`mongodb%s://%s:%s@%s`, yamlObj.ConnectionPrefix, yamlObj.Username, yamlObj.Password, yamlObj.ConnectionStr)
	}

	timeout := yamlObj.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	idleConnTimeout := yamlObj.IdleConnTimeout
	if idleConnTimeout <= 0 {
		idleConnTimeout = defaultIdleConnTimeout
	}
	maxPoolSize := yamlObj.MaxPoolSize
	if maxPoolSize <= 0 {
		maxPoolSize = defaultMaxPoolSize
	}

	return DBConfig{
		URI:              URI,
		Timeout:          timeout,
		IdleConnTimeout:  idleConnTimeout,
		MaxPoolSize:      uint64(maxPoolSize),
		NoCursorTimeout:  yamlObj.UseNoCursorTimeout,
		DBNamePrefix:     yamlObj.DBNamePrefix,
		RunIndexCreation: yamlObj.RunIndexCreation,
	}
}
