package docstore

import (
	"fmt"
	"log/slog"

	"github.com/case-framework/field-survey-backend/pkg/db"
)

// store backends
const (
	BACKEND_MONGO  = "mongo"
	BACKEND_MEMORY = "memory"
)

// Open connects the configured backend. An empty backend selects MongoDB.
func Open(backend string, dbConfig db.DBConfigYaml, indexes []Index) (Gateway, error) {
	switch backend {
	case "", BACKEND_MONGO:
		return NewMongoStore(db.DBConfigFromYamlObj(dbConfig), indexes)
	case BACKEND_MEMORY:
		slog.Warn("using the in-memory store, data is lost on restart")
		return NewMemoryStore(indexes), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
