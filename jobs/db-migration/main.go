package main

import (
	"context"
	"log/slog"
	"time"
)

func main() {
	if fieldDBService == nil {
		return
	}
	ctx := context.Background()
	defer func() {
		if err := fieldDBService.Close(ctx); err != nil {
			slog.Error("Error closing Field DB", slog.String("error", err.Error()))
		}
	}()

	getIndexes(ctx)

	dropIndexes(ctx)

	createIndexes(ctx)
}

func getIndexes(ctx context.Context) {
	if !conf.TaskConfigs.GetIndexes {
		return
	}
	indexes, err := fieldDBService.ListIndexes(ctx)
	if err != nil {
		slog.Error("Error listing indexes", slog.String("error", err.Error()))
		return
	}
	for collection, list := range indexes {
		for _, index := range list {
			slog.Info("Index found", slog.String("collection", collection), slog.Any("name", index["name"]), slog.Any("key", index["key"]))
		}
	}
}

func dropIndexes(ctx context.Context) {
	var err error
	switch conf.TaskConfigs.DropIndexes {
	case DropIndexesModeAll:
		err = fieldDBService.DropIndexes(ctx, true)
	case DropIndexesModeDefaults:
		err = fieldDBService.DropIndexes(ctx, false)
	default:
		return
	}
	if err != nil {
		slog.Error("Error dropping indexes", slog.String("mode", string(conf.TaskConfigs.DropIndexes)), slog.String("error", err.Error()))
		return
	}
	slog.Info("Indexes dropped", slog.String("mode", string(conf.TaskConfigs.DropIndexes)))
}

func createIndexes(ctx context.Context) {
	if !conf.TaskConfigs.CreateIndexes {
		return
	}
	start := time.Now()
	if err := fieldDBService.EnsureIndexes(ctx); err != nil {
		slog.Error("Error creating indexes", slog.String("error", err.Error()))
		return
	}
	slog.Info("Indexes created", slog.String("duration", time.Since(start).String()))
}
