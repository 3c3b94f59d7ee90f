package store

import (
	"context"
	"log/slog"
)

// Options carries the configuration the selector inspects. Presence decides
// the backend; values are never re-read after startup.
type Options struct {
	// MongoURI selects the document backend when non-empty.
	MongoURI      string
	MongoDatabase string

	// DatabaseURL selects the relational backend when non-empty and no
	// document backend is configured. Driver is "pgx" (Postgres, the hosted
	// case) or "sqlite".
	DatabaseURL string
	Driver      string

	// DataPath is the universal fallback: a single local JSON document.
	DataPath string
}

// Open binds exactly one backend for the process lifetime, in fixed priority
// order: document database, relational database, local file. Connectivity is
// probed eagerly; a configured-but-unreachable backend aborts startup rather
// than silently demoting to the next tier. After startup, substrate failures
// surface per-request as ErrUnavailable with no fallback or retry.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.MongoURI != "" {
		s, err := newMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("store selected", "backend", "mongo", "database", opts.MongoDatabase)
		return s, nil
	}

	if opts.DatabaseURL != "" {
		driver := opts.Driver
		if driver == "" {
			driver = "pgx"
		}
		s, err := newSQLStore(driver, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("store selected", "backend", "sql", "driver", driver)
		return s, nil
	}

	s, err := newFileStore(opts.DataPath)
	if err != nil {
		return nil, err
	}
	slog.Info("store selected", "backend", "file", "path", opts.DataPath)
	return s, nil
}
