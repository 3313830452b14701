package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alphabot-ai/feedline/internal/auth"
	"github.com/alphabot-ai/feedline/internal/config"
	"github.com/alphabot-ai/feedline/internal/store"
	"github.com/alphabot-ai/feedline/internal/store/memory"
	"github.com/alphabot-ai/feedline/internal/store/postgres"
	"github.com/alphabot-ai/feedline/internal/store/sqlite"
)

func feedlineDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".feedline")
}

func openStorage(ctx context.Context, s config.Storage) (store.KV, error) {
	switch s.Driver {
	case "memory", "":
		return memory.New(), nil
	case "sqlite":
		if !strings.HasPrefix(s.DSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(s.DSN), 0o700); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		return sqlite.Open(s.DSN)
	case "postgres":
		if s.DSN == "" {
			return nil, fmt.Errorf("postgres storage needs FEEDLINE_STORAGE_DSN")
		}
		return postgres.Open(ctx, s.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", s.Driver)
	}
}

func sealerFor(s config.Storage) (*auth.Sealer, error) {
	if s.Key == "" {
		return nil, nil
	}
	return auth.NewSealer(s.Key)
}
