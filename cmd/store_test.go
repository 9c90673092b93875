package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/cmd/buildCFG"
	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/memstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/sqlstore"
	"github.com/Match-Score-project/Match-Score/internal/rabbit"
)

func TestResetStoreRollsBackWhenEnabled(t *testing.T) {
	log := zerolog.Nop()
	sc := buildCFG.StoreConfig{
		Driver:        buildCFG.StoreSQLite,
		MigrationsDir: filepath.Join("..", "migrations", "sqlite"),
	}
	s, err := sqlstore.OpenSQLite("file:reset_store?mode=memory&cache=shared", &log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.MigrateUp(sc.MigrationsDir); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	ref := docstore.Collection("users").Doc("u1")
	if err := s.Set(ctx, ref, docstore.Fields{"name": "Ana"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := resetStore(s, sc, &log); err != nil {
		t.Fatalf("reset while disabled: %v", err)
	}
	if _, err := s.Get(ctx, ref); err != nil {
		t.Fatalf("disabled reset must keep data: %v", err)
	}

	sc.ResetOnShutdown = true
	if err := resetStore(s, sc, &log); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := s.Get(ctx, ref); err == nil || errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected the table to be gone, got %v", err)
	}
}

func TestResetStoreIgnoresMemory(t *testing.T) {
	log := zerolog.Nop()
	sc := buildCFG.StoreConfig{Driver: buildCFG.StoreMemory, ResetOnShutdown: true}
	if err := resetStore(memstore.New(&log), sc, &log); err != nil {
		t.Fatalf("reset memory store: %v", err)
	}
}

func TestEffectiveEmailDelay(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	if got := effectiveEmailDelay(rabbit.Config{Delayed: true}, 5*time.Minute, &log); got != 5*time.Minute {
		t.Fatalf("delayed exchange: got %v", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected warning %s", buf.String())
	}

	if got := effectiveEmailDelay(rabbit.Config{}, 5*time.Minute, &log); got != 0 {
		t.Fatalf("plain exchange: got %v", got)
	}
	if !strings.Contains(buf.String(), "email_delay is ignored") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}
}
