// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"errors"
	"os"
	"testing"
)

func TestInitRequiresDatabaseURL(t *testing.T) {
	if err := Init(testContext(), "", DefaultPoolOptions()); !errors.Is(err, ErrDatabaseURLEnvVarNotSet) {
		t.Fatalf("expected ErrDatabaseURLEnvVarNotSet, got %v", err)
	}
}

func TestInitInvalidDatabaseURL(t *testing.T) {
	if err := Init(testContext(), "postgres://", DefaultPoolOptions()); err == nil {
		t.Fatalf("expected error for invalid database url")
	}
}

func TestNilPostgresStore(t *testing.T) {
	store := NewPostgresStore(nil)

	if _, err := store.ListPatients(testContext()); !errors.Is(err, ErrDatabaseConnectionNotInitialized) {
		t.Fatalf("expected ErrDatabaseConnectionNotInitialized, got %v", err)
	}

	if err := store.InTx(testContext(), func(Tx) error { return nil }); !errors.Is(err, ErrDatabaseConnectionNotInitialized) {
		t.Fatalf("expected ErrDatabaseConnectionNotInitialized, got %v", err)
	}
}

func TestGetPoolAndClose(t *testing.T) {
	if GetPool() == nil {
		t.Skip("DATABASE_URL not set")
	}

	baseURL := os.Getenv("DATABASE_URL")

	Close()

	if GetPool() != nil {
		t.Fatalf("expected nil pool after Close")
	}

	if err := initTestPool(testContext(), baseURL, testSchemaName); err != nil {
		t.Fatalf("failed to re-init pool: %v", err)
	}
}

func TestSyncSchema(t *testing.T) {
	if GetPool() == nil {
		t.Skip("DATABASE_URL not set")
	}

	searchPathURL, err := withSearchPath(os.Getenv("DATABASE_URL"), testSchemaName)
	if err != nil {
		t.Fatalf("withSearchPath failed: %v", err)
	}

	if err := SyncSchema(testContext(), searchPathURL); err != nil {
		t.Fatalf("SyncSchema failed: %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := GetEmbeddedMigrations().ReadDir(MigrationsDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	if len(entries) == 0 {
		t.Fatalf("expected embedded migrations")
	}
}
