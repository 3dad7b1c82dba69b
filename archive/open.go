/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package archive

import (
	"context"
	"fmt"
)

// Config selects and configures an archive backend.
type Config struct {
	Driver Driver
	// Root is the directory of the fs driver.
	Root string
	S3   S3Config
}

// Open returns the configured Store. DriverNone yields a nil Store, which
// disables archiving.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverNone:
		return nil, nil
	case DriverFilesystem, "":
		store, err := NewFSStore(cfg.Root)
		if err != nil {
			return nil, err
		}

		return store, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverS3:
		store, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}
