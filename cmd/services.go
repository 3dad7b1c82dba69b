/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/melvkunst/tcc/archive"
	"github.com/melvkunst/tcc/crossmatch"
	"github.com/melvkunst/tcc/ingest"
	"github.com/melvkunst/tcc/logging"
	"github.com/melvkunst/tcc/metrics"
	"github.com/melvkunst/tcc/routes"
)

// buildServices wires the store, archive, pipeline and crossmatch services
// from the command flags. The returned function releases the store.
func buildServices(ctx context.Context, cmd *cli.Command) (routes.Services, func(), error) {
	layout, err := layoutFromFlags(cmd)
	if err != nil {
		return routes.Services{}, nil, err
	}

	arch, err := archive.Open(ctx, archiveConfigFromFlags(cmd))
	if err != nil {
		return routes.Services{}, nil, fmt.Errorf("failed to open upload archive: %w", err)
	}

	if arch == nil {
		appLogger.Warn("Upload archive disabled")
	} else {
		appLogger.Info("Upload archive ready", "driver", arch.Driver())
	}

	store, release, err := openStore(ctx, cmd)
	if err != nil {
		return routes.Services{}, nil, err
	}

	m := metrics.New()

	pipeline, err := ingest.New(store, ingest.Options{
		Layout:  &layout,
		Archive: arch,
		Logger:  logging.Logger(logging.SourceIngest),
		Metrics: m,
	})
	if err != nil {
		release()
		return routes.Services{}, nil, fmt.Errorf("failed to create ingest pipeline: %w", err)
	}

	crossmatchLogger := logging.Logger(logging.SourceCrossmatch)

	return routes.Services{
		Store:    store,
		Pipeline: pipeline,
		Engine:   crossmatch.NewEngine(store, crossmatchLogger, m),
		Recorder: crossmatch.NewRecorder(store, crossmatchLogger, m),
		Archive:  arch,
		Metrics:  m,
	}, release, nil
}
