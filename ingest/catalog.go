/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/hla"
)

// Catalog resolves allele names to catalog entries inside an ingestion
// transaction.
type Catalog struct {
	logger *log.Logger
}

// NewCatalog returns a Catalog logging to logger, or to the ingest logger when nil.
func NewCatalog(logger *log.Logger) *Catalog {
	if logger == nil {
		logger = defaultLogger()
	}

	return &Catalog{logger: logger}
}

// Ensure returns the catalog entry a new measurement of name in examID must
// reference. The entry named name is created on first sighting. When the
// exam already measures that entry, a fresh entry name.N is minted with the
// smallest N >= 1 not yet in the catalog, so no reading is merged or
// overwritten.
func (c *Catalog) Ensure(ctx context.Context, tx db.Tx, examID uuid.UUID, allele hla.Allele, name string) (*db.Allele, error) {
	entry, err := c.getOrCreate(ctx, tx, allele, name)
	if err != nil {
		return nil, err
	}

	measured, err := tx.MeasurementExists(ctx, examID, entry.ID)
	if err != nil {
		return nil, err
	}

	if !measured {
		return entry, nil
	}

	for suffix := 1; ; suffix++ {
		candidate := fmt.Sprintf("%s.%d", name, suffix)

		_, err := tx.GetAlleleByName(ctx, candidate)
		if err == nil {
			continue
		}

		if !errors.Is(err, db.ErrAlleleNotFound) {
			return nil, err
		}

		minted, err := tx.CreateAllele(ctx, catalogEntry(allele, candidate))
		if errors.Is(err, db.ErrAlleleExists) {
			continue
		}

		if err != nil {
			return nil, err
		}

		c.logger.Debug("Minted suffixed allele for repeated reading", "allele", name, "entry", candidate, "exam_id", examID)

		return minted, nil
	}
}

func (c *Catalog) getOrCreate(ctx context.Context, tx db.Tx, allele hla.Allele, name string) (*db.Allele, error) {
	entry, err := tx.GetAlleleByName(ctx, name)
	if err == nil {
		return entry, nil
	}

	if !errors.Is(err, db.ErrAlleleNotFound) {
		return nil, err
	}

	created, err := tx.CreateAllele(ctx, catalogEntry(allele, name))
	if !errors.Is(err, db.ErrAlleleExists) {
		return created, err
	}

	// Another ingestion committed the name after the lookup above.
	return tx.GetAlleleByName(ctx, name)
}

func catalogEntry(allele hla.Allele, name string) db.Allele {
	return db.Allele{
		Name:   name,
		Locus:  allele.Locus,
		Field1: allele.Field1,
		Field2: allele.Field2,
	}
}
