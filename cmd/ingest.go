/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/melvkunst/tcc/ingest"
)

var CmdIngest = &cli.Command{
	Name:      "ingest",
	Usage:     "Ingest exam spreadsheets for a patient",
	ArgsUsage: "<file.xls|file.xlsx>...",
	Flags:     ingestFlags(),
	Action:    runIngest,
}

func ingestFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "patient",
			Usage: "id of the patient the exams belong to",
		},
	}
	flags = append(flags, storeFlags()...)
	flags = append(flags, archiveFlags()...)

	return append(flags, layoutFlags()...)
}

func runIngest(ctx context.Context, cmd *cli.Command) error {
	patientID, err := uuid.Parse(cmd.String("patient"))
	if err != nil {
		return fmt.Errorf("%w: %w", errPatientRequired, err)
	}

	if cmd.Args().Len() == 0 {
		return errFileRequired
	}

	svc, release, err := buildServices(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	for _, path := range cmd.Args().Slice() {
		result, err := ingestFile(ctx, svc.Pipeline, patientID, path)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		fmt.Fprintf(cmd.Root().Writer, "%s: exam %s (%s), %d alleles stored, %d skipped\n",
			filepath.Base(path),
			result.Exam.ID,
			result.Exam.ExamDate.Format("2006-01-02"),
			len(result.Measurements),
			len(result.Skipped),
		)

		for _, s := range result.Skipped {
			fmt.Fprintf(cmd.Root().Writer, "  row %d %q=%q: %s\n", s.Row, s.Allele, s.RawValue, s.Reason)
		}
	}

	return nil
}

func ingestFile(ctx context.Context, pipeline *ingest.Pipeline, patientID uuid.UUID, path string) (*ingest.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return pipeline.Ingest(ctx, patientID, filepath.Base(path), f)
}
