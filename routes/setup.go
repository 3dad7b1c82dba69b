/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"github.com/flamego/flamego"

	"github.com/melvkunst/tcc/archive"
	"github.com/melvkunst/tcc/crossmatch"
	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/ingest"
	"github.com/melvkunst/tcc/metrics"
)

// Services are the collaborators injected into the handlers.
type Services struct {
	Store    db.Store
	Pipeline *ingest.Pipeline
	Engine   *crossmatch.Engine
	Recorder *crossmatch.Recorder
	Archive  archive.Store
	Metrics  *metrics.Metrics
}

// Setup maps the services and registers every route on f.
func Setup(f *flamego.Flame, svc Services) {
	f.MapTo(svc.Store, (*db.Store)(nil))
	f.Map(svc.Pipeline, svc.Engine, svc.Recorder, svc.Metrics, &Uploads{Store: svc.Archive})

	f.Use(RequestLogger)

	f.Get("/metrics", Metrics)

	f.Group("/api", func() {
		f.Get("/pacientes", ListPatients)
		f.Post("/pacientes", CreatePatient)
		f.Get("/pacientes/{id}", GetPatient)
		f.Delete("/pacientes/{id}", DeletePatient)
		f.Get("/pacientes/{id}/exames", ListPatientExams)
		f.Post("/pacientes/{id}/exames/upload", UploadExam)
		f.Get("/pacientes/{id}/exames/uploads", ListUploads)
		f.Get("/pacientes/{id}/exames/uploads/download", DownloadUpload)
		f.Get("/pacientes/{id}/exames/{exam}/alelos", ListExamAlleles)

		f.Post("/newvxm/virtual_crossmatch", VirtualCrossmatch)
		f.Post("/save_crossmatch_result", SaveCrossmatch)
		f.Get("/vxm-history", CrossmatchHistory)
		f.Get("/vxm-details/{id}", CrossmatchDetails)
		f.Get("/vxm-details/{id}/chart", CrossmatchChart)
	}, NoCacheHeaders())
}

// NewHandler returns a flame with the services mapped and routes registered.
func NewHandler(svc Services) *flamego.Flame {
	f := flamego.New()
	f.Use(flamego.Recovery())
	Setup(f, svc)

	return f
}
