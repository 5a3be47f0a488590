// Package pipeline assembles the assessment engine from the service
// configuration. Both binaries build through it.
package pipeline

import (
	"fmt"

	"pronounce-go/internal/comparator"
	"pronounce-go/internal/config"
	"pronounce-go/internal/dataset"
	"pronounce-go/internal/extractor"
	"pronounce-go/internal/logger"
	"pronounce-go/internal/observe"
	"pronounce-go/internal/processor"
	"pronounce-go/internal/transcription"
	"pronounce-go/internal/types"
)

type Pipeline struct {
	Tuning  config.Tuning
	Catalog []types.Phrase
	Store   *comparator.Store
	Remote  *transcription.Client
	Engine  *processor.Engine
}

// Build loads tuning, the optional phrase catalog and the reference
// recordings, then wires the remote client and the engine. metrics may be
// nil.
func Build(svc config.Service, log *logger.Logger, metrics *observe.Metrics) (*Pipeline, error) {
	tuning, err := config.LoadTuning(svc.TuningPath)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Tuning: tuning}

	if svc.PhraseCatalog != "" {
		log.WithField("catalog", svc.PhraseCatalog).Info("loading phrase catalog")
		p.Catalog, err = dataset.LoadCatalog(svc.PhraseCatalog)
		if err != nil {
			return nil, fmt.Errorf("phrase catalog: %w", err)
		}
		log.WithField("phrases", len(p.Catalog)).Info("phrase catalog loaded")
	}

	ex := extractor.New(tuning.Extractor, log.Component("extractor"))
	p.Store, err = comparator.LoadStore(svc.ReferenceDir, ex, p.Catalog, tuning.Extractor.TrimThreshold, log.Entry)
	if err != nil {
		return nil, err
	}

	p.Remote = transcription.New(svc, tuning.Grades.Remote,
		transcription.WithMetrics(metrics),
		transcription.WithLogger(log.Entry),
	)
	if err := p.Remote.Ready(); err != nil {
		// requests needing the provider will be rejected; the rest still work
		log.WithError(err).Warn("speech provider not configured")
	}

	p.Engine = processor.New(tuning, p.Store, p.Remote,
		processor.WithMetrics(metrics),
		processor.WithLogger(log.Entry),
		processor.WithExtractor(ex),
	)
	return p, nil
}
