package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gentoomaniac/mboozle/pkg/extract"
)

func (a *app) extractor() (*extract.Extractor, error) {
	if err := a.fs.MkdirAll(a.cfg.Outputs, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", a.cfg.Outputs)
	}
	return extract.New(a.fs, a.cfg.Inputs, a.cfg.Outputs).WithSpaceCheck(extract.FreeSpace), nil
}

func (a *app) extract(ctx context.Context) error {
	ex, err := a.extractor()
	if err != nil {
		return err
	}
	results, err := ex.ExtractAll(ctx)
	if err != nil {
		return err
	}
	return a.extractSummary(results)
}

// extractSummary logs the outcome of an extraction and fails when any
// archive failed.
func (a *app) extractSummary(results []*extract.Result) error {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	log.Info().Int("archives", len(results)).Int("failed", failed).Str("outputs", a.cfg.Outputs).Msg("extraction finished")

	if failed > 0 {
		return errors.Errorf("%d of %d archives failed to extract", failed, len(results))
	}
	return nil
}
