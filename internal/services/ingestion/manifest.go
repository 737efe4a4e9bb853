package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/yojana/internal/models"
	"gopkg.in/yaml.v3"
)

// Manifest lists documents to ingest in one batch.
//
//	documents:
//	  - path: notifications/gruha-lakshmi.pdf
//	    title: Gruha Lakshmi Scheme Guidelines
//	    type: scheme
//	    source_url: https://sevasindhu.karnataka.gov.in
//	    language_hints: [kn, en]
type Manifest struct {
	Documents []models.IngestRequest `yaml:"documents"`
}

// ManifestOutcome is the per-entry result of a manifest run
type ManifestOutcome struct {
	Path   string                  `json:"path"`
	Result *models.IngestionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// LoadManifest parses a manifest file. Relative document paths resolve
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range manifest.Documents {
		doc := &manifest.Documents[i]
		if doc.Filename == "" {
			return nil, fmt.Errorf("manifest entry %d has no path", i)
		}
		if !filepath.IsAbs(doc.Filename) {
			doc.Filename = filepath.Join(base, doc.Filename)
		}
	}

	return &manifest, nil
}

// IngestManifest ingests every manifest entry sequentially. Entry failures are
// recorded in the outcomes and do not stop the run, except quota exhaustion,
// which ends it.
func (s *Service) IngestManifest(ctx context.Context, path string) ([]ManifestOutcome, error) {
	manifest, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("manifest", path).
		Int("documents", len(manifest.Documents)).
		Msg("Ingesting manifest")

	outcomes := make([]ManifestOutcome, 0, len(manifest.Documents))
	for _, req := range manifest.Documents {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome := ManifestOutcome{Path: req.Filename}

		data, err := os.ReadFile(req.Filename)
		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			s.logger.Warn().Err(err).Str("path", req.Filename).Msg("Skipping unreadable manifest entry")
			continue
		}
		req.Data = data

		result, err := s.Ingest(ctx, req)
		outcome.Result = result
		if err != nil {
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)

		if errors.Is(err, models.ErrQuotaExhausted) {
			s.logger.Warn().Str("path", req.Filename).Msg("Quota exhausted, stopping manifest run")
			return outcomes, err
		}
	}

	return outcomes, nil
}
