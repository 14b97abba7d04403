package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/nizamiq/cadence/internal/domain"
)

// FileRegistry reads feature implementation status from a JSON file kept next
// to the codebase, of the form {"feature-name": {"status": "partial",
// "blocked": true}, ...}.
type FileRegistry struct {
	path string
}

// NewFileRegistry constructs a registry over the given file path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// fileEntry is the on-disk shape of one feature record.
type fileEntry struct {
	Status  string `json:"status"`
	Blocked bool   `json:"blocked"`
}

// ListFeatures reads and normalizes all feature records, sorted by name for
// deterministic downstream computation. A missing path yields an empty
// registry, not an error.
func (r *FileRegistry) ListFeatures(_ context.Context) ([]domain.FeatureRecord, error) {
	if strings.TrimSpace(r.path) == "" {
		return nil, nil
	}
	content, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feature registry: %w", err)
	}

	var entries map[string]fileEntry
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("decode feature registry: %w", err)
	}

	features := make([]domain.FeatureRecord, 0, len(entries))
	for name, entry := range entries {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		features = append(features, domain.FeatureRecord{
			Name:    name,
			Status:  domain.NormalizeFeatureStatus(domain.FeatureStatus(entry.Status)),
			Blocked: entry.Blocked,
		})
	}
	sort.Slice(features, func(i, j int) bool { return features[i].Name < features[j].Name })
	return features, nil
}
