package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nizamiq/cadence/internal/domain"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

func TestListFeaturesSortedAndNormalized(t *testing.T) {
	path := writeRegistry(t, `{
		"search": {"status": "planned"},
		"auth": {"status": "done"},
		"billing": {"status": "wip", "blocked": true},
		"  ": {"status": "partial"}
	}`)

	features, err := NewFileRegistry(path).ListFeatures(context.Background())
	if err != nil {
		t.Fatalf("ListFeatures() error = %v", err)
	}
	if len(features) != 3 {
		t.Fatalf("expected blank names dropped, got %+v", features)
	}
	wantNames := []string{"auth", "billing", "search"}
	for i, f := range features {
		if f.Name != wantNames[i] {
			t.Fatalf("position %d: expected %s, got %s", i, wantNames[i], f.Name)
		}
	}
	if features[0].Status != domain.FeatureImplemented {
		t.Fatalf("expected done to normalize to implemented, got %q", features[0].Status)
	}
	if features[1].Status != domain.FeaturePartial || !features[1].Blocked {
		t.Fatalf("unexpected billing record %+v", features[1])
	}
}

func TestListFeaturesMissingFileIsEmpty(t *testing.T) {
	features, err := NewFileRegistry(filepath.Join(t.TempDir(), "absent.json")).ListFeatures(context.Background())
	if err != nil || features != nil {
		t.Fatalf("expected empty registry for missing file, got %v / %v", features, err)
	}

	features, err = NewFileRegistry("").ListFeatures(context.Background())
	if err != nil || features != nil {
		t.Fatalf("expected empty registry for blank path, got %v / %v", features, err)
	}
}

func TestListFeaturesMalformedFile(t *testing.T) {
	path := writeRegistry(t, `{not json`)
	if _, err := NewFileRegistry(path).ListFeatures(context.Background()); err == nil {
		t.Fatal("expected malformed registry to fail")
	}
}
