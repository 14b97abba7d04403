package domain

import (
	"math"
	"testing"
	"time"
)

func TestBuildReleaseContext(t *testing.T) {
	features := []FeatureRecord{
		{Name: "auth", Status: FeatureImplemented},
		{Name: "billing", Status: FeaturePartial, Blocked: true},
		{Name: "export", Status: FeaturePartial},
		{Name: "search", Status: FeaturePlanned},
	}

	rc := BuildReleaseContext(testNow.AddDate(0, 0, 10), features, false, testNow)
	if rc.DaysToRelease != 10 {
		t.Fatalf("expected 10 days to release, got %d", rc.DaysToRelease)
	}
	if math.Abs(rc.PartialFeatureRatio-0.5) > 1e-9 {
		t.Fatalf("expected partial ratio 0.5, got %.4f", rc.PartialFeatureRatio)
	}
	if rc.BlockedPartialFeatureCount != 1 {
		t.Fatalf("expected one blocked partial feature, got %d", rc.BlockedPartialFeatureCount)
	}
	if rc.IsPostRelease || rc.ManualSprintFlag {
		t.Fatalf("unexpected flags in %+v", rc)
	}
}

func TestBuildReleaseContextNoScheduleAndPostRelease(t *testing.T) {
	noDate := BuildReleaseContext(noTime(), nil, false, testNow)
	if noDate.DaysToRelease <= 10000 {
		t.Fatalf("expected large sentinel with no release scheduled, got %d", noDate.DaysToRelease)
	}

	past := BuildReleaseContext(testNow.AddDate(0, 0, -3), nil, false, testNow)
	if !past.IsPostRelease || past.DaysToRelease <= 10000 {
		t.Fatalf("expected post-release with proximity quiet, got %+v", past)
	}
}

func TestPostReleaseRevertsModeAndBoostsDebt(t *testing.T) {
	rc := BuildReleaseContext(testNow.AddDate(0, 0, -30), nil, false, testNow)
	if !rc.IsPostRelease {
		t.Fatalf("expected post-release context, got %+v", rc)
	}

	mode, reason := DecideMode(rc, 1.0, 0, DefaultReleaseTriggers())
	if mode != ModeNormal || reason != "" {
		t.Fatalf("expected normal mode once the release date passed, got %q (%s)", mode, reason)
	}

	result := ComputeDebtRatio(DebtContext{
		DaysToRelease:       rc.DaysToRelease,
		WipHealthScore:      1.0,
		IsPostRelease:       rc.IsPostRelease,
		CapacityUtilization: 0.5,
	}, DefaultDebtRatioConfig())
	if result.Ratio != 0.45 {
		t.Fatalf("expected boosted post-release ratio 0.45, got %.4f", result.Ratio)
	}
	if len(result.Applied) != 1 || result.Applied[0].Name != "post_release" {
		t.Fatalf("expected only the post_release adjustment, got %v", result.Applied)
	}
}

func TestDecideModeTriggerOrder(t *testing.T) {
	triggers := DefaultReleaseTriggers()
	quiet := BuildReleaseContext(noTime(), nil, false, testNow)

	cases := []struct {
		name       string
		rc         ReleaseContext
		wip        float64
		severe     int
		wantMode   Mode
		wantReason string
	}{
		{"all quiet", quiet, 1.0, 0, ModeNormal, ""},
		{
			"manual override wins over everything",
			BuildReleaseContext(testNow.AddDate(0, 0, 2), nil, true, testNow),
			0.2, 9, ModeReleaseSprint, ReasonManualOverride,
		},
		{
			"release imminent",
			BuildReleaseContext(testNow.AddDate(0, 0, 5), nil, false, testNow),
			1.0, 0, ModeReleaseSprint, ReasonReleaseImminent,
		},
		{
			"partial features",
			ReleaseContext{DaysToRelease: 100, PartialFeatureRatio: 0.25},
			1.0, 0, ModeReleaseSprint, ReasonPartialFeatures,
		},
		{"wip health", quiet, 0.5, 0, ModeReleaseSprint, ReasonWipHealth},
		{"aging pressure", quiet, 1.0, 3, ModeReleaseSprint, ReasonAgingPressure},
		{"at thresholds stays normal", quiet, 0.6, 2, ModeNormal, ""},
	}
	for _, tc := range cases {
		mode, reason := DecideMode(tc.rc, tc.wip, tc.severe, triggers)
		if mode != tc.wantMode || reason != tc.wantReason {
			t.Fatalf("%s: expected (%q, %q), got (%q, %q)", tc.name, tc.wantMode, tc.wantReason, mode, reason)
		}
	}
}

func TestNormalizeFeatureStatus(t *testing.T) {
	cases := map[FeatureStatus]FeatureStatus{
		"done":        FeatureImplemented,
		"Implemented": FeatureImplemented,
		"wip":         FeaturePartial,
		"in-progress": FeaturePartial,
		"":            FeaturePlanned,
		"whatever":    FeaturePlanned,
	}
	for raw, want := range cases {
		if got := NormalizeFeatureStatus(raw); got != want {
			t.Fatalf("%q: expected %q, got %q", raw, want, got)
		}
	}
}

func TestReleaseTriggersValidate(t *testing.T) {
	if err := DefaultReleaseTriggers().Validate(); err != nil {
		t.Fatalf("default triggers should validate, got %v", err)
	}
	bad := DefaultReleaseTriggers()
	bad.PartialFeatureRatio = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatal("expected out-of-range ratio to fail validation")
	}
}

// noTime returns the zero time, meaning no release is scheduled.
func noTime() time.Time { return time.Time{} }
