package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shubhsaxena/search-layout/internal/models"
)

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "global"},
		{"us-east", "us-east"},
		{"global", "global"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := normalizeRegion(tt.in); got != tt.want {
				t.Errorf("normalizeRegion(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTrendKey_Format(t *testing.T) {
	day := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	key := trendKey("us-east", day)
	if key != "trend:us-east:20261018" {
		t.Errorf("unexpected trend key %q", key)
	}
}

func TestTrendKey_UsesUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	// 20:00 on the 18th at UTC-8 is 04:00 on the 19th in UTC.
	day := time.Date(2026, 10, 18, 20, 0, 0, 0, loc)
	key := trendKey("global", day)
	if !strings.HasSuffix(key, ":20261019") {
		t.Errorf("expected UTC day in key, got %q", key)
	}
}

func TestTrendKey_DifferentDaysProduceDifferentKeys(t *testing.T) {
	d1 := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	d2 := d1.Add(24 * time.Hour)
	if trendKey("global", d1) == trendKey("global", d2) {
		t.Error("different days should produce different keys")
	}
}

func TestBreakdownKey(t *testing.T) {
	if got := breakdownKey((24 * time.Hour).String()); got != "bd:24h0m0s" {
		t.Errorf("unexpected breakdown key %q", got)
	}
	if breakdownKey("1h0m0s") == breakdownKey("24h0m0s") {
		t.Error("different windows should produce different keys")
	}
}

func TestIntentCountsFromScores(t *testing.T) {
	zs := []redis.Z{
		{Score: 12, Member: "how_to"},
		{Score: 7, Member: "not_an_intent"},
		{Score: 5, Member: "visual"},
		{Score: 3, Member: 42},
	}

	got := intentCountsFromScores(zs)
	if len(got) != 2 {
		t.Fatalf("expected 2 counts, got %d: %v", len(got), got)
	}
	if got[0].Intent != models.IntentHowTo || got[0].Count != 12 {
		t.Errorf("unexpected first count: %+v", got[0])
	}
	if got[1].Intent != models.IntentVisual || got[1].Count != 5 {
		t.Errorf("unexpected second count: %+v", got[1])
	}
}

func TestIntentCountsFromScores_Empty(t *testing.T) {
	got := intentCountsFromScores(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
