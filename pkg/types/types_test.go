package types

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeHandle(t *testing.T) {
	cases := map[string]Handle{
		"@alice":   "alice",
		"  bob ":   "bob",
		"@ carol":  "carol",
		"":         "",
		"DaveSays": "DaveSays",
	}
	for in, want := range cases {
		if got := NormalizeHandle(in); got != want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", in, got, want)
		}
	}
	if !Handle("Alice").Equal("alice") {
		t.Error("expected case-insensitive handle match")
	}
}

func TestPostAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Post{CreatedAt: now.Add(-2 * time.Hour)}
	if got := p.Age(now); got != 2*time.Hour {
		t.Fatalf("expected 2h, got %s", got)
	}
	future := &Post{CreatedAt: now.Add(time.Hour)}
	if got := future.Age(now); got != 0 {
		t.Fatalf("future post should have zero age, got %s", got)
	}
}

func TestPersonaStats_AvgEngagement(t *testing.T) {
	s := PersonaStats{RepliesPosted: 4, EngagementTotal: 10}
	if got := s.AvgEngagement(); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	if got := (PersonaStats{}).AvgEngagement(); got != 0 {
		t.Fatalf("expected 0 for empty stats, got %v", got)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	var err error = &RateLimitExceeded{Count: 17, Cap: 17}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("RateLimitExceeded should match ErrRateLimited")
	}
	err = &SafetyRejection{Persona: PersonaWittyObserver, Reason: "spam"}
	if !errors.Is(err, ErrSafetyRejected) {
		t.Fatal("SafetyRejection should match ErrSafetyRejected")
	}
	if len(AllPersonas()) != 5 {
		t.Fatalf("expected 5 personas, got %d", len(AllPersonas()))
	}
	if PersonaTag("nope").Valid() {
		t.Fatal("unknown persona reported valid")
	}
}
