package similarity_test

import (
	"sync"
	"testing"

	"golang.org/x/text/language"

	"github.com/MrWong99/fluentforge/pkg/similarity"
)

func TestPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		reference string
		candidate string
		want      int
	}{
		{"identical after normalisation", "Hello, world!", "hello world", 100},
		{"total mismatch", "cat", "xyz", 0},
		{"partial match", "kitten", "sitting", 57},
		{"both empty", "", "", 100},
		{"both punctuation only", "?!", ".,", 100},
		{"one empty", "", "abc", 0},
		{"question mark ignored", "How are you?", "how are you", 100},
		{"single substitution", "good morning", "good mornink", 92},
		{"unicode letters counted as runes", "Grüße", "grüsse", 67},
		{"apostrophe kept", "it's fine", "its fine", 89},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := similarity.Percent(tc.reference, tc.candidate); got != tc.want {
				t.Errorf("Percent(%q, %q) = %d, want %d", tc.reference, tc.candidate, got, tc.want)
			}
		})
	}
}

func TestPercent_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"kitten", "sitting"},
		{"The quick brown fox.", "the quick brown box"},
		{"", "a"},
	}
	for _, p := range pairs {
		if a, b := similarity.Percent(p[0], p[1]), similarity.Percent(p[1], p[0]); a != b {
			t.Errorf("Percent(%q,%q)=%d but Percent(%q,%q)=%d", p[0], p[1], a, p[1], p[0], b)
		}
	}
}

func TestDistance(t *testing.T) {
	t.Parallel()

	if got := similarity.Distance("kitten", "sitting"); got != 3 {
		t.Errorf("Distance(kitten, sitting) = %d, want 3", got)
	}
	if got := similarity.Distance("Hello, World!", "hello world"); got != 0 {
		t.Errorf("Distance after normalisation = %d, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := similarity.Normalize("Well, WHAT now?!"); got != "well what now" {
		t.Errorf("Normalize = %q, want %q", got, "well what now")
	}
	if got := similarity.Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q, want empty", got)
	}
}

func TestScorer_WithLanguage(t *testing.T) {
	t.Parallel()

	tr := similarity.New(similarity.WithLanguage(language.Turkish))
	if got := tr.Normalize("ISTANBUL"); got != "ıstanbul" {
		t.Errorf("Turkish Normalize = %q, want %q", got, "ıstanbul")
	}
	if got := similarity.Normalize("ISTANBUL"); got != "istanbul" {
		t.Errorf("root Normalize = %q, want %q", got, "istanbul")
	}
}

func TestScorer_ConcurrentUse(t *testing.T) {
	t.Parallel()

	s := similarity.New()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if got := s.Percent("Kitten!", "sitting"); got != 57 {
					t.Errorf("Percent = %d, want 57", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
