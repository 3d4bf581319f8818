package language

import (
	"context"
	"errors"
	"testing"

	"github.com/irislabs/iris/internal/models"
)

type fakeDetector struct {
	lang  models.Language
	err   error
	calls int
}

func (f *fakeDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	f.calls++
	return f.lang, f.err
}

func TestNeutralWordsKeepLastLanguage(t *testing.T) {
	det := &fakeDetector{lang: models.LangEnglish}
	r := NewResolver(det)

	for _, word := range []string{"bot", "chatbot", "iris", "chat bot", "hotel", "no", "  NO  ", "Hotel"} {
		got := r.Resolve(context.Background(), word, models.LangEnglish, "")
		if got != models.LangEnglish {
			t.Errorf("Resolve(%q) with last=en = %q, want en", word, got)
		}
	}
	if det.calls != 0 {
		t.Errorf("neutral words must not hit the detector, got %d calls", det.calls)
	}
}

func TestSpanishMarkersShortCircuit(t *testing.T) {
	det := &fakeDetector{lang: models.LangEnglish}
	r := NewResolver(det)

	for _, word := range []string{"oy", "oye", "ey", "si", "Si"} {
		got := r.Resolve(context.Background(), word, models.LangEnglish, "")
		if got != models.LangSpanish {
			t.Errorf("Resolve(%q) = %q, want es", word, got)
		}
	}
	if det.calls != 0 {
		t.Errorf("marker words must not hit the detector, got %d calls", det.calls)
	}
}

func TestDetectorResult(t *testing.T) {
	r := NewResolver(&fakeDetector{lang: models.LangEnglish})
	if got := r.Resolve(context.Background(), "I need to change my flight", models.LangSpanish, ""); got != models.LangEnglish {
		t.Errorf("Resolve = %q, want en", got)
	}
}

func TestDetectorFailureFallsBack(t *testing.T) {
	r := NewResolver(&fakeDetector{err: errors.New("service down")})

	// Sticky last language wins.
	if got := r.Resolve(context.Background(), "some message", models.LangEnglish, "es_ES"); got != models.LangEnglish {
		t.Errorf("fallback with last=en = %q, want en", got)
	}
	// Otherwise Spanish; the locale hint does not apply here.
	if got := r.Resolve(context.Background(), "some message", models.LangUnknown, "en_US"); got != models.LangSpanish {
		t.Errorf("fallback with no last language = %q, want es", got)
	}
	if got := r.Resolve(context.Background(), "some message", models.LangUnknown, "fr_FR"); got != models.LangSpanish {
		t.Errorf("final fallback = %q, want es", got)
	}
}

func TestLocaleHintOnlyAppliesToNeutralWords(t *testing.T) {
	det := &fakeDetector{err: errors.New("service down")}
	r := NewResolver(det)

	// A neutral word from a user with no history takes the channel locale.
	if got := r.Resolve(context.Background(), "hotel", models.LangUnknown, "en_US"); got != models.LangEnglish {
		t.Errorf("neutral word with locale en_US = %q, want en", got)
	}
	// An undetectable free-text message from the same user does not.
	if got := r.Resolve(context.Background(), "multi word message", models.LangUnknown, "en_US"); got != models.LangSpanish {
		t.Errorf("undetected text with locale en_US = %q, want es", got)
	}
}

func TestNilDetector(t *testing.T) {
	r := NewResolver(nil)
	if got := r.Resolve(context.Background(), "hello there", models.LangUnknown, ""); got != models.LangSpanish {
		t.Errorf("Resolve without detector = %q, want es", got)
	}
}

func TestNormalizeLocale(t *testing.T) {
	cases := []struct {
		locale string
		want   models.Language
	}{
		{"en_US", models.LangEnglish},
		{"en-GB", models.LangEnglish},
		{"EN", models.LangEnglish},
		{"es_MX", models.LangSpanish},
		{"es", models.LangSpanish},
		{"fr_FR", models.LangUnknown},
		{"", models.LangUnknown},
	}
	for _, c := range cases {
		if got := NormalizeLocale(c.locale); got != c.want {
			t.Errorf("NormalizeLocale(%q) = %q, want %q", c.locale, got, c.want)
		}
	}
}
