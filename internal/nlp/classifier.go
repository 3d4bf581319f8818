// Package nlp classifies inbound messages into dialog intents.
package nlp

import (
	"context"

	"github.com/irislabs/iris/internal/models"
)

// Classifier maps a message to an intent from the closed intent set. The
// userKey scopes multi-turn classification context, so chained yes/no
// answers resolve against the user's previous intent.
type Classifier interface {
	// DetectIntent classifies text for the user. Implementations return
	// models.IntentFallback (with a nil error) when nothing matches, and an
	// error only when classification itself failed.
	DetectIntent(ctx context.Context, userKey, text string, lang models.Language) (models.Intent, error)

	// ClearContext discards the user's accumulated classification context.
	ClearContext(ctx context.Context, userKey string) error
}
