// Package channel defines the outbound delivery abstraction. Each messaging
// surface provides an Adapter; the dialog manager stays channel-agnostic and
// renders payloads that adapters translate to their native message formats.
package channel

import (
	"context"

	"github.com/irislabs/iris/internal/models"
)

// Adapter delivers payloads to a channel-native recipient and resolves
// display names for report rendering.
type Adapter interface {
	// Send delivers one payload. Channels without native support for a
	// payload kind degrade it to text rather than failing.
	Send(ctx context.Context, recipientID string, payload models.Payload) error

	// DisplayName resolves the recipient's human-readable name. Adapters
	// return an empty string without error when the channel has no profile
	// lookup.
	DisplayName(ctx context.Context, recipientID string) (string, error)
}

// Registry maps channels to their adapters.
type Registry map[models.Channel]Adapter

// Get returns the adapter for a channel.
func (r Registry) Get(c models.Channel) (Adapter, error) {
	a, ok := r[c]
	if !ok {
		return nil, models.ErrNoAdapter
	}
	return a, nil
}
