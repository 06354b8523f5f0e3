// Package channel abstracts the delivery target for the bot's single
// status message.
//
// A Channel owns no state: it sends, edits and deletes by reference. The
// notify engine is the only writer and keeps at most one outstanding Ref.
package channel

import (
	"context"
	"errors"
)

// ErrMessageGone marks an edit/delete target that no longer exists on the
// remote side. Callers treat it as already-resolved, never as a failure.
var ErrMessageGone = errors.New("message gone")

// Ref identifies a previously sent message. Both fields are transport
// specific strings (Discord snowflakes, stringified Telegram IDs).
type Ref struct {
	ChannelID string
	MessageID string
}

type Channel interface {
	Send(ctx context.Context, text string) (Ref, error)
	Edit(ctx context.Context, ref Ref, text string) error
	Delete(ctx context.Context, ref Ref) error
}
