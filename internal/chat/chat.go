// Package chat declares what the bot needs from a chat platform: posting and
// editing text blocks, reading recent history, and resolving display names.
package chat

import (
	"context"
	"errors"
)

var ErrNotAMember = errors.New("user is not a member of this chat")

// BlockHandle points at one posted message.
type BlockHandle struct {
	Location string
	ID       string
}

// HistoryEntry is one message from a location's recent history.
type HistoryEntry struct {
	Handle  BlockHandle
	FromBot bool
	Text    string
}

type Sink interface {
	// PostBlocks posts texts in order and returns one handle per posted text.
	// On failure the handles of the texts posted so far are returned with the error.
	PostBlocks(ctx context.Context, location string, texts []string) ([]BlockHandle, error)
	EditBlock(ctx context.Context, h BlockHandle, text string) error
	// FetchRecentHistory returns up to max messages, newest first.
	FetchRecentHistory(ctx context.Context, location string, max int) ([]HistoryEntry, error)
}

type Resolver interface {
	ResolveDisplayName(ctx context.Context, location, userID string) (string, error)
}

// ThreadOpener is implemented by sinks that can open a sub-thread for a new
// matrix. Sinks without threads post into the location itself.
type ThreadOpener interface {
	OpenThread(ctx context.Context, location, title string) (string, error)
}

// SilentPoster is implemented by sinks that can post without a push
// notification for the users a text mentions.
type SilentPoster interface {
	PostSilent(ctx context.Context, location string, texts []string) ([]BlockHandle, error)
}

// Mention renders the platform-neutral mention token for a user id.
func Mention(userID string) string { return "<@" + userID + ">" }
