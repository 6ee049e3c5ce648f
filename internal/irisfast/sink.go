package irisfast

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/transcript"
	"github.com/park285/matchmatrix-bot/internal/util"
)

// foldLines is the line count from which posted texts are folded behind
// KakaoTalk's '전체보기'.
const foldLines = 12

// Sink adapts KakaoTalk through Iris to chat.Sink and chat.Resolver.
// KakaoTalk has no message ids, edits or history API: every posted text gets
// a generated id and is mirrored into the transcript, which also serves
// history reads. An edit re-sends the text and rewrites the mirrored entry in
// place, so recovery still sees the message where it was first posted.
type Sink struct {
	out    Egress
	store  *transcript.Store
	logger *zap.Logger
	newID  func() string
}

var (
	_ chat.Sink     = (*Sink)(nil)
	_ chat.Resolver = (*Sink)(nil)
)

func NewSink(out Egress, store *transcript.Store, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{out: out, store: store, logger: logger, newID: uuid.NewString}
}

func (s *Sink) PostBlocks(ctx context.Context, room string, texts []string) ([]chat.BlockHandle, error) {
	handles := make([]chat.BlockHandle, 0, len(texts))
	for i, text := range texts {
		if err := s.out.SendText(ctx, room, s.display(ctx, room, text)); err != nil {
			return handles, fmt.Errorf("send block %d: %w", i, err)
		}
		id := s.newID()
		if err := s.store.Append(ctx, room, transcript.Entry{ID: id, FromBot: true, Text: text}); err != nil {
			return handles, fmt.Errorf("record block %d: %w", i, err)
		}
		handles = append(handles, chat.BlockHandle{Location: room, ID: id})
	}
	return handles, nil
}

func (s *Sink) EditBlock(ctx context.Context, h chat.BlockHandle, text string) error {
	if err := s.out.SendText(ctx, h.Location, s.display(ctx, h.Location, text)); err != nil {
		return fmt.Errorf("send edit: %w", err)
	}
	if err := s.store.Replace(ctx, h.Location, h.ID, text); err != nil {
		return fmt.Errorf("record edit: %w", err)
	}
	return nil
}

func (s *Sink) FetchRecentHistory(ctx context.Context, room string, max int) ([]chat.HistoryEntry, error) {
	entries, err := s.store.Recent(ctx, room, max)
	if err != nil {
		return nil, err
	}
	out := make([]chat.HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = chat.HistoryEntry{
			Handle:  chat.BlockHandle{Location: room, ID: e.ID},
			FromBot: e.FromBot,
			Text:    e.Text,
		}
	}
	return out, nil
}

func (s *Sink) ResolveDisplayName(ctx context.Context, room, userID string) (string, error) {
	name, err := s.store.Name(ctx, room, userID)
	if errors.Is(err, transcript.ErrUnknownUser) {
		return "", fmt.Errorf("%w: %s", chat.ErrNotAMember, userID)
	}
	return name, err
}

// Observe mirrors an incoming user message and remembers the sender's name.
func (s *Sink) Observe(ctx context.Context, msg *Message) {
	if msg == nil || msg.Room == "" {
		return
	}
	uid := msg.UserID()
	if err := s.store.RememberName(ctx, msg.Room, uid, msg.SenderName()); err != nil {
		s.logger.Warn("transcript_name_error", zap.String("room", msg.Room), zap.Error(err))
	}
	e := transcript.Entry{ID: s.newID(), UserID: uid, Text: msg.Msg}
	if err := s.store.Append(ctx, msg.Room, e); err != nil {
		s.logger.Warn("transcript_append_error", zap.String("room", msg.Room), zap.Error(err))
	}
}

// display is what KakaoTalk users see: mentions as names, long grids folded.
// The transcript keeps the raw text.
func (s *Sink) display(ctx context.Context, room, text string) string {
	text = util.HumanizeMentions(text, func(id string) (string, bool) {
		name, err := s.store.Name(ctx, room, id)
		return name, err == nil
	})
	return util.FoldLongText(text, foldLines)
}

// LookupUser maps a display name typed after '@' to a user id. KakaoTalk
// messages carry mentions as plain names.
func (s *Sink) LookupUser(ctx context.Context, room, name string) (string, bool) {
	id, err := s.store.FindUser(ctx, room, name)
	if err != nil {
		if !errors.Is(err, transcript.ErrUnknownUser) {
			s.logger.Debug("lookup_user_miss", zap.String("room", room), zap.String("name", name), zap.Error(err))
		}
		return "", false
	}
	return id, true
}
