// Package chattest provides an in-memory chat platform for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/park285/matchmatrix-bot/internal/chat"
)

var ErrInjected = errors.New("injected sink failure")

type message struct {
	id      string
	fromBot bool
	silent  bool
	text    string
}

// Sink records every location as an append-only list of messages.
type Sink struct {
	mu        sync.Mutex
	seq       int
	locations map[string][]*message
	names     map[string]string

	// FailPostAfter makes PostBlocks fail once this many texts have been
	// posted in a single call; negative disables.
	FailPostAfter int
	FailEdit      bool
	Edits         int
}

func New() *Sink {
	return &Sink{
		locations:     make(map[string][]*message),
		names:         make(map[string]string),
		FailPostAfter: -1,
	}
}

// SetName registers a display name for a user id.
func (s *Sink) SetName(userID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
}

// Say appends a user message.
func (s *Sink) Say(location, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(location, false, text)
}

func (s *Sink) append(location string, fromBot bool, text string) *message {
	s.seq++
	m := &message{id: fmt.Sprintf("m%d", s.seq), fromBot: fromBot, text: text}
	s.locations[location] = append(s.locations[location], m)
	return m
}

func (s *Sink) PostBlocks(_ context.Context, location string, texts []string) ([]chat.BlockHandle, error) {
	return s.post(location, texts, false)
}

// PostSilent posts like PostBlocks and marks the messages silent.
func (s *Sink) PostSilent(_ context.Context, location string, texts []string) ([]chat.BlockHandle, error) {
	return s.post(location, texts, true)
}

func (s *Sink) post(location string, texts []string, silent bool) ([]chat.BlockHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]chat.BlockHandle, 0, len(texts))
	for i, text := range texts {
		if s.FailPostAfter >= 0 && i >= s.FailPostAfter {
			return handles, ErrInjected
		}
		m := s.append(location, true, text)
		m.silent = silent
		handles = append(handles, chat.BlockHandle{Location: location, ID: m.id})
	}
	return handles, nil
}

func (s *Sink) EditBlock(_ context.Context, h chat.BlockHandle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailEdit {
		return ErrInjected
	}
	for _, m := range s.locations[h.Location] {
		if m.id == h.ID {
			m.text = text
			s.Edits++
			return nil
		}
	}
	return fmt.Errorf("message %s not found in %s", h.ID, h.Location)
}

func (s *Sink) FetchRecentHistory(_ context.Context, location string, max int) ([]chat.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.locations[location]
	out := make([]chat.HistoryEntry, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0 && len(out) < max; i-- {
		m := msgs[i]
		out = append(out, chat.HistoryEntry{
			Handle:  chat.BlockHandle{Location: location, ID: m.id},
			FromBot: m.fromBot,
			Text:    m.text,
		})
	}
	return out, nil
}

func (s *Sink) ResolveDisplayName(_ context.Context, _ string, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[userID]
	if !ok {
		return "", chat.ErrNotAMember
	}
	return name, nil
}

// Texts returns the current text of every message in location, oldest first.
func (s *Sink) Texts(location string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.locations[location]))
	for _, m := range s.locations[location] {
		out = append(out, m.text)
	}
	return out
}

// SilentTexts returns the texts in location that were posted silently.
func (s *Sink) SilentTexts(location string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.locations[location] {
		if m.silent {
			out = append(out, m.text)
		}
	}
	return out
}

// Text returns the current text behind a handle.
func (s *Sink) Text(h chat.BlockHandle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.locations[h.Location] {
		if m.id == h.ID {
			return m.text
		}
	}
	return ""
}

// Threads wraps the sink so it also implements chat.ThreadOpener.
type Threads struct{ *Sink }

func (t Threads) OpenThread(_ context.Context, location, title string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	return fmt.Sprintf("%s/thread-%d", location, t.seq), nil
}
