// Package recovery locates a previously posted matrix inside raw chat history:
// the intro message first, then the grid blocks that follow it.
package recovery

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/grid"
)

var (
	ErrIntroNotFound = errors.New("no intro message found in recent history")
	ErrNoMentions    = errors.New("intro message mentions no players")
	ErrMissingBlocks = errors.New("fewer grid blocks than expected after the intro")
	ErrLegendCount   = errors.New("unexpected number of legend symbols")
)

var (
	introRE      = regexp.MustCompile(`^(.*) Report your results here using the command /([^ ]+) or /result`)
	mentionRE    = regexp.MustCompile(`<@!?(\d+)>`)
	colonTokenRE = regexp.MustCompile(`:[A-Za-z0-9_+\-]+:`)
)

// IntroText is the first message of a matrix: a mention of every player, then
// the reporting instructions. FindIntro parses it back.
func IntroText(userIDs []string, shortname string) string {
	var b strings.Builder
	for _, id := range userIDs {
		b.WriteString(chat.Mention(id))
		b.WriteByte(' ')
	}
	b.WriteString(" Report your results here using the command /")
	b.WriteString(shortname)
	b.WriteString(" or /result")
	return b.String()
}

// Intro is a matched intro message.
type Intro struct {
	// Index is the position in the newest-first history slice.
	Index     int
	Handle    chat.BlockHandle
	UserIDs   []string
	Shortname string
}

// FindIntro returns the most recent bot-authored intro in history (newest first).
func FindIntro(history []chat.HistoryEntry) (Intro, error) {
	for i, e := range history {
		if !e.FromBot {
			continue
		}
		m := introRE.FindStringSubmatch(e.Text)
		if m == nil {
			continue
		}
		var ids []string
		for _, field := range strings.Fields(m[1]) {
			if mm := mentionRE.FindStringSubmatch(field); mm != nil {
				ids = append(ids, mm[1])
			}
		}
		if len(ids) == 0 {
			return Intro{}, ErrNoMentions
		}
		return Intro{Index: i, Handle: e.Handle, UserIDs: ids, Shortname: strings.ToLower(m[2])}, nil
	}
	return Intro{}, ErrIntroNotFound
}

// CollectBlocks returns the messages posted right after the intro, oldest
// first, for as long as they are bot-authored and look like grid output.
func CollectBlocks(history []chat.HistoryEntry, intro Intro) []chat.HistoryEntry {
	var out []chat.HistoryEntry
	for i := intro.Index - 1; i >= 0; i-- {
		e := history[i]
		if !e.FromBot || !LooksLikeBlock(e.Text) {
			break
		}
		out = append(out, e)
	}
	return out
}

// LooksLikeBlock reports whether CollectBlocks would take text for grid output.
func LooksLikeBlock(text string) bool {
	return colonTokenRE.MatchString(text) || strings.Contains(text, grid.ContinuationMarker)
}

// LegendAction says what has to happen to the legend message after a rebuild.
type LegendAction int

const (
	LegendPresent LegendAction = iota
	// LegendOverwrite: the block after the grid must be replaced by the legend.
	LegendOverwrite
	// LegendPost: no block is left to hold the legend; post a new one.
	LegendPost
)

// Layout splits the collected blocks into grid blocks and the legend slot.
type Layout struct {
	Grid   []chat.HistoryEntry
	Legend *chat.HistoryEntry
	Action LegendAction
}

// Arrange decides the layout of collected blocks for a grid of want blocks,
// given the symbols the decoder found after the last grid cell.
func Arrange(blocks []chat.HistoryEntry, want, leftover int) (Layout, error) {
	if len(blocks) < want {
		return Layout{}, fmt.Errorf("%w: found %d, want %d", ErrMissingBlocks, len(blocks), want)
	}
	l := Layout{Grid: blocks[:want]}
	if len(blocks) > want {
		legend := blocks[want]
		l.Legend = &legend
	}
	switch {
	case leftover == grid.LegendSymbols && l.Legend != nil:
		l.Action = LegendPresent
	case leftover == 0 && l.Legend != nil:
		l.Action = LegendOverwrite
	case leftover == 0:
		l.Action = LegendPost
	default:
		return Layout{}, fmt.Errorf("%w: %d", ErrLegendCount, leftover)
	}
	return l, nil
}
