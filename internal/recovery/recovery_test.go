package recovery

import (
	"errors"
	"fmt"
	"testing"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/grid"
	"github.com/park285/matchmatrix-bot/internal/outcome"
)

// history builds a newest-first slice from messages given oldest first.
func history(msgs ...chat.HistoryEntry) []chat.HistoryEntry {
	out := make([]chat.HistoryEntry, len(msgs))
	for i, m := range msgs {
		m.Handle = chat.BlockHandle{Location: "room", ID: fmt.Sprintf("m%d", i)}
		out[len(msgs)-1-i] = m
	}
	return out
}

func bot(text string) chat.HistoryEntry  { return chat.HistoryEntry{FromBot: true, Text: text} }
func user(text string) chat.HistoryEntry { return chat.HistoryEntry{Text: text} }

func TestIntroRoundTrip(t *testing.T) {
	text := IntroText([]string{"11", "22", "33"}, "spring")
	want := "<@11> <@22> <@33>  Report your results here using the command /spring or /result"
	if text != want {
		t.Fatalf("IntroText = %q", text)
	}
	h := history(user("hello"), bot(text), bot(":cloud:"))
	intro, err := FindIntro(h)
	if err != nil {
		t.Fatalf("FindIntro: %v", err)
	}
	if intro.Shortname != "spring" || len(intro.UserIDs) != 3 || intro.UserIDs[2] != "33" {
		t.Fatalf("intro = %+v", intro)
	}
	if intro.Index != 1 || intro.Handle.ID != "m1" {
		t.Fatalf("intro position = %d %s", intro.Index, intro.Handle.ID)
	}
}

func TestFindIntroPicksMostRecent(t *testing.T) {
	h := history(
		bot(IntroText([]string{"1"}, "old")),
		bot(IntroText([]string{"2"}, "new")),
	)
	intro, err := FindIntro(h)
	if err != nil || intro.Shortname != "new" {
		t.Fatalf("got %+v, %v", intro, err)
	}
}

func TestFindIntroIgnoresUserMessages(t *testing.T) {
	h := history(user(IntroText([]string{"1"}, "fake")))
	if _, err := FindIntro(h); !errors.Is(err, ErrIntroNotFound) {
		t.Fatalf("expected ErrIntroNotFound, got %v", err)
	}
	h = history(bot(" Report your results here using the command /x or /result"))
	if _, err := FindIntro(h); !errors.Is(err, ErrNoMentions) {
		t.Fatalf("expected ErrNoMentions, got %v", err)
	}
}

func TestFindIntroAcceptsNicknameMentions(t *testing.T) {
	h := history(bot("<@!7> <@8>  Report your results here using the command /Cup or /result"))
	intro, err := FindIntro(h)
	if err != nil {
		t.Fatalf("FindIntro: %v", err)
	}
	if intro.UserIDs[0] != "7" || intro.Shortname != "cup" {
		t.Fatalf("intro = %+v", intro)
	}
}

func TestCollectBlocksStopsAtForeignMessage(t *testing.T) {
	h := history(
		bot(IntroText([]string{"1", "2"}, "s")),
		bot("Title\n:black_small_square: :cloud: 0/0 A"),
		bot(grid.ContinuationMarker),
		bot(":cloud: :black_small_square: 0/0 B\n:regional_indicator_a: "+grid.ContinuationMarker),
		bot(outcome.Legend()),
		user(":full_moon: nice"),
		bot(":cloud:"),
	)
	intro, err := FindIntro(h)
	if err != nil {
		t.Fatalf("FindIntro: %v", err)
	}
	blocks := CollectBlocks(h, intro)
	if len(blocks) != 4 {
		t.Fatalf("collected %d blocks, want 4", len(blocks))
	}
	if blocks[0].Handle.ID != "m1" || blocks[3].Handle.ID != "m4" {
		t.Fatalf("blocks out of order: %s..%s", blocks[0].Handle.ID, blocks[3].Handle.ID)
	}
}

func TestCollectBlocksStopsAtPlainBotText(t *testing.T) {
	h := history(
		bot(IntroText([]string{"1"}, "s")),
		bot("A reports A 2-0 B"),
		bot(":cloud:"),
	)
	intro, _ := FindIntro(h)
	if blocks := CollectBlocks(h, intro); len(blocks) != 0 {
		t.Fatalf("collected %d blocks, want 0", len(blocks))
	}
}

func TestArrange(t *testing.T) {
	three := []chat.HistoryEntry{bot("a"), bot("b"), bot("c")}
	cases := []struct {
		name     string
		blocks   []chat.HistoryEntry
		want     int
		leftover int
		action   LegendAction
		err      error
	}{
		{name: "legend present", blocks: three, want: 2, leftover: 6, action: LegendPresent},
		{name: "legend overwritten", blocks: three, want: 2, leftover: 0, action: LegendOverwrite},
		{name: "legend posted", blocks: three, want: 3, leftover: 0, action: LegendPost},
		{name: "missing blocks", blocks: three, want: 4, leftover: 0, err: ErrMissingBlocks},
		{name: "six symbols without a slot", blocks: three, want: 3, leftover: 6, err: ErrLegendCount},
		{name: "partial legend", blocks: three, want: 2, leftover: 5, err: ErrLegendCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := Arrange(tc.blocks, tc.want, tc.leftover)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Arrange: %v", err)
			}
			if len(l.Grid) != tc.want || l.Action != tc.action {
				t.Fatalf("layout = %d grid blocks, action %d", len(l.Grid), l.Action)
			}
			if tc.action != LegendPost && (l.Legend == nil || l.Legend.Text != three[tc.want].Text) {
				t.Fatalf("legend slot = %+v", l.Legend)
			}
		})
	}
}
