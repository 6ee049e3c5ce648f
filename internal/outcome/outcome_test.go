package outcome

import (
	"strings"
	"testing"
)

var all = []Outcome{Unplayed, WinTwoZero, WinTwoOne, LossOneTwo, LossZeroTwo, Unplayable}

func TestInvertIsInvolution(t *testing.T) {
	for _, o := range all {
		if got := o.Invert().Invert(); got != o {
			t.Fatalf("invert(invert(%v)) = %v", o, got)
		}
	}
}

func TestInvertSwapsWinsAndLosses(t *testing.T) {
	cases := map[Outcome]Outcome{
		WinTwoZero:  LossZeroTwo,
		WinTwoOne:   LossOneTwo,
		LossOneTwo:  WinTwoOne,
		LossZeroTwo: WinTwoZero,
		Unplayed:    Unplayed,
		Unplayable:  Unplayable,
	}
	for in, want := range cases {
		if got := in.Invert(); got != want {
			t.Fatalf("invert(%v) = %v, want %v", in, got, want)
		}
		if in.IsWin() == in.Invert().IsWin() && in.IsPlayed() {
			t.Fatalf("%v and its inverse cannot both win or both lose", in)
		}
	}
}

func TestFromTextScoresAndSymbols(t *testing.T) {
	for _, o := range all {
		if back := FromText(o.Symbol()); back != o {
			t.Fatalf("FromText(%q) = %v, want %v", o.Symbol(), back, o)
		}
		if o == Unplayable {
			continue
		}
		if back := FromText(o.Score()); back != o {
			t.Fatalf("FromText(%q) = %v, want %v", o.Score(), back, o)
		}
	}
	for _, junk := range []string{"", "3-0", ":sun:", "win", "2:0"} {
		if FromText(junk) != Unplayable {
			t.Fatalf("FromText(%q) should be Unplayable", junk)
		}
	}
}

func TestParseScoreRejectsSymbols(t *testing.T) {
	if _, ok := ParseScore(":full_moon:"); ok {
		t.Fatalf("symbols are not reportable scores")
	}
	if o, ok := ParseScore(" 2-1 "); !ok || o != WinTwoOne {
		t.Fatalf("ParseScore(2-1) = %v,%v", o, ok)
	}
}

func TestSummaryPredicates(t *testing.T) {
	wins, played := 0, 0
	for _, o := range all {
		if o.IsWin() {
			wins++
		}
		if o.IsPlayed() {
			played++
		}
	}
	if wins != 2 || played != 4 {
		t.Fatalf("wins=%d played=%d", wins, played)
	}
}

func TestLegendUsesEverySymbolOnce(t *testing.T) {
	legend := Legend()
	for _, s := range Symbols() {
		if n := strings.Count(legend, s); n != 1 {
			t.Fatalf("legend contains %q %d times", s, n)
		}
	}
}
