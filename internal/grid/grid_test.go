package grid

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/park285/matchmatrix-bot/internal/matrix"
	"github.com/park285/matchmatrix-bot/internal/outcome"
)

func roster(names ...string) []matrix.Participant {
	out := make([]matrix.Participant, len(names))
	for i, n := range names {
		out[i] = matrix.Participant{ID: strconv.Itoa(100 + i), Name: n}
	}
	return out
}

func numbered(n int) []matrix.Participant {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("player%02d", i)
	}
	return roster(names...)
}

func mustRender(t *testing.T, title string, m *matrix.Matrix, n int, opts ...Option) []string {
	t.Helper()
	blocks, err := Render(title, m, n, opts...)
	if err != nil {
		t.Fatalf("Render(n=%d): %v", n, err)
	}
	if len(blocks) != n {
		t.Fatalf("Render produced %d blocks, want %d", len(blocks), n)
	}
	return blocks
}

func TestRenderFreshTwoPlayers(t *testing.T) {
	m, _ := matrix.New(roster("Alice", "Bob"))
	blocks := mustRender(t, "Spring League", m, 1)
	want := "Spring League\n" +
		":black_small_square: :cloud: 0/0 Alice\n" +
		":cloud: :black_small_square: 0/0 Bob\n" +
		":regional_indicator_a: :regional_indicator_b: " + ContinuationMarker
	if blocks[0] != want {
		t.Fatalf("unexpected grid:\n%q\nwant\n%q", blocks[0], want)
	}
}

func TestRenderSplitsRowsAcrossBlocks(t *testing.T) {
	m, _ := matrix.New(roster("Ann", "Ben", "Cat", "Dan"))

	one := mustRender(t, "Cup", m, 1)
	lines := strings.Split(one[0], "\n")
	if len(lines) != 6 {
		t.Fatalf("single block should hold header, 4 rows, index row; got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[5], ":regional_indicator_a:") {
		t.Fatalf("index row missing: %q", lines[5])
	}

	two := mustRender(t, "Cup", m, 2)
	first := strings.Split(two[0], "\n")
	second := strings.Split(two[1], "\n")
	if first[0] != "Cup" || len(first) != 4 {
		t.Fatalf("first block = %q", two[0])
	}
	if len(second) != 2 || !strings.HasSuffix(second[0], "Dan") {
		t.Fatalf("second block = %q", two[1])
	}
	if strings.Contains(two[0], ":regional_indicator_") {
		t.Fatalf("index row must only appear in the final block")
	}
	if !strings.HasSuffix(two[1], ContinuationMarker) {
		t.Fatalf("final block must end with the continuation marker")
	}
}

func TestRenderFillsSurplusBlocksWithMarker(t *testing.T) {
	m, _ := matrix.New(roster("Solo"))
	blocks := mustRender(t, "Tiny", m, 3)
	if blocks[1] != ContinuationMarker {
		t.Fatalf("middle block = %q", blocks[1])
	}
	d, err := Parse(Join(blocks), m.Participants())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !d.Matrix.Equal(m) {
		t.Fatalf("round trip failed")
	}
}

func TestRenderRejectsZeroBlocks(t *testing.T) {
	m, _ := matrix.New(roster("A", "B"))
	if _, err := Render("x", m, 0); !errors.Is(err, ErrRenderBlockMismatch) {
		t.Fatalf("expected ErrRenderBlockMismatch, got %v", err)
	}
}

func TestBlockCount(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 7: 1, 8: 2, 11: 3, 19: 6, 30: 14}
	for p, want := range cases {
		if got := BlockCount(p); got != want {
			t.Fatalf("BlockCount(%d) = %d, want %d", p, got, want)
		}
	}
}

func randomMatrix(t *testing.T, r *rand.Rand, ps []matrix.Participant) *matrix.Matrix {
	t.Helper()
	m, err := matrix.New(ps)
	if err != nil {
		t.Fatalf("matrix.New: %v", err)
	}
	scores := []outcome.Outcome{outcome.WinTwoZero, outcome.WinTwoOne, outcome.LossOneTwo, outcome.LossZeroTwo, outcome.Unplayed}
	for i := 0; i < len(ps)*2; i++ {
		a, b := ps[r.IntN(len(ps))], ps[r.IntN(len(ps))]
		if a.ID == b.ID {
			continue
		}
		if err := m.Report(a.ID, b.ID, scores[r.IntN(len(scores))]); err != nil {
			t.Fatalf("Report: %v", err)
		}
	}
	for _, p := range ps {
		if r.IntN(4) == 0 {
			_, _ = m.SetVisible(p.ID, false)
		}
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for p := 1; p <= 24; p++ {
		ps := numbered(p)
		m := randomMatrix(t, r, ps)
		counts := []int{BlockCount(p), 1, 2, p + 2}
		for _, n := range counts {
			blocks := mustRender(t, "Season "+strconv.Itoa(p), m, n)
			d, err := Parse(Join(blocks), ps)
			if err != nil {
				t.Fatalf("p=%d n=%d Parse: %v", p, n, err)
			}
			if !d.Matrix.Equal(m) {
				t.Fatalf("p=%d n=%d: decoded matrix differs", p, n)
			}
			if d.Title != "Season "+strconv.Itoa(p) {
				t.Fatalf("title = %q", d.Title)
			}
			if !d.LegendMissing() {
				t.Fatalf("grid alone has no legend")
			}
		}
	}
}

func TestRoundTripWithLegend(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	ps := numbered(9)
	m := randomMatrix(t, r, ps)
	blocks := mustRender(t, "With legend", m, BlockCount(9))
	d, err := Parse(Join(append(blocks, outcome.Legend())), ps)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Leftover != LegendSymbols || d.LegendMissing() {
		t.Fatalf("leftover = %d", d.Leftover)
	}
	if !d.Matrix.Equal(m) {
		t.Fatalf("decoded matrix differs")
	}
}

func TestPrintedSummaryMatchesTable(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	ps := numbered(6)
	m := randomMatrix(t, r, ps)
	blocks := mustRender(t, "Summary", m, 1)
	rows := strings.Split(blocks[0], "\n")[1 : 1+len(ps)]
	for i, p := range ps {
		wins, played := m.Summary(p.ID)
		want := fmt.Sprintf("%d/%d %s", wins, played, p.Name)
		if !strings.Contains(rows[i], want) {
			t.Fatalf("row %d = %q, want summary %q", i, rows[i], want)
		}
	}
}

func TestSuppressionMarkerFollowsVisibility(t *testing.T) {
	ps := roster("Al", "Sal")
	m, _ := matrix.New(ps)
	_, _ = m.SetVisible(ps[1].ID, false)

	blocks := mustRender(t, "Bells", m, 1)
	if !strings.Contains(blocks[0], "Sal"+SuppressedMarker) {
		t.Fatalf("marker missing: %q", blocks[0])
	}
	d, err := Parse(Join(blocks), ps)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Matrix.Suppressed(ps[0].ID) || !d.Matrix.Suppressed(ps[1].ID) {
		t.Fatalf("suppression decoded wrong")
	}

	if changed, _ := m.SetVisible(ps[1].ID, true); !changed {
		t.Fatalf("expected change")
	}
	blocks = mustRender(t, "Bells", m, 1)
	if strings.Contains(blocks[0], SuppressedMarker) {
		t.Fatalf("marker should disappear once visible")
	}

	_, _ = m.SetVisible(ps[0].ID, false)
	final := mustRender(t, "Bells", m, 1, WithoutMarkers())
	if strings.Contains(final[0], SuppressedMarker) {
		t.Fatalf("final snapshot must not carry markers")
	}
}

func TestParseRejectsPartialLegend(t *testing.T) {
	ps := roster("A", "B", "C")
	m, _ := matrix.New(ps)
	blocks := mustRender(t, "Legend", m, 1)
	partial := strings.Replace(outcome.Legend(), outcome.SymbolUnplayable, "", 1)
	_, err := Parse(Join(append(blocks, partial)), ps)
	if !errors.Is(err, ErrUnexpectedSymbolCount) {
		t.Fatalf("expected ErrUnexpectedSymbolCount, got %v", err)
	}
}

func TestParseRejectsTruncatedGrid(t *testing.T) {
	ps := numbered(10)
	m, _ := matrix.New(ps)
	blocks := mustRender(t, "Cut", m, BlockCount(10))
	_, err := Parse(Join(blocks[1:]), ps)
	if !errors.Is(err, ErrInsufficientSymbols) {
		t.Fatalf("expected ErrInsufficientSymbols, got %v", err)
	}
	if _, err := Parse("title only", nil); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}
}

func TestParseRejectsAsymmetricGrid(t *testing.T) {
	ps := roster("A", "B")
	text := "T\n" +
		":black_small_square: :full_moon: 1/1 A\n" +
		":full_moon: :black_small_square: 1/1 B\n"
	if _, err := Parse(text, ps); !errors.Is(err, matrix.ErrInconsistentTable) {
		t.Fatalf("expected ErrInconsistentTable, got %v", err)
	}
}

func TestTitleSymbolsAreIgnored(t *testing.T) {
	ps := roster("A", "B")
	m, _ := matrix.New(ps)
	blocks := mustRender(t, ":full_moon: night", m, 1)
	d, err := Parse(Join(blocks), ps)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Title != ":full_moon: night" || !d.Matrix.Equal(m) {
		t.Fatalf("title tokens leaked into the grid")
	}
}

func TestNamesWithSymbolsRoundTrip(t *testing.T) {
	ps := roster("Ann", "Moon :full_moon: fan", "Cat:no_bell:", ":cloud::cloud:")
	m, _ := matrix.New(ps)
	if err := m.Report(ps[1].ID, ps[0].ID, outcome.WinTwoOne); err != nil {
		t.Fatalf("Report: %v", err)
	}
	_, _ = m.SetVisible(ps[3].ID, false)
	for _, n := range []int{1, 2} {
		blocks := mustRender(t, "Moons", m, n)
		d, err := Parse(Join(append(blocks, outcome.Legend())), ps)
		if err != nil {
			t.Fatalf("n=%d Parse: %v", n, err)
		}
		if !d.Matrix.Equal(m) || d.Leftover != LegendSymbols {
			t.Fatalf("n=%d: decoded matrix differs", n)
		}
		if d.Matrix.Suppressed(ps[2].ID) || !d.Matrix.Suppressed(ps[3].ID) {
			t.Fatalf("n=%d: suppression decoded wrong", n)
		}
	}
	if got := RowName("Moon :full_moon: fan"); HasSymbols(got) || got != "Moon \u2236full_moon\u2236 fan" {
		t.Fatalf("RowName = %q", got)
	}
}

func TestIndexGlyph(t *testing.T) {
	cases := map[string]string{
		"Alice":  ":regional_indicator_a:",
		"9lives": ":number_9:",
		"Émile":  ":regional_indicator_m:",
		"__Zed":  ":regional_indicator_z:",
		"가나다":    ":asterisk:",
		"":       ":asterisk:",
	}
	for name, want := range cases {
		if got := IndexGlyph(name); got != want {
			t.Fatalf("IndexGlyph(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSymbolHelpers(t *testing.T) {
	if HasSymbols(":regional_indicator_a: :number_1:") {
		t.Fatalf("index glyphs are not grid symbols")
	}
	if CountSymbols(outcome.Legend()) != LegendSymbols {
		t.Fatalf("legend symbol count")
	}
}
