package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/matchmatrix-bot/internal/matrix"
)

const (
	// BlockCapacity is the estimated size of one block, kept well below the
	// 2000 character hard limit of a chat message.
	BlockCapacity = 1800
	cellWeight    = 25

	SuppressedMarker = ":no_bell:"
	// ContinuationMarker closes the final block and fills blocks that carry
	// no rows, so an empty block is distinguishable from a truncated one.
	ContinuationMarker = "\u200b"

	placeholderGlyph = ":asterisk:"
)

var ErrRenderBlockMismatch = errors.New("grid does not fit the requested block count")

// BlockCount estimates how many blocks a grid of p participants needs.
func BlockCount(p int) int {
	return ((p+1)*(p+1)*cellWeight)/BlockCapacity + 1
}

type renderOptions struct {
	markers bool
}

type Option func(*renderOptions)

// WithoutMarkers omits the suppression markers, e.g. for a final snapshot.
func WithoutMarkers() Option {
	return func(o *renderOptions) { o.markers = false }
}

// Render writes m as exactly n text blocks. Rows are spread over the first
// n-1 blocks, ceil((p+1)/n) per block; rows that do not fit go to the final
// block together with the index row.
func Render(title string, m *matrix.Matrix, n int, opts ...Option) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d blocks requested", ErrRenderBlockMismatch, n)
	}
	ro := renderOptions{markers: true}
	for _, opt := range opts {
		opt(&ro)
	}

	ps := m.Participants()
	rows := make([]string, len(ps))
	for i, y := range ps {
		rows[i] = renderRow(m, ps, y, ro.markers)
	}
	header := sanitizeTitle(title)
	per := (len(ps) + 1 + n - 1) / n

	blocks := make([]string, 0, n)
	for i := 0; i < n-1; i++ {
		var lines []string
		if i == 0 {
			lines = append(lines, header)
		}
		lines = append(lines, rows[clamp(i*per, len(rows)):clamp((i+1)*per, len(rows))]...)
		if len(lines) == 0 {
			blocks = append(blocks, ContinuationMarker)
			continue
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	var last []string
	if n == 1 {
		last = append(last, header)
	}
	last = append(last, rows[clamp((n-1)*per, len(rows)):]...)
	last = append(last, indexRow(ps)+ContinuationMarker)
	blocks = append(blocks, strings.Join(last, "\n"))

	if len(blocks) != n {
		return nil, fmt.Errorf("%w: produced %d blocks, want %d", ErrRenderBlockMismatch, len(blocks), n)
	}
	return blocks, nil
}

// Join concatenates blocks in order, the input Parse expects.
func Join(blocks []string) string {
	return strings.Join(blocks, "\n")
}

func renderRow(m *matrix.Matrix, ps []matrix.Participant, y matrix.Participant, markers bool) string {
	var b strings.Builder
	for _, x := range ps {
		b.WriteString(m.At(x.ID, y.ID).Symbol())
		b.WriteByte(' ')
	}
	wins, played := m.Summary(y.ID)
	fmt.Fprintf(&b, "%d/%d %s", wins, played, RowName(y.Name))
	if markers && m.Suppressed(y.ID) {
		b.WriteString(SuppressedMarker)
	}
	return b.String()
}

// nameReplacer swaps the colon for RATIO (U+2236), so a name can never form
// a symbol token or a suppression marker.
var nameReplacer = strings.NewReplacer(":", "\u2236", "\r", " ", "\n", " ")

// RowName is name as it appears in a grid row.
func RowName(name string) string {
	return nameReplacer.Replace(name)
}

func indexRow(ps []matrix.Participant) string {
	var b strings.Builder
	for _, p := range ps {
		b.WriteString(IndexGlyph(p.Name))
		b.WriteByte(' ')
	}
	return b.String()
}

// IndexGlyph is the legend glyph for a name: its first ASCII letter or digit,
// lowercased, as a regional indicator or number emoji.
func IndexGlyph(name string) string {
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z':
			return ":regional_indicator_" + string(r) + ":"
		case r >= '0' && r <= '9':
			return ":number_" + string(r) + ":"
		}
	}
	return placeholderGlyph
}

func sanitizeTitle(title string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(title))
}

func clamp(i, n int) int {
	if i > n {
		return n
	}
	return i
}
