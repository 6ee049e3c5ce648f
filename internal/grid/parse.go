package grid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/park285/matchmatrix-bot/internal/matrix"
	"github.com/park285/matchmatrix-bot/internal/outcome"
)

// LegendSymbols is the number of symbol tokens in the legend message.
const LegendSymbols = 6

var (
	ErrNoParticipants        = errors.New("no participants to decode")
	ErrInsufficientSymbols   = errors.New("grid has fewer symbols than cells")
	ErrUnexpectedSymbolCount = errors.New("unexpected number of symbols after the grid")
)

var tokenRE = func() *regexp.Regexp {
	syms := outcome.Symbols()
	for i, s := range syms {
		syms[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(strings.Join(syms, "|"))
}()

// Decoded is a matrix read back from rendered blocks.
type Decoded struct {
	Title  string
	Matrix *matrix.Matrix
	// Leftover counts symbol tokens found after the last grid cell: 0 or
	// LegendSymbols.
	Leftover int
}

// LegendMissing reports whether the text ended without a legend message.
func (d *Decoded) LegendMissing() bool { return d.Leftover == 0 }

// CountSymbols returns how many grid symbol tokens text contains.
func CountSymbols(text string) int {
	return len(tokenRE.FindAllStringIndex(text, -1))
}

// HasSymbols reports whether text contains at least one grid symbol token.
func HasSymbols(text string) bool {
	return tokenRE.MatchString(text)
}

// Parse reads the matrix back out of the joined blocks of a previous Render.
// participants must be in the order used at render time. The header line is
// taken as the title and not scanned.
func Parse(text string, participants []matrix.Participant) (*Decoded, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	title, body := splitHeader(text)
	locs := tokenRE.FindAllStringIndex(body, -1)
	need := len(participants) * len(participants)
	if len(locs) < need {
		return nil, fmt.Errorf("%w: found %d, need %d", ErrInsufficientSymbols, len(locs), need)
	}

	type key struct{ x, y string }
	cells := make(map[key]outcome.Outcome, need)
	var suppressed []string
	k := 0
	for _, y := range participants {
		for _, x := range participants {
			loc := locs[k]
			cells[key{x.ID, y.ID}] = outcome.FromText(body[loc[0]:loc[1]])
			k++
		}
		end := len(body)
		if k < len(locs) {
			end = locs[k][0]
		}
		if strings.Contains(body[locs[k-1][1]:end], RowName(y.Name)+SuppressedMarker) {
			suppressed = append(suppressed, y.ID)
		}
	}

	leftover := len(locs) - need
	if leftover != 0 && leftover != LegendSymbols {
		return nil, fmt.Errorf("%w: %d symbols left over, want 0 or %d", ErrUnexpectedSymbolCount, leftover, LegendSymbols)
	}

	m, err := matrix.FromTable(participants, func(x, y string) outcome.Outcome {
		return cells[key{x, y}]
	}, suppressed)
	if err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	return &Decoded{Title: title, Matrix: m, Leftover: leftover}, nil
}

func splitHeader(text string) (title, body string) {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i]), text[i+1:]
	}
	return strings.TrimSpace(text), ""
}
