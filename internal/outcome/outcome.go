package outcome

import "strings"

// Outcome is one cell of a results matrix, seen from the row player's side.
type Outcome int

const (
	Unplayed Outcome = iota
	WinTwoZero
	WinTwoOne
	LossOneTwo
	LossZeroTwo
	// Unplayable marks the diagonal and any token that fails to parse.
	Unplayable
)

const (
	SymbolUnplayed    = ":cloud:"
	SymbolWinTwoZero  = ":full_moon:"
	SymbolWinTwoOne   = ":waning_gibbous_moon:"
	SymbolLossOneTwo  = ":waxing_crescent_moon:"
	SymbolLossZeroTwo = ":new_moon:"
	SymbolUnplayable  = ":black_small_square:"
)

var symbols = []string{
	SymbolUnplayed,
	SymbolWinTwoZero,
	SymbolWinTwoOne,
	SymbolLossOneTwo,
	SymbolLossZeroTwo,
	SymbolUnplayable,
}

// Symbols returns the six grid tokens, one per Outcome in declaration order.
func Symbols() []string {
	return append([]string(nil), symbols...)
}

// FromText maps a score ("2-1") or a grid symbol (":full_moon:") to an Outcome.
// Anything else is Unplayable.
func FromText(s string) Outcome {
	switch strings.TrimSpace(s) {
	case "2-0", SymbolWinTwoZero:
		return WinTwoZero
	case "2-1", SymbolWinTwoOne:
		return WinTwoOne
	case "1-2", SymbolLossOneTwo:
		return LossOneTwo
	case "0-2", SymbolLossZeroTwo:
		return LossZeroTwo
	case "0-0", SymbolUnplayed:
		return Unplayed
	default:
		return Unplayable
	}
}

// ParseScore is FromText restricted to score strings; ok is false for anything
// that is not one of the five reportable scores.
func ParseScore(s string) (Outcome, bool) {
	switch strings.TrimSpace(s) {
	case "2-0", "2-1", "1-2", "0-2", "0-0":
		return FromText(s), true
	default:
		return Unplayable, false
	}
}

func (o Outcome) Symbol() string {
	if o < Unplayed || o > Unplayable {
		return SymbolUnplayable
	}
	return symbols[o]
}

// Score returns the score string; Unplayable has none and yields "".
func (o Outcome) Score() string {
	switch o {
	case WinTwoZero:
		return "2-0"
	case WinTwoOne:
		return "2-1"
	case LossOneTwo:
		return "1-2"
	case LossZeroTwo:
		return "0-2"
	case Unplayed:
		return "0-0"
	default:
		return ""
	}
}

// Invert returns the same match seen from the opponent's side.
func (o Outcome) Invert() Outcome {
	switch o {
	case WinTwoZero:
		return LossZeroTwo
	case WinTwoOne:
		return LossOneTwo
	case LossOneTwo:
		return WinTwoOne
	case LossZeroTwo:
		return WinTwoZero
	default:
		return o
	}
}

func (o Outcome) IsWin() bool { return o == WinTwoZero || o == WinTwoOne }

func (o Outcome) IsPlayed() bool {
	switch o {
	case WinTwoZero, WinTwoOne, LossOneTwo, LossZeroTwo:
		return true
	default:
		return false
	}
}

func (o Outcome) String() string {
	switch o {
	case Unplayed:
		return "unplayed"
	case WinTwoZero:
		return "win 2-0"
	case WinTwoOne:
		return "win 2-1"
	case LossOneTwo:
		return "loss 1-2"
	case LossZeroTwo:
		return "loss 0-2"
	default:
		return "unplayable"
	}
}

// Legend is the explanation message posted after a grid. It uses every symbol
// exactly once, which the decoder relies on.
func Legend() string {
	return SymbolUnplayed + " match available\n" +
		SymbolWinTwoZero + " match won 2-0\n" +
		SymbolWinTwoOne + " match won 2-1\n" +
		SymbolLossOneTwo + " match lost 1-2\n" +
		SymbolLossZeroTwo + " match lost 0-2\n" +
		SymbolUnplayable + " cannot play yourself"
}
