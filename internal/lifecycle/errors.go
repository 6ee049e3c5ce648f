package lifecycle

import (
	"errors"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/grid"
	"github.com/park285/matchmatrix-bot/internal/matrix"
	"github.com/park285/matchmatrix-bot/internal/recovery"
)

var (
	ErrDraftInProgress     = errors.New("a matrix is already being set up in this group")
	ErrInvalidShortname    = errors.New("shortname must be 1-32 letters, digits, - or _")
	ErrReservedShortname   = errors.New("shortname collides with a command")
	ErrShortnameInUse      = errors.New("a matrix with this shortname is already running")
	ErrInvalidTitle        = errors.New("title must not be empty")
	ErrNoDraft             = errors.New("no matrix is being set up in this group")
	ErrNoParticipants      = errors.New("the matrix has no participants")
	ErrNoTournament        = errors.New("no such matrix")
	ErrAmbiguousTournament = errors.New("more than one matrix runs here; name it explicitly")
	ErrInvalidScore        = errors.New("score must be one of 2-0, 2-1, 1-2, 0-2, 0-0")
	// ErrGridStale is returned together with the sink error when a change was
	// recorded but the posted grid could not be brought up to date.
	ErrGridStale = errors.New("result recorded but the grid is out of date")
)

type Kind int

const (
	KindExternal Kind = iota
	KindValidation
	KindNotFound
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDecode:
		return "decode"
	default:
		return "external"
	}
}

var (
	validationErrs = []error{
		ErrDraftInProgress, ErrInvalidShortname, ErrReservedShortname, ErrShortnameInUse,
		ErrInvalidTitle, ErrNoParticipants, ErrAmbiguousTournament, ErrInvalidScore,
		matrix.ErrSelfMatch, matrix.ErrUnknownParticipant, matrix.ErrDuplicateParticipant,
		chat.ErrNotAMember,
	}
	notFoundErrs = []error{ErrNoDraft, ErrNoTournament, recovery.ErrIntroNotFound}
	decodeErrs   = []error{
		grid.ErrNoParticipants, grid.ErrInsufficientSymbols, grid.ErrUnexpectedSymbolCount,
		grid.ErrRenderBlockMismatch, matrix.ErrInconsistentTable,
		recovery.ErrMissingBlocks, recovery.ErrLegendCount, recovery.ErrNoMentions,
	}
)

// KindOf classifies err for reply wording and logging. Anything unrecognised
// is a platform failure.
func KindOf(err error) Kind {
	if err == nil || errors.Is(err, ErrGridStale) {
		return KindExternal
	}
	for _, kind := range []struct {
		k    Kind
		errs []error
	}{{KindValidation, validationErrs}, {KindNotFound, notFoundErrs}, {KindDecode, decodeErrs}} {
		for _, target := range kind.errs {
			if errors.Is(err, target) {
				return kind.k
			}
		}
	}
	return KindExternal
}
