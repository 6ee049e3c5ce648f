// Package lifecycle owns the live matrices of every group: drafts being set
// up, running tournaments, and the chat messages each one is rendered into.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/grid"
	"github.com/park285/matchmatrix-bot/internal/matrix"
	"github.com/park285/matchmatrix-bot/internal/obslog"
	"github.com/park285/matchmatrix-bot/internal/outcome"
	"github.com/park285/matchmatrix-bot/internal/recovery"
)

const DefaultHistoryLimit = 100

var shortnameRE = regexp.MustCompile(`^[-_\p{L}\p{N}\p{Devanagari}\p{Thai}]{1,32}$`)

// Draft is a matrix being set up. At most one exists per group.
type Draft struct {
	Title        string
	Shortname    string
	Participants []matrix.Participant
}

// Tournament is a running matrix and the messages it is rendered into.
type Tournament struct {
	Shortname string
	Title     string
	Location  string
	Matrix    *matrix.Matrix
	Blocks    []chat.BlockHandle

	// rendered is the text last written to each block.
	rendered []string
	stale    bool
}

// Stale reports whether the posted grid lags behind the matrix.
func (t *Tournament) Stale() bool { return t.stale }

func (t *Tournament) snapshot() Tournament {
	return Tournament{
		Shortname: t.Shortname,
		Title:     t.Title,
		Location:  t.Location,
		Matrix:    t.Matrix.Clone(),
		Blocks:    append([]chat.BlockHandle(nil), t.Blocks...),
		stale:     t.stale,
	}
}

type group struct {
	mu          sync.Mutex
	draft       *Draft
	tournaments map[string]*Tournament
}

// Controller serialises operations per group. Different groups never wait on
// each other; sink calls happen under the group lock.
type Controller struct {
	sink  chat.Sink
	names chat.Resolver
	log   *zap.Logger

	historyLimit int
	reserved     map[string]struct{}
	usageHint    func(shortname string) string

	mu     sync.Mutex
	groups map[string]*group
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHistoryLimit sets how many messages Reprocess reads back.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithReservedShortnames rejects shortnames that would shadow commands.
func WithReservedShortnames(names ...string) Option {
	return func(c *Controller) {
		for _, n := range names {
			c.reserved[lower(n)] = struct{}{}
		}
	}
}

// WithUsageHint sets the message posted after a new matrix's legend. A hint
// that recovery would mistake for a grid block is not posted.
func WithUsageHint(hint func(shortname string) string) Option {
	return func(c *Controller) { c.usageHint = hint }
}

func New(sink chat.Sink, names chat.Resolver, opts ...Option) *Controller {
	c := &Controller{
		sink:         sink,
		names:        names,
		log:          obslog.L(),
		historyLimit: DefaultHistoryLimit,
		reserved:     make(map[string]struct{}),
		groups:       make(map[string]*group),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) group(id string) *group {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[id]
	if !ok {
		g = &group{tournaments: make(map[string]*Tournament)}
		c.groups[id] = g
	}
	return g
}

// lower folds case the same way for every script; a Caser is stateful, so
// each call gets its own.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// NormalizeShortname lowercases s and checks it against the shortname rules.
func (c *Controller) NormalizeShortname(s string) (string, error) {
	s = lower(strings.TrimSpace(s))
	if !shortnameRE.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShortname, s)
	}
	if _, ok := c.reserved[s]; ok {
		return "", fmt.Errorf("%w: %q", ErrReservedShortname, s)
	}
	return s, nil
}

// Begin starts a draft for group.
func (c *Controller) Begin(_ context.Context, groupID, title, shortname string) (Draft, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Draft{}, ErrInvalidTitle
	}
	short, err := c.NormalizeShortname(shortname)
	if err != nil {
		return Draft{}, err
	}
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draft != nil {
		return Draft{}, fmt.Errorf("%w: %s", ErrDraftInProgress, g.draft.Shortname)
	}
	if _, ok := g.tournaments[short]; ok {
		return Draft{}, fmt.Errorf("%w: %s", ErrShortnameInUse, short)
	}
	g.draft = &Draft{Title: title, Shortname: short}
	c.log.Info("matrix_begin", zap.String("group", groupID), zap.String("shortname", short), zap.String("title", title))
	return *g.draft, nil
}

// AddResult describes what AddParticipants did with each requested id.
type AddResult struct {
	Added   []matrix.Participant
	Already []matrix.Participant
	// NotMembers lists ids the resolver did not know.
	NotMembers []string
	Total      int
}

// AddParticipants resolves names for ids and appends the new ones to the draft.
// Names are resolved before the draft is touched, so a resolver failure leaves
// it unchanged.
func (c *Controller) AddParticipants(ctx context.Context, groupID, location string, ids []string) (AddResult, error) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draft == nil {
		return AddResult{}, ErrNoDraft
	}

	var res AddResult
	present := make(map[string]matrix.Participant, len(g.draft.Participants))
	for _, p := range g.draft.Participants {
		present[p.ID] = p
	}
	var pending []matrix.Participant
	for _, id := range ids {
		if p, ok := present[id]; ok {
			res.Already = append(res.Already, p)
			continue
		}
		name, err := c.names.ResolveDisplayName(ctx, location, id)
		if errors.Is(err, chat.ErrNotAMember) {
			res.NotMembers = append(res.NotMembers, id)
			continue
		}
		if err != nil {
			return AddResult{}, fmt.Errorf("resolve %s: %w", id, err)
		}
		p := matrix.Participant{ID: id, Name: name}
		present[id] = p
		pending = append(pending, p)
	}
	g.draft.Participants = append(g.draft.Participants, pending...)
	res.Added = pending
	res.Total = len(g.draft.Participants)
	c.log.Info("matrix_add", zap.String("group", groupID), zap.String("shortname", g.draft.Shortname),
		zap.Int("added", len(res.Added)), zap.Int("total", res.Total))
	return res, nil
}

// Cancel drops the draft and returns it.
func (c *Controller) Cancel(groupID string) (Draft, error) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draft == nil {
		return Draft{}, ErrNoDraft
	}
	d := *g.draft
	g.draft = nil
	c.log.Info("matrix_cancel", zap.String("group", groupID), zap.String("shortname", d.Shortname))
	return d, nil
}

// PendingDraft returns the current draft of group, if any.
func (c *Controller) PendingDraft(groupID string) (Draft, bool) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draft == nil {
		return Draft{}, false
	}
	d := *g.draft
	d.Participants = append([]matrix.Participant(nil), g.draft.Participants...)
	return d, true
}

// Create posts the intro, the grid and the legend for the draft and starts
// tracking the result. Nothing is registered and the draft is kept if posting
// fails; messages already posted stay where they are.
func (c *Controller) Create(ctx context.Context, groupID, location string) (Tournament, error) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	d := g.draft
	if d == nil {
		return Tournament{}, ErrNoDraft
	}
	if len(d.Participants) == 0 {
		return Tournament{}, ErrNoParticipants
	}
	if _, ok := g.tournaments[d.Shortname]; ok {
		return Tournament{}, fmt.Errorf("%w: %s", ErrShortnameInUse, d.Shortname)
	}
	m, err := matrix.New(d.Participants)
	if err != nil {
		return Tournament{}, err
	}
	n := grid.BlockCount(m.Len())
	blocks, err := grid.Render(d.Title, m, n)
	if err != nil {
		return Tournament{}, err
	}

	target := location
	if opener, ok := c.sink.(chat.ThreadOpener); ok {
		target, err = opener.OpenThread(ctx, location, d.Title)
		if err != nil {
			return Tournament{}, fmt.Errorf("open thread: %w", err)
		}
	}

	ids := make([]string, len(d.Participants))
	for i, p := range d.Participants {
		ids[i] = p.ID
	}
	texts := make([]string, 0, n+3)
	texts = append(texts, recovery.IntroText(ids, d.Shortname))
	texts = append(texts, blocks...)
	texts = append(texts, outcome.Legend())
	if c.usageHint != nil {
		if hint := c.usageHint(d.Shortname); hint != "" && !recovery.LooksLikeBlock(hint) {
			texts = append(texts, hint)
		}
	}

	handles, err := c.postQuiet(ctx, target, texts)
	if err == nil && len(handles) != len(texts) {
		err = fmt.Errorf("sink returned %d handles for %d messages", len(handles), len(texts))
	}
	if err != nil {
		c.log.Warn("matrix_create_error", zap.String("group", groupID), zap.String("shortname", d.Shortname),
			zap.Int("posted", len(handles)), zap.Int("expected", len(texts)), zap.Error(err))
		return Tournament{}, fmt.Errorf("post matrix: %w", err)
	}

	t := &Tournament{
		Shortname: d.Shortname,
		Title:     d.Title,
		Location:  target,
		Matrix:    m,
		Blocks:    append([]chat.BlockHandle(nil), handles[1:1+n]...),
		rendered:  blocks,
	}
	g.tournaments[t.Shortname] = t
	g.draft = nil
	c.log.Info("matrix_create", zap.String("group", groupID), zap.String("shortname", t.Shortname),
		zap.String("location", target), zap.Int("participants", m.Len()), zap.Int("blocks", n))
	return t.snapshot(), nil
}

// postQuiet posts without notifying mentioned users when the sink can.
func (c *Controller) postQuiet(ctx context.Context, location string, texts []string) ([]chat.BlockHandle, error) {
	if sp, ok := c.sink.(chat.SilentPoster); ok {
		return sp.PostSilent(ctx, location, texts)
	}
	return c.sink.PostBlocks(ctx, location, texts)
}

// Tournaments lists the running matrices of group ordered by shortname.
func (c *Controller) Tournaments(groupID string) []Tournament {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Tournament, 0, len(g.tournaments))
	for _, t := range g.tournaments {
		out = append(out, t.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shortname < out[j].Shortname })
	return out
}

// lookup finds a tournament by shortname, or by location when shortname is empty.
func (c *Controller) lookup(g *group, shortname, location string) (*Tournament, error) {
	if strings.TrimSpace(shortname) != "" {
		short := lower(strings.TrimSpace(shortname))
		t, ok := g.tournaments[short]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoTournament, short)
		}
		return t, nil
	}
	var found *Tournament
	for _, t := range g.tournaments {
		if t.Location != location {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguousTournament
		}
		found = t
	}
	if found == nil {
		return nil, ErrNoTournament
	}
	return found, nil
}

// rerender writes the current matrix into the tournament's blocks, editing
// only blocks whose text changed. The block count stays what was posted.
func (c *Controller) rerender(ctx context.Context, t *Tournament) (int, error) {
	n := len(t.Blocks)
	if want := grid.BlockCount(t.Matrix.Len()); want != n {
		c.log.Warn("matrix_block_count_drift", zap.String("shortname", t.Shortname), zap.Int("posted", n), zap.Int("estimated", want))
	}
	blocks, err := grid.Render(t.Title, t.Matrix, n)
	if err != nil {
		t.stale = true
		return 0, err
	}
	if len(t.rendered) != n {
		t.rendered = make([]string, n)
	}
	edited := 0
	for i, h := range t.Blocks {
		if t.rendered[i] == blocks[i] {
			continue
		}
		if err := c.sink.EditBlock(ctx, h, blocks[i]); err != nil {
			t.stale = true
			c.log.Warn("matrix_edit_error", zap.String("shortname", t.Shortname), zap.Int("block", i), zap.Error(err))
			return edited, fmt.Errorf("edit block %d: %w", i, err)
		}
		t.rendered[i] = blocks[i]
		edited++
	}
	t.stale = false
	return edited, nil
}
