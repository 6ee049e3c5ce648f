package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/grid"
	"github.com/park285/matchmatrix-bot/internal/matrix"
	"github.com/park285/matchmatrix-bot/internal/outcome"
)

const allMatchesComplete = "All matches complete!"

// ReportRequest is one reported match. Shortname may be empty, in which case
// the single tournament rendered in Location is used. PlayerID defaults to
// ActorID.
type ReportRequest struct {
	Group      string
	Location   string
	Shortname  string
	ActorID    string
	PlayerID   string
	OpponentID string
	Score      string
}

type ReportResult struct {
	Shortname string
	// Location is where the tournament is rendered and the announcement went.
	Location     string
	Player       matrix.Participant
	Opponent     matrix.Participant
	Outcome      outcome.Outcome
	Announcement string
}

// Report records a match and brings the posted grid up to date. If the grid
// edit fails the result stays recorded and the error wraps ErrGridStale.
func (c *Controller) Report(ctx context.Context, req ReportRequest) (ReportResult, error) {
	o, ok := outcome.ParseScore(req.Score)
	if !ok {
		return ReportResult{}, fmt.Errorf("%w: %q", ErrInvalidScore, req.Score)
	}
	player := req.PlayerID
	if player == "" {
		player = req.ActorID
	}

	g := c.group(req.Group)
	g.mu.Lock()
	defer g.mu.Unlock()
	t, err := c.lookup(g, req.Shortname, req.Location)
	if err != nil {
		return ReportResult{}, err
	}
	if err := t.Matrix.Report(player, req.OpponentID, o); err != nil {
		return ReportResult{}, err
	}
	p, _ := t.Matrix.Lookup(player)
	opp, _ := t.Matrix.Lookup(req.OpponentID)
	res := ReportResult{Shortname: t.Shortname, Location: t.Location, Player: p, Opponent: opp, Outcome: o}
	res.Announcement = fmt.Sprintf("%s reports %s %s %s", c.actorName(ctx, t, req.ActorID), p.Name, o.Score(), opp.Name)
	c.log.Info("matrix_report", zap.String("group", req.Group), zap.String("shortname", t.Shortname),
		zap.String("actor_id", req.ActorID), zap.String("player_id", player), zap.String("opponent_id", req.OpponentID),
		zap.String("score", o.Score()))

	if _, err := c.sink.PostBlocks(ctx, t.Location, []string{res.Announcement}); err != nil {
		c.log.Warn("matrix_announce_error", zap.String("shortname", t.Shortname), zap.Error(err))
	}
	if _, err := c.rerender(ctx, t); err != nil {
		return res, fmt.Errorf("%w: %w", ErrGridStale, err)
	}
	return res, nil
}

func (c *Controller) actorName(ctx context.Context, t *Tournament, id string) string {
	if p, ok := t.Matrix.Lookup(id); ok {
		return p.Name
	}
	if name, err := c.names.ResolveDisplayName(ctx, t.Location, id); err == nil {
		return name
	}
	return chat.Mention(id)
}

// SetFindable marks userID as available (or not) for find-a-match pings in
// one tournament, or in every tournament of the group they play in when
// shortname is empty. Only tournaments whose flag changed are re-rendered;
// the number of changed tournaments is returned.
func (c *Controller) SetFindable(ctx context.Context, groupID, shortname, userID string, visible bool) (int, error) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	var targets []*Tournament
	if strings.TrimSpace(shortname) != "" {
		t, err := c.lookup(g, shortname, "")
		if err != nil {
			return 0, err
		}
		if _, ok := t.Matrix.Lookup(userID); !ok {
			return 0, fmt.Errorf("%w: %s is not playing %s", matrix.ErrUnknownParticipant, userID, t.Shortname)
		}
		targets = append(targets, t)
	} else {
		for _, t := range sorted(g.tournaments) {
			if _, ok := t.Matrix.Lookup(userID); ok {
				targets = append(targets, t)
			}
		}
	}

	changed := 0
	var errs []error
	for _, t := range targets {
		ok, err := t.Matrix.SetVisible(userID, visible)
		if err != nil {
			return changed, err
		}
		if !ok {
			continue
		}
		changed++
		if _, err := c.rerender(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Shortname, err))
		}
	}
	c.log.Info("matrix_findable", zap.String("group", groupID), zap.String("user_id", userID),
		zap.Bool("visible", visible), zap.Int("changed", changed))
	if len(errs) > 0 {
		return changed, fmt.Errorf("%w: %w", ErrGridStale, errors.Join(errs...))
	}
	return changed, nil
}

// End posts a final snapshot of the grid, without suppression markers, to
// location and stops tracking the tournament.
func (c *Controller) End(ctx context.Context, groupID, location, shortname string) (Tournament, error) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	t, err := c.lookup(g, shortname, location)
	if err != nil {
		return Tournament{}, err
	}
	blocks, err := grid.Render(t.Title, t.Matrix, grid.BlockCount(t.Matrix.Len()), grid.WithoutMarkers())
	if err != nil {
		return Tournament{}, err
	}
	if _, err := c.sink.PostBlocks(ctx, location, blocks); err != nil {
		return Tournament{}, fmt.Errorf("post final grid: %w", err)
	}
	delete(g.tournaments, t.Shortname)
	c.log.Info("matrix_end", zap.String("group", groupID), zap.String("shortname", t.Shortname), zap.String("location", location))
	return t.snapshot(), nil
}

// Ping mentions every participant of a tournament in location.
func (c *Controller) Ping(ctx context.Context, groupID, location, shortname string) error {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	t, err := c.lookup(g, shortname, location)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, p := range t.Matrix.Participants() {
		b.WriteString(chat.Mention(p.ID))
		b.WriteByte(' ')
	}
	if _, err := c.postQuiet(ctx, location, []string{strings.TrimSpace(b.String())}); err != nil {
		return fmt.Errorf("post ping: %w", err)
	}
	return nil
}

// FindMatch posts the opponents userID has not played yet, per tournament.
// Opponents who turned find-a-match pings off are named instead of mentioned.
// An empty shortname covers every tournament the user plays in.
func (c *Controller) FindMatch(ctx context.Context, groupID, location, userID, shortname string) (string, error) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	var targets []*Tournament
	if strings.TrimSpace(shortname) != "" {
		t, err := c.lookup(g, shortname, "")
		if err != nil {
			return "", err
		}
		targets = append(targets, t)
	} else {
		targets = sorted(g.tournaments)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s is trying to find a match to play, is anyone available?", chat.Mention(userID))
	found := false
	for _, t := range targets {
		if _, ok := t.Matrix.Lookup(userID); !ok {
			continue
		}
		found = true
		fmt.Fprintf(&b, "\n%s: %s", t.Shortname, openOpponents(t.Matrix, userID))
	}
	if !found {
		return "", fmt.Errorf("%w: %s is not playing", ErrNoTournament, userID)
	}
	text := b.String()
	if _, err := c.sink.PostBlocks(ctx, location, []string{text}); err != nil {
		return "", fmt.Errorf("post find-a-match: %w", err)
	}
	return text, nil
}

func openOpponents(m *matrix.Matrix, userID string) string {
	open := m.Open(userID)
	if len(open) == 0 {
		return allMatchesComplete
	}
	parts := make([]string, len(open))
	for i, p := range open {
		if m.Suppressed(p.ID) {
			parts[i] = p.Name
		} else {
			parts[i] = chat.Mention(p.ID)
		}
	}
	return strings.Join(parts, " ")
}

// Resync retries the grid edit of every tournament whose last edit failed and
// returns how many were brought up to date.
func (c *Controller) Resync(ctx context.Context) (int, error) {
	c.mu.Lock()
	groups := make([]*group, 0, len(c.groups))
	for _, g := range c.groups {
		groups = append(groups, g)
	}
	c.mu.Unlock()

	fixed := 0
	var errs []error
	for _, g := range groups {
		g.mu.Lock()
		for _, t := range sorted(g.tournaments) {
			if !t.stale {
				continue
			}
			if _, err := c.rerender(ctx, t); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", t.Shortname, err))
				continue
			}
			fixed++
		}
		g.mu.Unlock()
	}
	if fixed > 0 || len(errs) > 0 {
		c.log.Info("matrix_resync", zap.Int("fixed", fixed), zap.Int("failed", len(errs)))
	}
	return fixed, errors.Join(errs...)
}

func sorted(ts map[string]*Tournament) []*Tournament {
	out := make([]*Tournament, 0, len(ts))
	for _, t := range ts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shortname < out[j].Shortname })
	return out
}
