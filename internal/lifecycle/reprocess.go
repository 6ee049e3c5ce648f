package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/grid"
	"github.com/park285/matchmatrix-bot/internal/matrix"
	"github.com/park285/matchmatrix-bot/internal/outcome"
	"github.com/park285/matchmatrix-bot/internal/recovery"
)

type ReprocessResult struct {
	Tournament Tournament
	// Healed counts grid blocks rewritten because they differed from a
	// fresh render.
	Healed int
	Legend recovery.LegendAction
	// Replaced is set when a tournament with the same shortname was tracked
	// before and has been replaced.
	Replaced bool
}

// Reprocess rebuilds the most recent matrix posted in location from chat
// history and starts tracking it again.
func (c *Controller) Reprocess(ctx context.Context, groupID, location string) (ReprocessResult, error) {
	g := c.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	history, err := c.sink.FetchRecentHistory(ctx, location, c.historyLimit)
	if err != nil {
		return ReprocessResult{}, fmt.Errorf("fetch history: %w", err)
	}
	intro, err := recovery.FindIntro(history)
	if err != nil {
		return ReprocessResult{}, err
	}
	short, err := c.NormalizeShortname(intro.Shortname)
	if err != nil {
		return ReprocessResult{}, err
	}
	participants, err := c.resolveAll(ctx, location, intro.UserIDs)
	if err != nil {
		return ReprocessResult{}, err
	}

	blocks := recovery.CollectBlocks(history, intro)
	want := grid.BlockCount(len(participants))
	if len(blocks) < want {
		return ReprocessResult{}, fmt.Errorf("%w: found %d, want %d", recovery.ErrMissingBlocks, len(blocks), want)
	}
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	decoded, err := grid.Parse(grid.Join(texts), participants)
	if err != nil {
		return ReprocessResult{}, err
	}
	layout, err := recovery.Arrange(blocks, want, decoded.Leftover)
	if err != nil {
		return ReprocessResult{}, err
	}

	t := &Tournament{
		Shortname: short,
		Title:     decoded.Title,
		Location:  location,
		Matrix:    decoded.Matrix,
		Blocks:    make([]chat.BlockHandle, len(layout.Grid)),
		rendered:  make([]string, len(layout.Grid)),
	}
	for i, b := range layout.Grid {
		t.Blocks[i] = b.Handle
		t.rendered[i] = b.Text
	}

	switch layout.Action {
	case recovery.LegendOverwrite:
		if err := c.sink.EditBlock(ctx, layout.Legend.Handle, outcome.Legend()); err != nil {
			c.log.Warn("reprocess_legend_error", zap.String("shortname", short), zap.Error(err))
		}
	case recovery.LegendPost:
		if _, err := c.sink.PostBlocks(ctx, location, []string{outcome.Legend()}); err != nil {
			c.log.Warn("reprocess_legend_error", zap.String("shortname", short), zap.Error(err))
		}
	}

	healed, err := c.rerender(ctx, t)
	if err != nil {
		c.log.Warn("reprocess_heal_error", zap.String("shortname", short), zap.Error(err))
	}
	_, replaced := g.tournaments[short]
	g.tournaments[short] = t
	c.log.Info("reprocess_done", zap.String("group", groupID), zap.String("shortname", short),
		zap.String("location", location), zap.Int("participants", len(participants)),
		zap.Int("healed", healed), zap.Bool("replaced", replaced))
	return ReprocessResult{Tournament: t.snapshot(), Healed: healed, Legend: layout.Action, Replaced: replaced}, nil
}

// resolveAll looks up current display names. Players who left the chat keep
// their id as name so the grid can still be decoded.
func (c *Controller) resolveAll(ctx context.Context, location string, ids []string) ([]matrix.Participant, error) {
	out := make([]matrix.Participant, 0, len(ids))
	for _, id := range ids {
		name, err := c.names.ResolveDisplayName(ctx, location, id)
		if errors.Is(err, chat.ErrNotAMember) {
			c.log.Warn("reprocess_unknown_member", zap.String("user_id", id))
			name = id
		} else if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		out = append(out, matrix.Participant{ID: id, Name: name})
	}
	return out, nil
}
