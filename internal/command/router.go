// Package command turns prefixed chat text into matrix operations and renders
// the reply through the message catalog.
package command

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/lifecycle"
	"github.com/park285/matchmatrix-bot/internal/matrix"
	"github.com/park285/matchmatrix-bot/internal/obslog"
)

// MaxAdd caps the players accepted by one add command.
const MaxAdd = 10

var mentionRE = regexp.MustCompile(`^<@!?(\d+)>$|^@(\d+)$`)

// Request is one incoming message. Group scopes drafts and shortnames,
// Location is where the message was posted (a room, channel or thread).
type Request struct {
	Group    string
	Location string
	UserID   string
	Text     string
}

// Matrices is the part of lifecycle.Controller the router drives.
type Matrices interface {
	Begin(ctx context.Context, group, title, shortname string) (lifecycle.Draft, error)
	AddParticipants(ctx context.Context, group, location string, ids []string) (lifecycle.AddResult, error)
	Cancel(group string) (lifecycle.Draft, error)
	PendingDraft(group string) (lifecycle.Draft, bool)
	Create(ctx context.Context, group, location string) (lifecycle.Tournament, error)
	Tournaments(group string) []lifecycle.Tournament
	Report(ctx context.Context, req lifecycle.ReportRequest) (lifecycle.ReportResult, error)
	SetFindable(ctx context.Context, group, shortname, userID string, visible bool) (int, error)
	End(ctx context.Context, group, location, shortname string) (lifecycle.Tournament, error)
	Ping(ctx context.Context, group, location, shortname string) error
	FindMatch(ctx context.Context, group, location, userID, shortname string) (string, error)
	Reprocess(ctx context.Context, group, location string) (lifecycle.ReprocessResult, error)
}

// Renderer renders a reply template by key.
type Renderer interface {
	Render(key string, data any) (string, error)
}

// UserLookup resolves '@Name' arguments on platforms whose mentions are plain
// names.
type UserLookup interface {
	LookupUser(ctx context.Context, location, name string) (string, bool)
}

type handler func(ctx context.Context, req Request, args []string) (string, error)

type Router struct {
	ctl    Matrices
	cat    Renderer
	prefix string
	users  UserLookup
	logger *zap.Logger

	handlers map[string]handler
}

type Option func(*Router)

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithUserLookup(u UserLookup) Option {
	return func(r *Router) { r.users = u }
}

func NewRouter(ctl Matrices, cat Renderer, prefix string, opts ...Option) *Router {
	r := &Router{ctl: ctl, cat: cat, prefix: prefix, logger: obslog.L()}
	for _, o := range opts {
		o(r)
	}
	r.handlers = map[string]handler{
		"help":      r.help,
		"list":      r.list,
		"begin":     r.begin,
		"add":       r.add,
		"create":    r.create,
		"cancel":    r.cancel,
		"end":       r.end,
		"result":    r.result,
		"findable":  r.findable,
		"ping":      r.ping,
		"fam":       r.fam,
		"reprocess": r.reprocess,
	}
	return r
}

// Builtins lists the command words, which shortnames must not shadow.
func Builtins() []string {
	return []string{"help", "list", "begin", "add", "create", "cancel", "end", "result", "findable", "ping", "fam", "reprocess"}
}

// UsageHint renders the reporting instructions posted after a new matrix,
// written with the command prefix actually in use.
func UsageHint(cat Renderer, prefix string) func(shortname string) string {
	return func(shortname string) string {
		out, err := cat.Render("create.hint", map[string]any{"P": prefix, "Shortname": shortname})
		if err != nil {
			return ""
		}
		return out
	}
}

// Handle runs the command in req.Text. It returns false when the text does
// not start with the prefix. An empty reply means the command already posted
// everything it had to say.
func (r *Router) Handle(ctx context.Context, req Request) (string, bool) {
	text := strings.TrimSpace(req.Text)
	if !strings.HasPrefix(text, r.prefix) {
		return "", false
	}
	parts := strings.Fields(strings.TrimPrefix(text, r.prefix))
	if len(parts) == 0 {
		return "", false
	}
	name := strings.ToLower(parts[0])
	args := parts[1:]

	h, ok := r.handlers[name]
	if !ok {
		// <shortname> <score> <@opponent>
		if len(args) != 2 {
			return r.say("unknown", nil), true
		}
		h = func(ctx context.Context, req Request, args []string) (string, error) {
			return r.report(ctx, req, parts[0], args)
		}
	}
	reply, err := h(ctx, req, args)
	if err != nil {
		return r.fail(req, name, err), true
	}
	return reply, true
}

func (r *Router) fail(req Request, cmd string, err error) string {
	kind := lifecycle.KindOf(err)
	fields := []zap.Field{zap.String("group", req.Group), zap.String("location", req.Location),
		zap.String("user_id", req.UserID), zap.String("command", cmd), zap.String("kind", kind.String()), zap.Error(err)}
	if kind == lifecycle.KindExternal {
		r.logger.Error("command_error", fields...)
	} else {
		r.logger.Info("command_rejected", fields...)
	}
	return r.say("error."+kind.String(), map[string]any{"Err": err.Error()})
}

// say renders key with the prefix available as .P. A broken template falls
// back to the key so the user still gets an answer.
func (r *Router) say(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	data["P"] = r.prefix
	out, err := r.cat.Render(key, data)
	if err != nil {
		r.logger.Error("reply_render_error", zap.String("key", key), zap.Error(err))
		return key
	}
	return out
}

// userArg turns a mention argument into a user id.
func (r *Router) userArg(ctx context.Context, location, arg string) (string, bool) {
	if m := mentionRE.FindStringSubmatch(arg); m != nil {
		if m[1] != "" {
			return m[1], true
		}
		return m[2], true
	}
	if r.users != nil && strings.HasPrefix(arg, "@") && len(arg) > 1 {
		return r.users.LookupUser(ctx, location, strings.TrimPrefix(arg, "@"))
	}
	return "", false
}

func (r *Router) help(context.Context, Request, []string) (string, error) {
	return r.say("help", map[string]any{"MaxAdd": MaxAdd}), nil
}

func (r *Router) list(_ context.Context, req Request, _ []string) (string, error) {
	ts := r.ctl.Tournaments(req.Group)
	d, drafting := r.ctl.PendingDraft(req.Group)
	if len(ts) == 0 && !drafting {
		return r.say("list.empty", nil), nil
	}
	lines := []string{r.say("list.header", nil)}
	for _, t := range ts {
		lines = append(lines, r.say("list.item", map[string]any{
			"Shortname": t.Shortname, "Title": t.Title, "Players": t.Matrix.Len(), "Stale": t.Stale(),
		}))
	}
	if drafting {
		lines = append(lines, r.say("list.draft", map[string]any{
			"Shortname": d.Shortname, "Title": d.Title, "Players": len(d.Participants),
		}))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Router) begin(ctx context.Context, req Request, args []string) (string, error) {
	if len(args) < 2 {
		return r.say("usage.begin", nil), nil
	}
	d, err := r.ctl.Begin(ctx, req.Group, strings.Join(args[1:], " "), args[0])
	if err != nil {
		return "", err
	}
	return r.say("begin.ok", map[string]any{"Title": d.Title, "Shortname": d.Shortname}), nil
}

func (r *Router) add(ctx context.Context, req Request, args []string) (string, error) {
	if len(args) == 0 {
		return r.say("usage.add", nil), nil
	}
	if len(args) > MaxAdd {
		return r.say("add.limit", map[string]any{"Max": MaxAdd}), nil
	}
	ids := make([]string, 0, len(args))
	var unknown []string
	for _, a := range args {
		id, ok := r.userArg(ctx, req.Location, a)
		if !ok {
			unknown = append(unknown, a)
			continue
		}
		ids = append(ids, id)
	}
	res, err := r.ctl.AddParticipants(ctx, req.Group, req.Location, ids)
	if err != nil {
		return "", err
	}

	var lines []string
	if len(res.Added) > 0 {
		lines = append(lines, r.say("add.ok", map[string]any{"Added": names(res.Added), "Total": res.Total}))
	} else {
		lines = append(lines, r.say("add.none", map[string]any{"Total": res.Total}))
	}
	if len(res.Already) > 0 {
		lines = append(lines, r.say("add.already", map[string]any{"Names": names(res.Already)}))
	}
	unknown = append(unknown, res.NotMembers...)
	if len(unknown) > 0 {
		lines = append(lines, r.say("add.not_members", map[string]any{"Names": strings.Join(unknown, ", ")}))
	}
	return strings.Join(lines, "\n"), nil
}

func names(ps []matrix.Participant) string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return strings.Join(out, ", ")
}

func (r *Router) create(ctx context.Context, req Request, _ []string) (string, error) {
	t, err := r.ctl.Create(ctx, req.Group, req.Location)
	if err != nil {
		return "", err
	}
	return r.say("create.ok", map[string]any{"Title": t.Title, "Players": t.Matrix.Len()}), nil
}

func (r *Router) cancel(_ context.Context, req Request, _ []string) (string, error) {
	d, err := r.ctl.Cancel(req.Group)
	if err != nil {
		return "", err
	}
	return r.say("cancel.ok", map[string]any{"Shortname": d.Shortname}), nil
}

func (r *Router) end(ctx context.Context, req Request, args []string) (string, error) {
	if len(args) != 1 {
		return r.say("usage.end", nil), nil
	}
	t, err := r.ctl.End(ctx, req.Group, req.Location, args[0])
	if err != nil {
		return "", err
	}
	return r.say("end.ok", map[string]any{"Shortname": t.Shortname}), nil
}

// result reports in the tournament rendered where the message was posted,
// optionally on behalf of another player.
func (r *Router) result(ctx context.Context, req Request, args []string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return r.say("usage.result", nil), nil
	}
	opp, ok := r.userArg(ctx, req.Location, args[1])
	if !ok {
		return r.say("usage.result", nil), nil
	}
	player := ""
	if len(args) == 3 {
		if player, ok = r.userArg(ctx, req.Location, args[2]); !ok {
			return r.say("usage.result", nil), nil
		}
	}
	return r.submit(ctx, req, lifecycle.ReportRequest{
		Group: req.Group, Location: req.Location, ActorID: req.UserID,
		PlayerID: player, OpponentID: opp, Score: args[0],
	})
}

func (r *Router) report(ctx context.Context, req Request, shortname string, args []string) (string, error) {
	opp, ok := r.userArg(ctx, req.Location, args[1])
	if !ok {
		return r.say("usage.report", map[string]any{"Shortname": shortname}), nil
	}
	return r.submit(ctx, req, lifecycle.ReportRequest{
		Group: req.Group, Location: req.Location, Shortname: shortname,
		ActorID: req.UserID, OpponentID: opp, Score: args[0],
	})
}

func (r *Router) submit(ctx context.Context, req Request, rr lifecycle.ReportRequest) (string, error) {
	res, err := r.ctl.Report(ctx, rr)
	if errors.Is(err, lifecycle.ErrGridStale) {
		r.logger.Warn("report_grid_stale", zap.String("group", req.Group), zap.String("shortname", res.Shortname), zap.Error(err))
		return r.say("report.stale", map[string]any{"Shortname": res.Shortname}), nil
	}
	if err != nil {
		return "", err
	}
	if res.Location == req.Location {
		return "", nil
	}
	return r.say("report.ok", map[string]any{"Shortname": res.Shortname, "Announcement": res.Announcement}), nil
}

func (r *Router) findable(ctx context.Context, req Request, args []string) (string, error) {
	if len(args) != 2 {
		return r.say("usage.findable", nil), nil
	}
	visible, ok := parseSwitch(args[1])
	if !ok {
		return r.say("usage.findable", nil), nil
	}
	short := args[0]
	if strings.EqualFold(short, "all") {
		short = ""
	}
	n, err := r.ctl.SetFindable(ctx, req.Group, short, req.UserID, visible)
	if errors.Is(err, lifecycle.ErrGridStale) {
		r.logger.Warn("findable_grid_stale", zap.String("group", req.Group), zap.Error(err))
		return r.say("findable.stale", map[string]any{"Count": n}), nil
	}
	if err != nil {
		return "", err
	}
	return r.say("findable.ok", map[string]any{"Count": n}), nil
}

func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "yes", "true":
		return true, true
	case "off", "no", "false":
		return false, true
	}
	return false, false
}

func (r *Router) ping(ctx context.Context, req Request, args []string) (string, error) {
	short := ""
	if len(args) > 0 {
		short = args[0]
	}
	return "", r.ctl.Ping(ctx, req.Group, req.Location, short)
}

func (r *Router) fam(ctx context.Context, req Request, args []string) (string, error) {
	short := ""
	if len(args) > 0 {
		short = args[0]
	}
	_, err := r.ctl.FindMatch(ctx, req.Group, req.Location, req.UserID, short)
	return "", err
}

func (r *Router) reprocess(ctx context.Context, req Request, _ []string) (string, error) {
	res, err := r.ctl.Reprocess(ctx, req.Group, req.Location)
	if err != nil {
		return "", err
	}
	t := res.Tournament
	r.logger.Info("reprocess_done", zap.String("group", req.Group), zap.String("shortname", t.Shortname),
		zap.Int("healed", res.Healed), zap.Bool("replaced", res.Replaced))
	return r.say("reprocess.ok", map[string]any{
		"Shortname": t.Shortname, "Title": t.Title, "Players": t.Matrix.Len(), "Healed": res.Healed,
	}), nil
}
