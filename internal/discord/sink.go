// Package discord adapts a discordgo session to the chat interfaces and feeds
// guild messages into the command router.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/chat"
)

const (
	// pageSize is the most messages one history request returns.
	pageSize = 100
	// threadArchiveMinutes keeps matrix threads open for a week of inactivity.
	threadArchiveMinutes = 10080
	maxThreadName        = 100
)

var mentionRE = regexp.MustCompile(`<@!?(\d+)>`)

// Session is the part of *discordgo.Session the sink uses.
type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ThreadStart(channelID, name string, typ discordgo.ChannelType, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// Sink posts into channels and threads. Locations are channel ids.
type Sink struct {
	s      Session
	botID  string
	logger *zap.Logger
}

var (
	_ chat.Sink         = (*Sink)(nil)
	_ chat.Resolver     = (*Sink)(nil)
	_ chat.ThreadOpener = (*Sink)(nil)
	_ chat.SilentPoster = (*Sink)(nil)
)

func NewSink(s Session, botID string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{s: s, botID: botID, logger: logger}
}

func (d *Sink) PostBlocks(ctx context.Context, channelID string, texts []string) ([]chat.BlockHandle, error) {
	return d.send(ctx, channelID, texts, 0)
}

// PostSilent posts with push notifications suppressed. Mentions still render.
func (d *Sink) PostSilent(ctx context.Context, channelID string, texts []string) ([]chat.BlockHandle, error) {
	return d.send(ctx, channelID, texts, discordgo.MessageFlagsSuppressNotifications)
}

func (d *Sink) send(ctx context.Context, channelID string, texts []string, flags discordgo.MessageFlags) ([]chat.BlockHandle, error) {
	handles := make([]chat.BlockHandle, 0, len(texts))
	for i, text := range texts {
		m, err := d.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content:         text,
			Flags:           flags,
			AllowedMentions: allowedMentions(text),
		}, discordgo.WithContext(ctx))
		if err != nil {
			return handles, fmt.Errorf("send block %d: %w", i, err)
		}
		handles = append(handles, chat.BlockHandle{Location: channelID, ID: m.ID})
	}
	return handles, nil
}

// allowedMentions lets the users text mentions be pinged and nobody else: no
// roles, no @everyone.
func allowedMentions(text string) *discordgo.MessageAllowedMentions {
	am := &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
	seen := make(map[string]struct{})
	for _, m := range mentionRE.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		am.Users = append(am.Users, m[1])
	}
	return am
}

func (d *Sink) EditBlock(ctx context.Context, h chat.BlockHandle, text string) error {
	if _, err := d.s.ChannelMessageEdit(h.Location, h.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit %s: %w", h.ID, err)
	}
	return nil
}

// FetchRecentHistory pages backwards through the channel, newest first.
func (d *Sink) FetchRecentHistory(ctx context.Context, channelID string, max int) ([]chat.HistoryEntry, error) {
	out := make([]chat.HistoryEntry, 0, max)
	before := ""
	for len(out) < max {
		limit := min(pageSize, max-len(out))
		page, err := d.s.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		for _, m := range page {
			out = append(out, chat.HistoryEntry{
				Handle:  chat.BlockHandle{Location: channelID, ID: m.ID},
				FromBot: m.Author != nil && m.Author.ID == d.botID,
				Text:    m.Content,
			})
		}
		if len(page) < limit {
			break
		}
		before = page[len(page)-1].ID
	}
	return out, nil
}

// ResolveDisplayName looks the user up in the guild that owns channelID.
func (d *Sink) ResolveDisplayName(ctx context.Context, channelID, userID string) (string, error) {
	ch, err := d.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("channel %s: %w", channelID, err)
	}
	if ch.GuildID == "" {
		return "", fmt.Errorf("%w: %s is not a guild channel", chat.ErrNotAMember, channelID)
	}
	m, err := d.s.GuildMember(ch.GuildID, userID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return "", fmt.Errorf("%w: %s", chat.ErrNotAMember, userID)
	}
	if err != nil {
		return "", fmt.Errorf("guild member %s: %w", userID, err)
	}
	return displayName(m), nil
}

// OpenThread starts a public thread under channelID for a new matrix.
func (d *Sink) OpenThread(ctx context.Context, channelID, title string) (string, error) {
	name := strings.TrimSpace(title)
	if utf8.RuneCountInString(name) > maxThreadName {
		name = string([]rune(name)[:maxThreadName])
	}
	th, err := d.s.ThreadStart(channelID, name, discordgo.ChannelTypeGuildPublicThread, threadArchiveMinutes, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("start thread: %w", err)
	}
	d.logger.Info("discord_thread_open", zap.String("channel_id", channelID), zap.String("thread_id", th.ID))
	return th.ID, nil
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
