package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/command"
)

// Intents the bot needs: guild messages with content, and guild members for
// display names.
const Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMembers

const handleTimeout = 30 * time.Second

// Commands handles text commands. Handle returns false for text that is not
// a command.
type Commands interface {
	Handle(ctx context.Context, req command.Request) (string, bool)
}

type Ingress struct {
	cmds    Commands
	reply   Session
	botID   string
	allowed map[string]struct{}
	logger  *zap.Logger
}

// NewIngress accepts messages from allowed channels only; an empty list
// accepts every channel.
func NewIngress(cmds Commands, reply Session, botID string, allowed []string, logger *zap.Logger) *Ingress {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Ingress{cmds: cmds, reply: reply, botID: botID, logger: logger}
	if len(allowed) > 0 {
		in.allowed = make(map[string]struct{}, len(allowed))
		for _, id := range allowed {
			in.allowed[id] = struct{}{}
		}
	}
	return in
}

// OnMessageCreate is registered with Session.AddHandler.
func (in *Ingress) OnMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	in.Handle(ctx, m.Message)
}

// Handle routes one message and posts the reply in the same channel.
func (in *Ingress) Handle(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == in.botID {
		return
	}
	if !in.channelAllowed(ctx, m.ChannelID) {
		return
	}
	group := m.GuildID
	if group == "" {
		group = m.ChannelID
	}
	reply, ok := in.cmds.Handle(ctx, command.Request{
		Group:    group,
		Location: m.ChannelID,
		UserID:   m.Author.ID,
		Text:     m.Content,
	})
	if !ok || reply == "" {
		return
	}
	send := &discordgo.MessageSend{Content: reply, AllowedMentions: allowedMentions(reply)}
	if _, err := in.reply.ChannelMessageSendComplex(m.ChannelID, send, discordgo.WithContext(ctx)); err != nil {
		in.logger.Warn("discord_reply_error", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

// channelAllowed also admits threads whose parent channel is listed.
func (in *Ingress) channelAllowed(ctx context.Context, channelID string) bool {
	if in.allowed == nil {
		return true
	}
	if _, ok := in.allowed[channelID]; ok {
		return true
	}
	ch, err := in.reply.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil || ch.ParentID == "" {
		return false
	}
	_, ok := in.allowed[ch.ParentID]
	return ok
}
