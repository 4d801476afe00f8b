package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-archiver/archiver"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/fuad-daoud/discord-archiver/metrics"
	"golang.org/x/net/context"
)

// Archiver is the part of archiver.Archiver the gateway listeners drive.
type Archiver interface {
	ArchiveGuild(ctx context.Context, guildID uint64, progress archiver.Progress) (archiver.Report, error)
	ArchiveMessage(ctx context.Context, guildID uint64, snapshot archiver.Snapshot) error
	ArchiveMessageEdit(ctx context.Context, guildID, containerID, messageID uint64) error
	Running(guildID uint64) bool
}

type Counts func(ctx context.Context) (map[string]int64, error)

type Handlers struct {
	ctx      context.Context
	archiver Archiver
	counts   Counts
	notifier *Notifier
	// goFunc runs listener work off the gateway goroutine.
	goFunc func(func())
}

func NewHandlers(ctx context.Context, archiver Archiver, counts Counts, notifier *Notifier) *Handlers {
	return &Handlers{
		ctx:      ctx,
		archiver: archiver,
		counts:   counts,
		notifier: notifier,
		goFunc:   func(f func()) { go f() },
	}
}

func (h *Handlers) OnReady(event *events.Ready) {
	dlog.Info("Bot is up!", "username", event.User.Username, "guilds", len(event.Guilds))
	h.goFunc(func() { h.notifier.notify(h.ctx, "Bot is up") })
}

func (h *Handlers) OnMessageCreate(event *events.GuildMessageCreate) {
	guildID := uint64(event.GuildID)
	snapshot := SnapshotOf(event.Message)
	h.goFunc(func() {
		err := h.archiver.ArchiveMessage(h.ctx, guildID, snapshot)
		observe("create", err)
		if err != nil {
			dlog.Error("Could not archive message", "guild", guildID, "message", snapshot.Message.ID, "err", err)
		}
	})
}

func (h *Handlers) OnMessageUpdate(event *events.GuildMessageUpdate) {
	guildID := uint64(event.GuildID)
	channelID, messageID := uint64(event.ChannelID), uint64(event.MessageID)
	h.goFunc(func() {
		err := h.archiver.ArchiveMessageEdit(h.ctx, guildID, channelID, messageID)
		observe("update", err)
		if err != nil {
			dlog.Error("Could not archive message edit", "guild", guildID, "message", messageID, "err", err)
		}
	})
}

func observe(event string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MessagesArchived.WithLabelValues(event, status).Inc()
}

func (h *Handlers) OnCommand(event *events.ApplicationCommandInteractionCreate) {
	name := event.Data.CommandName()
	guildID := event.GuildID()
	if guildID == nil {
		reply(event, "This command only works inside a server.")
		return
	}
	switch name {
	case commandGetAll:
		reply(event, h.getAll(*guildID))
	case commandStatus:
		reply(event, h.status())
	default:
		dlog.Warn("Unknown command", "name", name)
	}
}

func reply(event *events.ApplicationCommandInteractionCreate, content string) {
	message := discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build()
	if err := event.CreateMessage(message); err != nil {
		dlog.Error("Could not reply to command", "command", event.Data.CommandName(), "err", err)
	}
}

// getAll starts a full run for the guild and returns the acknowledgement text.
func (h *Handlers) getAll(guildID snowflake.ID) string {
	if h.archiver.Running(uint64(guildID)) {
		return "An archive run is already running for this server."
	}
	h.goFunc(func() {
		report, err := h.archiver.ArchiveGuild(h.ctx, uint64(guildID), nil)
		switch {
		case errors.Is(err, archiver.ErrArchiveRunning):
			dlog.Warn("Archive run already in flight", "guild", guildID)
		case err != nil:
			h.notifier.notify(h.ctx, fmt.Sprintf("Archiving guild %s failed: %v", guildID, err))
		default:
			h.notifier.notify(h.ctx, fmt.Sprintf("Archived guild %s in %s (%d messages)",
				guildID, report.Duration.Round(time.Millisecond), len(report.Batches.Messages)))
		}
	})
	return "Archiving all messages..."
}

func (h *Handlers) status() string {
	counts, err := h.counts(h.ctx)
	if err != nil {
		dlog.Error("Could not count archive rows", "err", err)
		return "Could not read the archive right now."
	}
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var b strings.Builder
	b.WriteString("Archived rows:")
	for _, table := range tables {
		fmt.Fprintf(&b, "\n%s: %d", table, counts[table])
	}
	return b.String()
}
