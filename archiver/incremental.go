package archiver

import (
	"context"
	"fmt"

	"github.com/fuad-daoud/discord-archiver/archive"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
)

// ArchiveMessage keeps one message and its ancestors current. Messages outside guild
// channels and threads are skipped without error and without writes.
func (a *Archiver) ArchiveMessage(ctx context.Context, guildID uint64, snapshot Snapshot) error {
	b, ok, err := a.extract(ctx, guildID, snapshot)
	if err != nil {
		return err
	}
	if !ok {
		dlog.Debug("Skipping message outside guild channels", "message", snapshot.Message.ID, "channel", snapshot.Message.ChannelID)
		return nil
	}
	return a.dump(ctx, guildID, b)
}

// ArchiveMessageEdit refetches an edited message before archiving it, edit payloads are partial.
func (a *Archiver) ArchiveMessageEdit(ctx context.Context, guildID, containerID, messageID uint64) error {
	snapshot, err := a.source.Message(ctx, containerID, messageID)
	if err != nil {
		return fmt.Errorf("fetch message %d: %w", messageID, err)
	}
	return a.ArchiveMessage(ctx, guildID, snapshot)
}

func (a *Archiver) extract(ctx context.Context, guildID uint64, snapshot Snapshot) (Batches, bool, error) {
	var b Batches
	container, err := a.source.Container(ctx, guildID, snapshot.Message.ChannelID)
	if err != nil {
		return b, false, fmt.Errorf("resolve channel %d: %w", snapshot.Message.ChannelID, err)
	}
	switch c := container.(type) {
	case TopLevel:
		b.Channels = []archive.Channel{c.Channel}
	case InThread:
		b.Channels = []archive.Channel{c.Parent}
		b.Threads = []archive.Thread{c.Thread}
	default:
		return b, false, nil
	}

	guild, err := a.source.Guild(ctx, guildID)
	if err != nil {
		return b, false, fmt.Errorf("fetch guild %d: %w", guildID, err)
	}
	b.Guilds = []archive.Guild{guild}

	message := snapshot.Message
	message.GuildID = guildID
	b.Messages = []archive.Message{message}
	b.Users = []archive.User{snapshot.Author}

	b.Attachments, err = a.downloadAttachments(ctx, []Snapshot{snapshot})
	if err != nil {
		return b, false, err
	}
	return b, true, nil
}
