package archiver

import (
	"context"
	"iter"

	"github.com/fuad-daoud/discord-archiver/archive"
)

// AttachmentRef points at attachment bytes that still have to be downloaded.
type AttachmentRef struct {
	ID          uint64
	MessageID   uint64
	Filename    string
	ContentType *string
	URL         string
}

// Snapshot is a message as the platform delivered it. Message.GuildID may be zero,
// REST history does not carry it; the archiver fills it in from the guild being archived.
type Snapshot struct {
	Message     archive.Message
	Author      archive.User
	Attachments []AttachmentRef
}

// Container is where a message was posted: TopLevel or InThread.
type Container interface {
	container()
}

type TopLevel struct {
	Channel archive.Channel
}

type InThread struct {
	Thread archive.Thread
	Parent archive.Channel
}

func (TopLevel) container() {}
func (InThread) container() {}

// Source is the read side of the chat platform.
type Source interface {
	Guild(ctx context.Context, guildID uint64) (archive.Guild, error)
	Channels(ctx context.Context, guildID uint64) ([]archive.Channel, error)
	// Threads lists active and archived threads under channels.
	Threads(ctx context.Context, guildID uint64, channels []archive.Channel) ([]archive.Thread, error)
	// History yields every message of a channel or thread, newest first. Each call starts over.
	History(ctx context.Context, containerID uint64) iter.Seq2[Snapshot, error]
	// Container resolves a channel id to its variant. A nil Container with a nil error
	// means the id is neither a guild channel nor a thread.
	Container(ctx context.Context, guildID, containerID uint64) (Container, error)
	Message(ctx context.Context, containerID, messageID uint64) (Snapshot, error)
}

type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Store is the upsert core. Each call is its own transaction.
type Store interface {
	UpsertGuilds(ctx context.Context, guilds []archive.Guild) error
	UpsertChannels(ctx context.Context, channels []archive.Channel) error
	UpsertThreads(ctx context.Context, threads []archive.Thread) error
	UpsertUsers(ctx context.Context, users []archive.User) error
	UpsertMessages(ctx context.Context, messages []archive.Message) error
	UpsertAttachments(ctx context.Context, attachments []archive.Attachment) error
}

// Mirror receives a copy of every attachment after it is committed.
type Mirror interface {
	Put(ctx context.Context, attachment archive.Attachment) error
}
