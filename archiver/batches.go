package archiver

import (
	"context"
	"fmt"

	"github.com/fuad-daoud/discord-archiver/archive"
)

type Batches struct {
	Guilds      []archive.Guild
	Channels    []archive.Channel
	Threads     []archive.Thread
	Users       []archive.User
	Messages    []archive.Message
	Attachments []archive.Attachment
}

func (b Batches) Empty() bool {
	return len(b.Guilds)+len(b.Channels)+len(b.Threads)+len(b.Users)+len(b.Messages)+len(b.Attachments) == 0
}

// LogAttrs is the batch sizes as slog key value pairs.
func (b Batches) LogAttrs() []any {
	return []any{
		"guilds", len(b.Guilds),
		"channels", len(b.Channels),
		"threads", len(b.Threads),
		"users", len(b.Users),
		"messages", len(b.Messages),
		"attachments", len(b.Attachments),
	}
}

// Dump writes b in foreign key order. It stops at the first failing kind; kinds written
// before it stay committed.
func Dump(ctx context.Context, store Store, b Batches) error {
	steps := []struct {
		table  string
		upsert func() error
	}{
		{archive.Guild{}.TableName(), func() error { return store.UpsertGuilds(ctx, b.Guilds) }},
		{archive.Channel{}.TableName(), func() error { return store.UpsertChannels(ctx, b.Channels) }},
		{archive.Thread{}.TableName(), func() error { return store.UpsertThreads(ctx, b.Threads) }},
		{archive.User{}.TableName(), func() error { return store.UpsertUsers(ctx, b.Users) }},
		{archive.Message{}.TableName(), func() error { return store.UpsertMessages(ctx, b.Messages) }},
		{archive.Attachment{}.TableName(), func() error { return store.UpsertAttachments(ctx, b.Attachments) }},
	}
	for _, step := range steps {
		if err := step.upsert(); err != nil {
			return fmt.Errorf("upsert %s: %w", step.table, err)
		}
	}
	return nil
}
