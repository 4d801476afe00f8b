package platform

import (
	"iter"
	"time"

	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-archiver/archive"
	"github.com/fuad-daoud/discord-archiver/archiver"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"golang.org/x/net/context"
)

const (
	historyPageSize = 100
	threadPageSize  = 100
)

// ActiveThreads lists the unarchived threads of a guild.
type ActiveThreads func(guildID snowflake.ID) []discord.GuildThread

// CachedThreads reads active threads from the gateway channel cache, which guild create
// and thread events keep current.
func CachedThreads(caches cache.Caches) ActiveThreads {
	return func(guildID snowflake.ID) []discord.GuildThread {
		var threads []discord.GuildThread
		caches.ChannelsForEach(func(channel discord.GuildChannel) {
			if channel.GuildID() != guildID {
				return
			}
			if thread, ok := channel.(discord.GuildThread); ok {
				threads = append(threads, thread)
			}
		})
		return threads
	}
}

// Source reads guild content over the Discord REST API.
type Source struct {
	rest          rest.Rest
	activeThreads ActiveThreads
}

func NewSource(rest rest.Rest, activeThreads ActiveThreads) *Source {
	return &Source{rest: rest, activeThreads: activeThreads}
}

var _ archiver.Source = (*Source)(nil)

func (s *Source) Guild(ctx context.Context, guildID uint64) (archive.Guild, error) {
	guild, err := s.rest.GetGuild(snowflake.ID(guildID), false, rest.WithCtx(ctx))
	if err != nil {
		return archive.Guild{}, err
	}
	return toGuild(guild.Guild), nil
}

// Channels returns every non thread channel of the guild, categories included.
func (s *Source) Channels(ctx context.Context, guildID uint64) ([]archive.Channel, error) {
	channels, err := s.rest.GetGuildChannels(snowflake.ID(guildID), rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	result := make([]archive.Channel, 0, len(channels))
	for _, channel := range channels {
		if isThread(channel.Type()) {
			continue
		}
		result = append(result, toChannel(channel))
	}
	return result, nil
}

// Threads returns the guild's active threads plus the public archived threads of every
// channel that can hold threads, each thread once.
func (s *Source) Threads(ctx context.Context, guildID uint64, channels []archive.Channel) ([]archive.Thread, error) {
	var active []discord.GuildThread
	if s.activeThreads != nil {
		active = s.activeThreads(snowflake.ID(guildID))
	}
	seen := make(map[uint64]struct{})
	var threads []archive.Thread
	add := func(thread discord.GuildThread) {
		if _, ok := seen[uint64(thread.ID())]; ok {
			return
		}
		seen[uint64(thread.ID())] = struct{}{}
		threads = append(threads, toThread(thread))
	}
	for _, thread := range active {
		add(thread)
	}

	for _, channel := range channels {
		if !channel.HoldsThreads() {
			continue
		}
		var before time.Time
		for {
			page, err := s.rest.GetPublicArchivedThreads(snowflake.ID(channel.ID), before, threadPageSize, rest.WithCtx(ctx))
			if err != nil {
				return nil, err
			}
			for _, thread := range page.Threads {
				add(thread)
			}
			if !page.HasMore || len(page.Threads) == 0 {
				break
			}
			before = page.Threads[len(page.Threads)-1].ThreadMetadata.ArchiveTimestamp
		}
	}
	dlog.Debug("Listed threads", "guild", guildID, "active", len(active), "total", len(threads))
	return threads, nil
}

// History pages backwards from the newest message of the channel or thread.
func (s *Source) History(ctx context.Context, containerID uint64) iter.Seq2[archiver.Snapshot, error] {
	return func(yield func(archiver.Snapshot, error) bool) {
		var before snowflake.ID
		for {
			messages, err := s.rest.GetMessages(snowflake.ID(containerID), 0, before, 0, historyPageSize, rest.WithCtx(ctx))
			if err != nil {
				yield(archiver.Snapshot{}, err)
				return
			}
			for _, message := range messages {
				if !yield(SnapshotOf(message), nil) {
					return
				}
			}
			if len(messages) < historyPageSize {
				return
			}
			before = messages[len(messages)-1].ID
		}
	}
}

func (s *Source) Container(ctx context.Context, guildID, containerID uint64) (archiver.Container, error) {
	channel, err := s.rest.GetChannel(snowflake.ID(containerID), rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	guildChannel, ok := channel.(discord.GuildChannel)
	if !ok {
		return nil, nil
	}
	if !isThread(guildChannel.Type()) {
		return archiver.TopLevel{Channel: toChannel(guildChannel)}, nil
	}

	thread := toThread(guildChannel)
	parent, err := s.rest.GetChannel(snowflake.ID(thread.ChannelID), rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	parentChannel, ok := parent.(discord.GuildChannel)
	if !ok {
		return nil, nil
	}
	return archiver.InThread{Thread: thread, Parent: toChannel(parentChannel)}, nil
}

func (s *Source) Message(ctx context.Context, containerID, messageID uint64) (archiver.Snapshot, error) {
	message, err := s.rest.GetMessage(snowflake.ID(containerID), snowflake.ID(messageID), rest.WithCtx(ctx))
	if err != nil {
		return archiver.Snapshot{}, err
	}
	return SnapshotOf(*message), nil
}
