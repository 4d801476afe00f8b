package platform

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-archiver/archive"
	"github.com/fuad-daoud/discord-archiver/archiver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

// fakeRest answers the handful of REST calls the source makes. Anything else panics
// through the nil embedded interface.
type fakeRest struct {
	rest.Rest
	messages map[snowflake.ID][]discord.Message
	channels map[snowflake.ID]discord.Channel
	err      error

	// archived holds each channel's archived threads, most recently archived first
	archived     map[snowflake.ID][]discord.GuildThread
	archivedPage int
	archiveCalls []archiveCall

	befores []snowflake.ID
	dms     []snowflake.ID
	sent    []discord.MessageCreate
}

func (f *fakeRest) GetMessages(channelID snowflake.ID, around snowflake.ID, before snowflake.ID, after snowflake.ID, limit int, opts ...rest.RequestOpt) ([]discord.Message, error) {
	f.befores = append(f.befores, before)
	if f.err != nil {
		return nil, f.err
	}
	var page []discord.Message
	for _, message := range f.messages[channelID] {
		if before != 0 && message.ID >= before {
			continue
		}
		page = append(page, message)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

type archiveCall struct {
	channelID snowflake.ID
	before    time.Time
}

func (f *fakeRest) GetPublicArchivedThreads(channelID snowflake.ID, before time.Time, limit int, opts ...rest.RequestOpt) (*discord.GetThreads, error) {
	f.archiveCalls = append(f.archiveCalls, archiveCall{channelID: channelID, before: before})
	if f.err != nil {
		return nil, f.err
	}
	if f.archivedPage > 0 && f.archivedPage < limit {
		limit = f.archivedPage
	}
	var older []discord.GuildThread
	for _, thread := range f.archived[channelID] {
		if before.IsZero() || thread.ThreadMetadata.ArchiveTimestamp.Before(before) {
			older = append(older, thread)
		}
	}
	page := &discord.GetThreads{HasMore: len(older) > limit}
	if len(older) > limit {
		older = older[:limit]
	}
	page.Threads = older
	return page, nil
}

func (f *fakeRest) GetChannel(channelID snowflake.ID, opts ...rest.RequestOpt) (discord.Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	channel, ok := f.channels[channelID]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return channel, nil
}

func (f *fakeRest) GetMessage(channelID snowflake.ID, messageID snowflake.ID, opts ...rest.RequestOpt) (*discord.Message, error) {
	for _, message := range f.messages[channelID] {
		if message.ID == messageID {
			return &message, nil
		}
	}
	return nil, errors.New("unknown message")
}

func (f *fakeRest) CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error) {
	f.dms = append(f.dms, userID)
	return &discord.DMChannel{}, nil
}

func (f *fakeRest) CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error) {
	f.sent = append(f.sent, messageCreate)
	return &discord.Message{}, nil
}

// newestFirst builds n messages in channel, ordered the way Discord returns history.
func newestFirst(channelID snowflake.ID, n int) []discord.Message {
	messages := make([]discord.Message, 0, n)
	for i := n; i > 0; i-- {
		messages = append(messages, discord.Message{
			ID:        snowflake.ID(1000 + i),
			ChannelID: channelID,
			Content:   "message",
			Author:    discord.User{ID: 7, Username: "fuad"},
		})
	}
	return messages
}

func collectHistory(t *testing.T, source *Source, containerID uint64) ([]archiver.Snapshot, error) {
	t.Helper()
	var snapshots []archiver.Snapshot
	for snapshot, err := range source.History(context.Background(), containerID) {
		if err != nil {
			return snapshots, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func TestHistory(t *testing.T) {
	tests := []struct {
		name      string
		messages  int
		wantPages int
	}{
		{"Testing empty channel", 0, 1},
		{"Testing single page", 5, 1},
		{"Testing exact page size", historyPageSize, 2},
		{"Testing several pages", 2*historyPageSize + 30, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRest{messages: map[snowflake.ID][]discord.Message{10: newestFirst(10, tt.messages)}}
			snapshots, err := collectHistory(t, NewSource(fake, nil), 10)
			require.NoError(t, err)
			assert.Len(t, snapshots, tt.messages)
			assert.Len(t, fake.befores, tt.wantPages)
			assert.Zero(t, fake.befores[0], "the first page starts at the newest message")

			seen := make(map[uint64]bool)
			for _, snapshot := range snapshots {
				assert.False(t, seen[snapshot.Message.ID], "message %d yielded twice", snapshot.Message.ID)
				seen[snapshot.Message.ID] = true
			}
		})
	}
}

func TestHistoryStopsEarly(t *testing.T) {
	fake := &fakeRest{messages: map[snowflake.ID][]discord.Message{10: newestFirst(10, 3*historyPageSize)}}
	count := 0
	for range NewSource(fake, nil).History(context.Background(), 10) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
	assert.Len(t, fake.befores, 1)
}

func TestHistoryError(t *testing.T) {
	fake := &fakeRest{err: errors.New("discord unavailable")}
	snapshots, err := collectHistory(t, NewSource(fake, nil), 10)
	assert.ErrorIs(t, err, fake.err)
	assert.Empty(t, snapshots)
}

func TestContainer(t *testing.T) {
	fake := &fakeRest{channels: map[snowflake.ID]discord.Channel{
		10: textChannel(t, 10, 1, 0),
		20: publicThread(t, 20, 1, 10),
		30: discord.DMChannel{},
	}}
	source := NewSource(fake, nil)

	t.Run("Testing top level channel", func(t *testing.T) {
		container, err := source.Container(context.Background(), 1, 10)
		require.NoError(t, err)
		require.IsType(t, archiver.TopLevel{}, container)
		assert.EqualValues(t, 10, container.(archiver.TopLevel).Channel.ID)
	})
	t.Run("Testing thread resolves its parent", func(t *testing.T) {
		container, err := source.Container(context.Background(), 1, 20)
		require.NoError(t, err)
		require.IsType(t, archiver.InThread{}, container)
		inThread := container.(archiver.InThread)
		assert.Equal(t, archive.Thread{ID: 20, Name: "questions", GuildID: 1, ChannelID: 10}, inThread.Thread)
		assert.EqualValues(t, 10, inThread.Parent.ID)
	})
	t.Run("Testing direct message channel is unsupported", func(t *testing.T) {
		container, err := source.Container(context.Background(), 1, 30)
		require.NoError(t, err)
		assert.Nil(t, container)
	})
	t.Run("Testing unknown channel", func(t *testing.T) {
		_, err := source.Container(context.Background(), 1, 40)
		assert.Error(t, err)
	})
}

func TestMessage(t *testing.T) {
	fake := &fakeRest{messages: map[snowflake.ID][]discord.Message{10: newestFirst(10, 2)}}
	snapshot, err := NewSource(fake, nil).Message(context.Background(), 10, 1001)
	require.NoError(t, err)
	assert.EqualValues(t, 1001, snapshot.Message.ID)
	assert.EqualValues(t, 7, snapshot.Author.ID)
}

func TestNotifier(t *testing.T) {
	t.Run("Testing owner receives the status", func(t *testing.T) {
		fake := &fakeRest{}
		require.NoError(t, NewNotifier(fake, 42).Notify(context.Background(), "Bot is up"))
		assert.Equal(t, []snowflake.ID{42}, fake.dms)
		require.Len(t, fake.sent, 1)
		require.Len(t, fake.sent[0].Embeds, 1)
		require.Len(t, fake.sent[0].Embeds[0].Fields, 1)
		assert.Equal(t, "Status", fake.sent[0].Embeds[0].Fields[0].Name)
		assert.Equal(t, "Bot is up", fake.sent[0].Embeds[0].Fields[0].Value)
	})
	t.Run("Testing zero owner sends nothing", func(t *testing.T) {
		fake := &fakeRest{}
		require.NoError(t, NewNotifier(fake, 0).Notify(context.Background(), "Bot is up"))
		assert.Empty(t, fake.dms)
	})
}

func TestStatusMessageFooter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	message := statusMessage("done", now)
	require.Len(t, message.Embeds, 1)
	require.NotNil(t, message.Embeds[0].Footer)
	assert.Equal(t, "2024-05-01 12:30:00", message.Embeds[0].Footer.Text)
}

var archivedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func archivedThread(t *testing.T, id, parentID int, age time.Duration) discord.GuildThread {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"id":        snowflake.ID(id).String(),
		"type":      discord.ChannelTypeGuildPublicThread,
		"guild_id":  "1",
		"parent_id": snowflake.ID(parentID).String(),
		"name":      "old",
		"thread_metadata": map[string]any{
			"archived":          true,
			"archive_timestamp": archivedAt.Add(-age),
		},
	})
	require.NoError(t, err)
	var thread discord.GuildThread
	require.NoError(t, json.Unmarshal(data, &thread))
	return thread
}

func threadIDs(threads []archive.Thread) []uint64 {
	ids := make([]uint64, 0, len(threads))
	for _, thread := range threads {
		ids = append(ids, thread.ID)
	}
	return ids
}

func TestThreads(t *testing.T) {
	text := archive.Channel{ID: 10, Type: archive.TypeText, GuildID: 1}
	forum := archive.Channel{ID: 11, Type: archive.TypeForum, GuildID: 1}
	voice := archive.Channel{ID: 12, Type: archive.TypeVoice, GuildID: 1}
	category := archive.Channel{ID: 13, Type: archive.TypeCategory, GuildID: 1}

	tests := []struct {
		name         string
		channels     []archive.Channel
		active       []discord.GuildThread
		archived     map[snowflake.ID][]discord.GuildThread
		archivedPage int
		want         []uint64
		wantCalls    []archiveCall
	}{
		{
			name:      "Testing active threads only",
			channels:  []archive.Channel{text},
			active:    []discord.GuildThread{publicThread(t, 20, 1, 10)},
			want:      []uint64{20},
			wantCalls: []archiveCall{{channelID: 10}},
		},
		{
			name:     "Testing active and archived threads are merged once",
			channels: []archive.Channel{text, forum},
			active:   []discord.GuildThread{publicThread(t, 20, 1, 10)},
			archived: map[snowflake.ID][]discord.GuildThread{
				10: {archivedThread(t, 20, 10, time.Hour), archivedThread(t, 21, 10, 2*time.Hour)},
				11: {archivedThread(t, 30, 11, time.Hour)},
			},
			want:      []uint64{20, 21, 30},
			wantCalls: []archiveCall{{channelID: 10}, {channelID: 11}},
		},
		{
			name:     "Testing archived pages follow the archive timestamp",
			channels: []archive.Channel{text},
			archived: map[snowflake.ID][]discord.GuildThread{
				10: {
					archivedThread(t, 21, 10, time.Hour),
					archivedThread(t, 22, 10, 2*time.Hour),
					archivedThread(t, 23, 10, 3*time.Hour),
				},
			},
			archivedPage: 2,
			want:         []uint64{21, 22, 23},
			wantCalls: []archiveCall{
				{channelID: 10},
				{channelID: 10, before: archivedAt.Add(-2 * time.Hour)},
			},
		},
		{
			name:      "Testing channels without threads are skipped",
			channels:  []archive.Channel{voice, category},
			want:      []uint64{},
			wantCalls: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRest{archived: tt.archived, archivedPage: tt.archivedPage}
			active := func(guildID snowflake.ID) []discord.GuildThread {
				assert.EqualValues(t, 1, guildID)
				return tt.active
			}

			threads, err := NewSource(fake, active).Threads(context.Background(), 1, tt.channels)
			require.NoError(t, err)
			assert.Equal(t, tt.want, threadIDs(threads))
			require.Len(t, fake.archiveCalls, len(tt.wantCalls))
			for i, call := range tt.wantCalls {
				assert.Equal(t, call.channelID, fake.archiveCalls[i].channelID)
				assert.True(t, call.before.Equal(fake.archiveCalls[i].before), "page %d before %s", i, fake.archiveCalls[i].before)
			}
		})
	}
}

func TestThreadsArchiveError(t *testing.T) {
	fake := &fakeRest{err: errors.New("missing access")}
	_, err := NewSource(fake, nil).Threads(context.Background(), 1, []archive.Channel{{ID: 10, Type: archive.TypeText}})
	assert.ErrorIs(t, err, fake.err)
}
