package archiver

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/fuad-daoud/discord-archiver/archive"
)

type fakeSource struct {
	guild      archive.Guild
	channels   []archive.Channel
	threads    []archive.Thread
	history    map[uint64][]Snapshot
	containers map[uint64]Container
	messages   map[uint64]Snapshot

	historyErr error
	// block, when set, is waited on inside Channels
	block chan struct{}

	mu           sync.Mutex
	historyCalls []uint64
}

func (f *fakeSource) Guild(ctx context.Context, guildID uint64) (archive.Guild, error) {
	return f.guild, nil
}

func (f *fakeSource) Channels(ctx context.Context, guildID uint64) ([]archive.Channel, error) {
	if f.block != nil {
		<-f.block
	}
	return f.channels, nil
}

func (f *fakeSource) Threads(ctx context.Context, guildID uint64, channels []archive.Channel) ([]archive.Thread, error) {
	return f.threads, nil
}

func (f *fakeSource) History(ctx context.Context, containerID uint64) iter.Seq2[Snapshot, error] {
	f.mu.Lock()
	f.historyCalls = append(f.historyCalls, containerID)
	f.mu.Unlock()
	return func(yield func(Snapshot, error) bool) {
		if f.historyErr != nil {
			yield(Snapshot{}, f.historyErr)
			return
		}
		for _, snapshot := range f.history[containerID] {
			if !yield(snapshot, nil) {
				return
			}
		}
	}
}

func (f *fakeSource) Container(ctx context.Context, guildID, containerID uint64) (Container, error) {
	return f.containers[containerID], nil
}

func (f *fakeSource) Message(ctx context.Context, containerID, messageID uint64) (Snapshot, error) {
	snapshot, ok := f.messages[messageID]
	if !ok {
		return Snapshot{}, errors.New("unknown message")
	}
	return snapshot, nil
}

type fakeDownloader struct {
	files map[string][]byte
	err   error
}

func (f *fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.files[url]
	if !ok {
		return nil, errors.New("404 " + url)
	}
	return content, nil
}

// recordingStore keeps every batch it is given, in call order.
type recordingStore struct {
	mu     sync.Mutex
	calls  []string
	failOn string
	err    error

	batches Batches
}

func (s *recordingStore) record(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, table)
	if table == s.failOn {
		return s.err
	}
	return nil
}

func (s *recordingStore) UpsertGuilds(ctx context.Context, guilds []archive.Guild) error {
	s.batches.Guilds = append(s.batches.Guilds, guilds...)
	return s.record("Guilds")
}

func (s *recordingStore) UpsertChannels(ctx context.Context, channels []archive.Channel) error {
	s.batches.Channels = append(s.batches.Channels, channels...)
	return s.record("Channels")
}

func (s *recordingStore) UpsertThreads(ctx context.Context, threads []archive.Thread) error {
	s.batches.Threads = append(s.batches.Threads, threads...)
	return s.record("Threads")
}

func (s *recordingStore) UpsertUsers(ctx context.Context, users []archive.User) error {
	s.batches.Users = append(s.batches.Users, users...)
	return s.record("Users")
}

func (s *recordingStore) UpsertMessages(ctx context.Context, messages []archive.Message) error {
	s.batches.Messages = append(s.batches.Messages, messages...)
	return s.record("Messages")
}

func (s *recordingStore) UpsertAttachments(ctx context.Context, attachments []archive.Attachment) error {
	s.batches.Attachments = append(s.batches.Attachments, attachments...)
	return s.record("MessageAttachments")
}

type fakeMirror struct {
	err error
	put []uint64
}

func (m *fakeMirror) Put(ctx context.Context, attachment archive.Attachment) error {
	m.put = append(m.put, attachment.ID)
	return m.err
}
