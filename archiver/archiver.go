package archiver

import (
	"context"
	"errors"
	"sync"

	"github.com/fuad-daoud/discord-archiver/archive"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/fuad-daoud/discord-archiver/metrics"
)

var ErrArchiveRunning = errors.New("a full archive of this guild is already running")

type Archiver struct {
	source      Source
	store       Store
	downloader  Downloader
	mirror      Mirror
	concurrency int

	mu      sync.Mutex
	guilds  map[uint64]*sync.Mutex
	running map[uint64]struct{}
}

type Option func(a *Archiver)

// WithConcurrency bounds parallel attachment downloads.
func WithConcurrency(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithMirror(mirror Mirror) Option {
	return func(a *Archiver) {
		a.mirror = mirror
	}
}

func New(source Source, store Store, downloader Downloader, opts ...Option) *Archiver {
	a := &Archiver{
		source:      source,
		store:       store,
		downloader:  downloader,
		concurrency: 4,
		guilds:      make(map[uint64]*sync.Mutex),
		running:     make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Running reports whether a full archive of guildID is in flight.
func (a *Archiver) Running(guildID uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.running[guildID]
	return ok
}

func (a *Archiver) startRun(guildID uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.running[guildID]; ok {
		return false
	}
	a.running[guildID] = struct{}{}
	return true
}

func (a *Archiver) finishRun(guildID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.running, guildID)
}

// lockGuild serializes writes for one guild: the dump of a full archive and
// incremental updates never interleave.
func (a *Archiver) lockGuild(guildID uint64) func() {
	a.mu.Lock()
	lock, ok := a.guilds[guildID]
	if !ok {
		lock = &sync.Mutex{}
		a.guilds[guildID] = lock
	}
	a.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// dump writes b under the guild lock. Mirroring runs after the lock is released.
func (a *Archiver) dump(ctx context.Context, guildID uint64, b Batches) error {
	if b.Empty() {
		return nil
	}
	unlock := a.lockGuild(guildID)
	err := Dump(ctx, a.store, b)
	unlock()
	if err != nil {
		return err
	}
	a.mirrorAttachments(ctx, b.Attachments)
	return nil
}

func (a *Archiver) mirrorAttachments(ctx context.Context, attachments []archive.Attachment) {
	if a.mirror == nil {
		return
	}
	for _, attachment := range attachments {
		if err := a.mirror.Put(ctx, attachment); err != nil {
			metrics.MirrorUploads.WithLabelValues("error").Inc()
			dlog.Warn("Failed to mirror attachment", "attachment", attachment.ID, "message", attachment.MessageID, "err", err)
			continue
		}
		metrics.MirrorUploads.WithLabelValues("ok").Inc()
	}
}
