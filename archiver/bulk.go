package archiver

import (
	"context"
	"fmt"
	"time"

	"github.com/fuad-daoud/discord-archiver/archive"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/fuad-daoud/discord-archiver/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	StageStart       = "Start"
	StageChannels    = "Acquiring Channels"
	StageThreads     = "Acquiring Threads"
	StageMessages    = "Acquiring Messages"
	StageAttachments = "Creating Attachment Data"
	StageUsers       = "Acquiring Users"
	StageDumping     = "Dumping"
	StageDone        = "Done"
)

// Progress receives coarse checkpoints of a full archive run.
type Progress func(stage string)

type Report struct {
	RunID    string
	GuildID  uint64
	Batches  Batches
	Duration time.Duration
}

// ArchiveGuild walks the whole guild and writes everything it finds. It runs for as long
// as the history takes to page through and is meant to be called off the event path.
// Any fetch or store error aborts the run; kinds dumped before the failure stay committed.
func (a *Archiver) ArchiveGuild(ctx context.Context, guildID uint64, progress Progress) (Report, error) {
	report := Report{RunID: uuid.NewString(), GuildID: guildID}
	if !a.startRun(guildID) {
		return report, ErrArchiveRunning
	}
	defer a.finishRun(guildID)

	started := time.Now()
	log := dlog.Log.With("run", report.RunID, "guild", guildID)
	step := func(stage string) {
		log.Info("[Progress] " + stage)
		if progress != nil {
			progress(stage)
		}
	}

	b, err := a.collect(ctx, guildID, step)
	report.Batches = b
	if err != nil {
		metrics.BulkRuns.WithLabelValues("error").Inc()
		log.Error("Archive run failed while collecting", "err", err)
		return report, err
	}

	step(StageDumping)
	if err := a.dump(ctx, guildID, b); err != nil {
		metrics.BulkRuns.WithLabelValues("error").Inc()
		log.Error("Archive run failed while dumping", "err", err)
		return report, err
	}

	report.Duration = time.Since(started)
	metrics.BulkRuns.WithLabelValues("ok").Inc()
	metrics.BulkRunDuration.Observe(report.Duration.Seconds())
	step(StageDone)
	log.Info("Archive run finished", append(b.LogAttrs(), "duration", report.Duration)...)
	return report, nil
}

func (a *Archiver) collect(ctx context.Context, guildID uint64, step Progress) (Batches, error) {
	var b Batches
	step(StageStart)

	guild, err := a.source.Guild(ctx, guildID)
	if err != nil {
		return b, fmt.Errorf("fetch guild %d: %w", guildID, err)
	}
	b.Guilds = []archive.Guild{guild}

	step(StageChannels)
	b.Channels, err = a.source.Channels(ctx, guildID)
	if err != nil {
		return b, fmt.Errorf("fetch channels of guild %d: %w", guildID, err)
	}

	step(StageThreads)
	b.Threads, err = a.source.Threads(ctx, guildID, b.Channels)
	if err != nil {
		return b, fmt.Errorf("fetch threads of guild %d: %w", guildID, err)
	}

	step(StageMessages)
	var containers []uint64
	for _, channel := range b.Channels {
		if channel.HoldsMessages() {
			containers = append(containers, channel.ID)
		}
	}
	for _, thread := range b.Threads {
		containers = append(containers, thread.ID)
	}
	var snapshots []Snapshot
	for _, containerID := range containers {
		for snapshot, err := range a.source.History(ctx, containerID) {
			if err != nil {
				return b, fmt.Errorf("fetch history of %d: %w", containerID, err)
			}
			snapshot.Message.GuildID = guildID
			snapshots = append(snapshots, snapshot)
		}
	}
	b.Messages = make([]archive.Message, 0, len(snapshots))
	for _, snapshot := range snapshots {
		b.Messages = append(b.Messages, snapshot.Message)
	}

	step(StageAttachments)
	b.Attachments, err = a.downloadAttachments(ctx, snapshots)
	if err != nil {
		return b, err
	}

	// authors repeat across messages; the upsert absorbs duplicates
	step(StageUsers)
	b.Users = make([]archive.User, 0, len(snapshots))
	for _, snapshot := range snapshots {
		b.Users = append(b.Users, snapshot.Author)
	}
	return b, nil
}

// downloadAttachments reads the bytes of every attachment of snapshots, keeping their order.
// The first failed download cancels the rest.
func (a *Archiver) downloadAttachments(ctx context.Context, snapshots []Snapshot) ([]archive.Attachment, error) {
	var refs []AttachmentRef
	for _, snapshot := range snapshots {
		refs = append(refs, snapshot.Attachments...)
	}
	attachments := make([]archive.Attachment, len(refs))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)
	for i, ref := range refs {
		group.Go(func() error {
			content, err := a.downloader.Download(ctx, ref.URL)
			if err != nil {
				return fmt.Errorf("download attachment %d of message %d: %w", ref.ID, ref.MessageID, err)
			}
			attachments[i] = archive.Attachment{
				ID:          ref.ID,
				MessageID:   ref.MessageID,
				Filename:    ref.Filename,
				ContentType: ref.ContentType,
				Content:     content,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return attachments, nil
}
