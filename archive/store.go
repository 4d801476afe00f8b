package archive

import (
	"context"

	"github.com/fuad-daoud/discord-archiver/layers/db"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/fuad-daoud/discord-archiver/metrics"
	"gorm.io/gorm"
)

// Store is the only writer of the archive. Every Upsert* call is one transaction:
// all rows commit together or none do, and a failed batch never touches earlier batches.
type Store struct {
	conn *db.Connection
}

func NewStore(conn *db.Connection) *Store {
	return &Store{conn: conn}
}

func (s *Store) UpsertGuilds(ctx context.Context, guilds []Guild) error {
	return upsert(ctx, s.conn, Guild{}.TableName(), guilds, "name", "icon_url")
}

func (s *Store) UpsertChannels(ctx context.Context, channels []Channel) error {
	return upsert(ctx, s.conn, Channel{}.TableName(), channels, "name")
}

func (s *Store) UpsertThreads(ctx context.Context, threads []Thread) error {
	return upsert(ctx, s.conn, Thread{}.TableName(), threads, "name")
}

func (s *Store) UpsertUsers(ctx context.Context, users []User) error {
	return upsert(ctx, s.conn, User{}.TableName(), users, "name", "discriminator", "avatar_url")
}

func (s *Store) UpsertMessages(ctx context.Context, messages []Message) error {
	return upsert(ctx, s.conn, Message{}.TableName(), messages, "content", "edited_at")
}

func (s *Store) UpsertAttachments(ctx context.Context, attachments []Attachment) error {
	return upsert(ctx, s.conn, Attachment{}.TableName(), attachments, "content")
}

func upsert[T any](ctx context.Context, conn *db.Connection, table string, rows []T, updateColumns ...string) error {
	if len(rows) == 0 {
		return nil
	}
	err := conn.Transaction(ctx, func(tx *gorm.DB) error {
		return db.Upsert(tx, rows, updateColumns...)
	})
	if err != nil {
		metrics.BatchFailures.WithLabelValues(table).Inc()
		dlog.Error("Upsert batch rolled back", "table", table, "rows", len(rows), "err", err)
		return err
	}
	metrics.RowsUpserted.WithLabelValues(table).Add(float64(len(rows)))
	dlog.Debug("Upserted batch", "table", table, "rows", len(rows))
	return nil
}

// Migrate creates or extends the six archive tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.conn.Gorm().WithContext(ctx).AutoMigrate(Tables()...)
}

// Counts returns the number of rows per table, keyed by table name.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range Tables() {
		var count int64
		if err := s.conn.Gorm().WithContext(ctx).Model(table).Count(&count).Error; err != nil {
			return nil, err
		}
		counts[table.(interface{ TableName() string }).TableName()] = count
	}
	return counts, nil
}
