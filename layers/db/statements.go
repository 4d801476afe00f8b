package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Upsert runs one insert-or-update per row keyed by id, updating only updateColumns
// when the id already exists. Associations on the models are never written.
func Upsert[T any](tx *gorm.DB, rows []T, updateColumns ...string) error {
	onConflict := OnConflictID(updateColumns...)
	for i := range rows {
		err := tx.Clauses(onConflict).Omit(clause.Associations).Create(&rows[i]).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func OnConflictID(updateColumns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}
}
