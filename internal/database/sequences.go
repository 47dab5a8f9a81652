package database

import (
	"fmt"

	"gorm.io/gorm"
)

// SerialTables are the tables with an auto-increment id column.
var SerialTables = []string{"drafts", "subscribers", "messages"}

// SyncSequences moves each table's id sequence past its largest id. Rows
// copied with explicit ids leave postgres sequences behind, and the next
// insert would collide.
func SyncSequences(db *gorm.DB, tables []string) error {
	if db.Dialector.Name() != "postgres" {
		return fmt.Errorf("sequence sync needs postgres, not %s", db.Dialector.Name())
	}
	for _, table := range tables {
		query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), coalesce(max(id), 0) + 1, false) FROM %s", table, table)
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
	}
	return nil
}
