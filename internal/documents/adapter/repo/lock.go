package repo

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// rowLock adds SELECT ... FOR UPDATE where the dialect supports it. SQLite
// has no row locks; its single writer serializes instead.
func rowLock(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
