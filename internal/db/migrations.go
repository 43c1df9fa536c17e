// internal/db/migrations.go
package db

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateStaticIPUniqueIndex — (ip, alloc_type) уникален среди живых
// записей, кроме DISCOVERED (6): один и тот же наблюдённый адрес могут
// держать несколько интерфейсов.
func MigrateStaticIPUniqueIndex(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	dialect := db.Dialector.Name()

	switch dialect {
	case "postgres":
		// partial unique index (куда лучше для soft-delete)
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_static_ip_live ON "static_ip_addresses" ("ip", "alloc_type") WHERE "deleted_at" IS NULL AND "alloc_type" <> 6`).Error

	case "sqlite":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_static_ip_live ON static_ip_addresses (ip, alloc_type) WHERE deleted_at IS NULL AND alloc_type <> 6`).Error

	case "mysql":
		// у mysql нет partial-индексов: составной с deleted_at,
		// DISCOVERED-дубли разводит слой ipam
		_ = db.Exec("DROP INDEX `ux_static_ip_live` ON `static_ip_addresses`").Error
		return db.Exec("CREATE UNIQUE INDEX `ux_static_ip_live` ON `static_ip_addresses` (`ip`, `alloc_type`, `deleted_at`)").Error

	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
