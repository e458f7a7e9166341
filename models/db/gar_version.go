package dbmodels

import (
	"time"

	"gar-loader/models"
)

// GarVersion - применённая версия реестра; текущая версия - максимальная строка
type GarVersion struct {
	VersionID   int64     `gorm:"primaryKey" json:"version_id"`
	TextVersion string    `gorm:"type:varchar(100)" json:"text_version"`
	AppliedAt   time.Time `json:"applied_at"`
}

// GarBackup - манифест снимка таблиц перед применением дельты
type GarBackup struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	VersionID  int64     `gorm:"index" json:"version_id"`
	SchemaName string    `gorm:"type:varchar(100)" json:"schema_name"`
	// JSON-карта: имя таблицы -> имя таблицы-снимка в схеме бэкапа
	Tables string             `gorm:"type:text" json:"tables"`
	State  models.BackupState `gorm:"type:varchar(30);index" json:"state"`
}

// UpdateLease - запись эксклюзивной аренды роли применения обновлений.
// Второй экземпляр демона, увидев живую аренду, пропускает свой цикл
type UpdateLease struct {
	Name      string    `gorm:"primaryKey;type:varchar(50)" json:"name"`
	Holder    string    `gorm:"type:varchar(100)" json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}
