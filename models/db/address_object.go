package dbmodels

import (
	"time"
)

// AdministrativeUnit - административная единица (уровни 1-3)
type AdministrativeUnit struct {
	ObjectID   int64      `gorm:"primaryKey" json:"object_id"`
	ObjectGUID string     `gorm:"type:varchar(36)" json:"object_guid"`
	Name       string     `gorm:"type:varchar(250);index" json:"name"`
	TypeName   string     `gorm:"type:varchar(50)" json:"type_name"`
	LevelID    int        `gorm:"index" json:"level_id"`
	ParentID   *int64     `gorm:"index" json:"parent_id"`
	Oktmo      string     `gorm:"type:varchar(20)" json:"oktmo"`
	Okato      string     `gorm:"type:varchar(20)" json:"okato"`
	IsActive   bool       `gorm:"index" json:"is_active"`
	StatusID   int        `json:"status_id"`
	UpdateDate *time.Time `json:"update_date"`
}

// Settlement - населённый пункт (уровни 4-7)
type Settlement struct {
	ObjectID   int64  `gorm:"primaryKey" json:"object_id"`
	ObjectGUID string `gorm:"type:varchar(36)" json:"object_guid"`
	Name       string `gorm:"type:varchar(250);index" json:"name"`
	TypeName   string `gorm:"type:varchar(50)" json:"type_name"`
	LevelID    int    `gorm:"index" json:"level_id"`
	ParentID   *int64 `gorm:"index" json:"parent_id"`
	// Административная единица, к которой отнесён НП; может отсутствовать
	// (сельские/неклассифицированные территории), это не ошибка
	AdminUnitID *int64     `gorm:"index" json:"admin_unit_id"`
	Oktmo       string     `gorm:"type:varchar(20)" json:"oktmo"`
	IsActive    bool       `gorm:"index" json:"is_active"`
	StatusID    int        `json:"status_id"`
	UpdateDate  *time.Time `json:"update_date"`
}

// Street - улица (уровень 8), обязательно привязана к населённому пункту
type Street struct {
	ObjectID     int64  `gorm:"primaryKey" json:"object_id"`
	ObjectGUID   string `gorm:"type:varchar(36)" json:"object_guid"`
	Name         string `gorm:"type:varchar(250);index" json:"name"`
	TypeName     string `gorm:"type:varchar(50)" json:"type_name"`
	SettlementID int64  `gorm:"index;not null" json:"settlement_id"`
	// Административная единица, через населённый пункт
	AdminUnitID *int64     `gorm:"index" json:"admin_unit_id"`
	IsActive    bool       `gorm:"index" json:"is_active"`
	StatusID    int        `json:"status_id"`
	UpdateDate  *time.Time `json:"update_date"`
}
