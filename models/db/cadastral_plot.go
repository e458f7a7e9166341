package dbmodels

import (
	"time"
)

// CadastralPlot - земельный участок. Кадастровый номер уникален,
// пустые значения из проверки уникальности исключены
type CadastralPlot struct {
	ObjectID        int64   `gorm:"primaryKey" json:"object_id"`
	ObjectGUID      string  `gorm:"type:varchar(36)" json:"object_guid"`
	Number          string  `gorm:"type:varchar(250)" json:"number"`
	CadastralNumber string  `gorm:"type:varchar(100);index:idx_plots_cadnum,unique,where:cadastral_number <> ''" json:"cadastral_number"`
	Area            float64 `json:"area"`
	Purpose         string  `gorm:"type:varchar(100)" json:"purpose"`
	StreetID        *int64  `gorm:"index" json:"street_id"`
	SettlementID    *int64  `gorm:"index" json:"settlement_id"`
	// Административная единица, через населённый пункт
	AdminUnitID *int64     `gorm:"index" json:"admin_unit_id"`
	IsActive    bool       `gorm:"index" json:"is_active"`
	StatusID    int        `json:"status_id"`
	UpdateDate  *time.Time `json:"update_date"`
}
