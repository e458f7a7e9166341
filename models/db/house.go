package dbmodels

import (
	"time"
)

// House - дом; обязательны привязки к улице и населённому пункту.
// Плоские поля параметров заполняются из AS_HOUSES_PARAMS
type House struct {
	ObjectID    int64   `gorm:"primaryKey" json:"object_id"`
	ObjectGUID  string  `gorm:"type:varchar(36)" json:"object_guid"`
	HouseNum    string  `gorm:"type:varchar(50)" json:"house_num"`
	HouseTypeID *int    `json:"house_type_id"`
	AddNum1     *string `gorm:"type:varchar(20)" json:"add_num1"`
	AddNum2     *string `gorm:"type:varchar(20)" json:"add_num2"`
	AddType1    *int    `json:"add_type1"`
	AddType2    *int    `json:"add_type2"`

	StreetID     int64 `gorm:"index;not null" json:"street_id"`
	SettlementID int64 `gorm:"index;not null" json:"settlement_id"`
	// Административная единица, через населённый пункт
	AdminUnitID *int64 `gorm:"index" json:"admin_unit_id"`

	// Полный адрес собирается из имён связей после загрузки
	FullAddress string `gorm:"type:text" json:"full_address"`

	PostalCode      string `gorm:"type:varchar(10)" json:"postal_code"`
	CadastralNumber string `gorm:"type:varchar(100);index" json:"cadastral_number"`
	Okato           string `gorm:"type:varchar(20)" json:"okato"`
	Oktmo           string `gorm:"type:varchar(20)" json:"oktmo"`
	KladrCode       string `gorm:"type:varchar(20)" json:"kladr_code"`
	EgrnNumber      string `gorm:"type:varchar(50)" json:"egrn_number"`

	IsActive   bool       `gorm:"index" json:"is_active"`
	StatusID   int        `json:"status_id"`
	UpdateDate *time.Time `json:"update_date"`
}
