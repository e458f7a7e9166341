package dbmodels

// HouseType - справочник типов домов, движок его только читает
type HouseType struct {
	ID        int    `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"type:varchar(100)" json:"name"`
	ShortName string `gorm:"type:varchar(20)" json:"short_name"`
	Category  string `gorm:"type:varchar(20)" json:"category"`
}

// ParamType - справочник типов параметров адресных объектов
type ParamType struct {
	ID   int    `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(100)" json:"name"`
	Code string `gorm:"type:varchar(50)" json:"code"`
}
