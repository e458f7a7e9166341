package db

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"gar-loader/models"
	dbmodels "gar-loader/models/db"
)

func InitPreload() {
	fillHouseTypes()
	fillParamTypes()
}

// справочники статичны: движок их читает, но никогда не изменяет,
// поэтому при загрузке существующие строки не трогаем
func fillHouseTypes() {
	items := []dbmodels.HouseType{
		{ID: 1, Name: "Владение", ShortName: "влд.", Category: "residential"},
		{ID: 2, Name: "Дом", ShortName: "д.", Category: "residential"},
		{ID: 3, Name: "Домовладение", ShortName: "домовлад.", Category: "residential"},
		{ID: 4, Name: "Гараж", ShortName: "гар.", Category: "other"},
		{ID: 5, Name: "Здание", ShortName: "зд.", Category: "residential"},
		{ID: 6, Name: "Шахта", ShortName: "шахта", Category: "other"},
		{ID: 7, Name: "Строение", ShortName: "стр.", Category: "other"},
		{ID: 8, Name: "Сооружение", ShortName: "соор.", Category: "other"},
		{ID: 9, Name: "Литера", ShortName: "литера", Category: "other"},
		{ID: 10, Name: "Корпус", ShortName: "к.", Category: "residential"},
	}
	err := DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error
	if err != nil {
		log.WithError(err).Error("ошибка заполнения справочника типов домов")
	}
}

func fillParamTypes() {
	items := []dbmodels.ParamType{
		{ID: models.ParamTypePostalCode, Name: "Почтовый индекс", Code: "PostIndex"},
		{ID: models.ParamTypeOkato, Name: "ОКАТО", Code: "OKATO"},
		{ID: models.ParamTypeOktmo, Name: "ОКТМО", Code: "OKTMO"},
		{ID: models.ParamTypeCadastralNumber, Name: "Кадастровый номер", Code: "CadastralNumber"},
		{ID: models.ParamTypeKladrCode, Name: "Код КЛАДР", Code: "CodeKLADR"},
		{ID: models.ParamTypeEgrnNumber, Name: "Номер ЕГРН", Code: "EGRN"},
	}
	err := DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error
	if err != nil {
		log.WithError(err).Error("ошибка заполнения справочника типов параметров")
	}
}
