package db

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	dbmodels "gar-loader/models/db"
)

func AutoMigrateDB() error {
	log.Info("Запуск миграций")
	if err := DB.AutoMigrate(&dbmodels.HouseType{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры HouseType")
	}
	if err := DB.AutoMigrate(&dbmodels.ParamType{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры ParamType")
	}
	if err := DB.AutoMigrate(&dbmodels.AdministrativeUnit{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры AdministrativeUnit")
	}
	if err := DB.AutoMigrate(&dbmodels.Settlement{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры Settlement")
	}
	if err := DB.AutoMigrate(&dbmodels.Street{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры Street")
	}
	if err := DB.AutoMigrate(&dbmodels.House{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры House")
	}
	if err := DB.AutoMigrate(&dbmodels.CadastralPlot{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры CadastralPlot")
	}
	if err := DB.AutoMigrate(&dbmodels.GarVersion{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры GarVersion")
	}
	if err := DB.AutoMigrate(&dbmodels.GarBackup{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры GarBackup")
	}
	if err := DB.AutoMigrate(&dbmodels.UpdateLease{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры UpdateLease")
	}
	log.Info("Миграция прошла успешно")
	return nil
}
