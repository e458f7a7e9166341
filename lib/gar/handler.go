package gar

import (
	"time"

	"gar-loader/config"
	"gar-loader/db"
	"gar-loader/lib/gar/backup"
	"gar-loader/lib/gar/fetcher"
	"gar-loader/lib/gar/importer"
	garstore "gar-loader/lib/gar/loader/store"
	"gar-loader/lib/gar/updater"
	s3client "gar-loader/s3"
)

var Instance updater.Provider

func NewHandler() {
	store := garstore.NewInstance(db.DB)
	deps := updater.Deps{
		Fetcher:  fetcher.NewInstance(config.Conf.Gar.SourceURL, config.Conf.Gar.FetchRetries),
		Importer: importer.NewInstance(store, config.Conf.Gar.BatchSize, config.Conf.Gar.RegionCode),
		Backup:   backup.NewInstance(db.DB, s3client.Client),
		Versions: updater.NewVersionStore(db.DB),
	}
	// аренда короче интервала цикла: упавший экземпляр не блокирует
	// обновление надолго, продление идёт по ходу применения дельт
	Instance = updater.NewInstance(deps, updater.Options{
		WorkDir:             config.Conf.Gar.XMLDirectory,
		LeaseTTL:            2 * time.Hour,
		BackupWholeDataset:  config.Conf.Gar.BackupWholeDataset != nil && *config.Conf.Gar.BackupWholeDataset,
		BackupRetentionDays: config.Conf.Gar.BackupRetentionDays,
		UpdateRetentionDays: config.Conf.Gar.UpdateRetentionDays,
	})
}
