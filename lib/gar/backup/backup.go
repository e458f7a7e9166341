package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	s3client "gar-loader/s3"

	"gar-loader/models"
	dbmodels "gar-loader/models/db"
)

// Снимки таблиц перед применением дельты. Снимок живёт в отдельной
// схеме Postgres и описывается строкой-манифестом gar_backups,
// по которой его можно восстановить или удалить
type Provider interface {
	Snapshot(ctx context.Context, versionID int64, tables []string) (*dbmodels.GarBackup, error)
	// Restore возвращает таблицы к состоянию снимка одной транзакцией.
	// Частично восстановленный снимок помечается NEEDS_MANUAL_RESTORE
	Restore(ctx context.Context, rec *dbmodels.GarBackup) error
	Drop(ctx context.Context, rec *dbmodels.GarBackup) error
	Cleanup(ctx context.Context, retentionDays int) (dropped int, err error)
	// ArchiveDelta выгружает применённый архив во внешнее хранилище
	ArchiveDelta(ctx context.Context, versionID int64, archivePath string) error
}

type impl struct {
	db      *gorm.DB
	archive s3client.Provider
}

func NewInstance(DB *gorm.DB, archive s3client.Provider) Provider {
	return &impl{
		db:      DB,
		archive: archive,
	}
}

func (i impl) Snapshot(ctx context.Context, versionID int64, tables []string) (*dbmodels.GarBackup, error) {
	schema := fmt.Sprintf("gar_backup_%v_%v", versionID, time.Now().Unix())
	logger := log.
		WithField("version_id", versionID).
		WithField("backup_schema", schema)

	tx := i.db.WithContext(ctx)
	if err := tx.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schema)).Error; err != nil {
		return nil, errors.Wrap(err, "ошибка создания схемы бэкапа")
	}

	snapshots := make(map[string]string, len(tables))
	for _, table := range tables {
		target := fmt.Sprintf("%q.%q", schema, table)
		err := tx.Exec(fmt.Sprintf("CREATE TABLE %s AS TABLE %q", target, table)).Error
		if err != nil {
			// неполный набор снимков бесполезен, убираем схему целиком
			i.dropSchema(ctx, schema)
			return nil, errors.Wrapf(err, "ошибка снимка таблицы %v", table)
		}
		snapshots[table] = target
	}

	manifest, err := json.Marshal(snapshots)
	if err != nil {
		i.dropSchema(ctx, schema)
		return nil, errors.Wrap(err, "ошибка сериализации манифеста бэкапа")
	}
	rec := dbmodels.GarBackup{
		VersionID:  versionID,
		SchemaName: schema,
		Tables:     string(manifest),
		State:      models.BackupStateReady,
	}
	if err = tx.Create(&rec).Error; err != nil {
		i.dropSchema(ctx, schema)
		return nil, errors.Wrap(err, "ошибка сохранения манифеста бэкапа")
	}
	logger.WithField("tables", len(tables)).Info("снимок таблиц создан")
	return &rec, nil
}

func (i impl) Restore(ctx context.Context, rec *dbmodels.GarBackup) error {
	logger := log.
		WithField("version_id", rec.VersionID).
		WithField("backup_schema", rec.SchemaName)

	if rec.State != models.BackupStateReady {
		return errors.Errorf("снимок в состоянии %v не подлежит восстановлению", rec.State)
	}
	snapshots := map[string]string{}
	if err := json.Unmarshal([]byte(rec.Tables), &snapshots); err != nil {
		return errors.Wrap(err, "ошибка чтения манифеста бэкапа")
	}

	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for table, snapshot := range snapshots {
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %q", table)).Error; err != nil {
				return errors.Wrapf(err, "ошибка очистки таблицы %v", table)
			}
			if err := tx.Exec(fmt.Sprintf("INSERT INTO %q SELECT * FROM %s", table, snapshot)).Error; err != nil {
				return errors.Wrapf(err, "ошибка восстановления таблицы %v", table)
			}
		}
		return nil
	})
	if err != nil {
		i.setState(ctx, rec, models.BackupStateNeedManualRestore)
		logger.WithError(err).Error("восстановление из снимка не выполнено, требуется ручное вмешательство")
		return err
	}
	if err = i.setState(ctx, rec, models.BackupStateRestored); err != nil {
		return err
	}
	logger.Info("таблицы восстановлены из снимка")
	return nil
}

func (i impl) Drop(ctx context.Context, rec *dbmodels.GarBackup) error {
	if err := i.dropSchema(ctx, rec.SchemaName); err != nil {
		return err
	}
	return i.setState(ctx, rec, models.BackupStateDropped)
}

func (i impl) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	deadline := time.Now().AddDate(0, 0, -retentionDays)
	var stale []dbmodels.GarBackup
	err := i.db.WithContext(ctx).
		Where("created_at < ?", deadline).
		Where("state IN ?", []models.BackupState{models.BackupStateReady, models.BackupStateRestored}).
		Find(&stale).Error
	if err != nil {
		return 0, errors.Wrap(err, "ошибка выборки устаревших бэкапов")
	}
	dropped := 0
	for idx := range stale {
		if err = i.Drop(ctx, &stale[idx]); err != nil {
			log.WithError(err).
				WithField("backup_schema", stale[idx].SchemaName).
				Warn("не удалось удалить устаревший бэкап")
			continue
		}
		dropped++
	}
	return dropped, nil
}

func (i impl) ArchiveDelta(ctx context.Context, versionID int64, archivePath string) error {
	if i.archive == nil {
		return nil
	}
	objectName := fmt.Sprintf("deltas/%v/%v", versionID, filepath.Base(archivePath))
	if err := i.archive.UploadArchive(ctx, objectName, archivePath); err != nil {
		return err
	}
	log.
		WithField("version_id", versionID).
		WithField("object_name", objectName).
		Info("архив дельты выгружен в S3")
	return nil
}

func (i impl) dropSchema(ctx context.Context, schema string) error {
	err := i.db.WithContext(ctx).
		Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %q CASCADE", schema)).Error
	return errors.Wrap(err, "ошибка удаления схемы бэкапа")
}

func (i impl) setState(ctx context.Context, rec *dbmodels.GarBackup, state models.BackupState) error {
	rec.State = state
	err := i.db.WithContext(ctx).
		Model(&dbmodels.GarBackup{}).
		Where("id = ?", rec.ID).
		Update("state", state).Error
	return errors.Wrap(err, "ошибка обновления состояния бэкапа")
}
