package updater

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	garapimodels "gar-loader/models/api/gar"
	dbmodels "gar-loader/models/db"
)

// VersionStore - отметка применённых версий и аренда роли обновления
type VersionStore interface {
	// CurrentVersion - максимальная применённая версия, 0 если база пуста
	CurrentVersion(ctx context.Context) (int64, error)
	MarkApplied(ctx context.Context, info garapimodels.VersionInfo) error

	// AcquireLease пытается занять аренду; false - аренда живa у другого
	// экземпляра. Повторный вызов того же держателя продлевает аренду
	AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, holder string) error
}

const leaseName = "gar-update"

type versionStore struct {
	db *gorm.DB
}

func NewVersionStore(DB *gorm.DB) VersionStore {
	return &versionStore{db: DB}
}

func (s versionStore) CurrentVersion(ctx context.Context) (int64, error) {
	var rec dbmodels.GarVersion
	err := s.db.WithContext(ctx).
		Order("version_id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "ошибка чтения текущей версии")
	}
	return rec.VersionID, nil
}

func (s versionStore) MarkApplied(ctx context.Context, info garapimodels.VersionInfo) error {
	rec := dbmodels.GarVersion{
		VersionID:   info.VersionID,
		TextVersion: info.TextVersion,
		AppliedAt:   time.Now(),
	}
	err := s.db.WithContext(ctx).Save(&rec).Error
	return errors.Wrap(err, "ошибка отметки применённой версии")
}

// Аренда берётся одним атомарным запросом: вставка либо перехват
// истёкшей или своей записи. Ноль затронутых строк - аренда чужая
func (s versionStore) AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	res := s.db.WithContext(ctx).Exec(`
		INSERT INTO update_leases (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE update_leases.expires_at < ? OR update_leases.holder = EXCLUDED.holder`,
		leaseName, holder, time.Now().Add(ttl), time.Now())
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "ошибка захвата аренды обновления")
	}
	return res.RowsAffected > 0, nil
}

func (s versionStore) ReleaseLease(ctx context.Context, holder string) error {
	err := s.db.WithContext(ctx).
		Where("name = ? AND holder = ?", leaseName, holder).
		Delete(&dbmodels.UpdateLease{}).Error
	return errors.Wrap(err, "ошибка освобождения аренды обновления")
}
