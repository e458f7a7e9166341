package garstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gar-loader/models"
	dbmodels "gar-loader/models/db"
)

// Хранилище записей реестра: идемпотентные батчевые upsert-операции
// по ключу object_id. Повторная загрузка того же батча приводит
// к тому же конечному состоянию строк

type Provider interface {
	UpsertAdministrativeUnits(ctx context.Context, recs []dbmodels.AdministrativeUnit) error
	UpsertSettlements(ctx context.Context, recs []dbmodels.Settlement) error
	UpsertStreets(ctx context.Context, recs []dbmodels.Street) error
	UpsertHouses(ctx context.Context, recs []dbmodels.House) error
	UpsertCadastralPlots(ctx context.Context, recs []dbmodels.CadastralPlot) error

	// ApplyHouseParams/ApplyPlotParams переносят свёрнутые значения
	// параметров в плоские поля строк
	ApplyHouseParams(ctx context.Context, params map[int64]map[int]string) (updated int64, err error)
	ApplyPlotParams(ctx context.Context, params map[int64]map[int]string) (updated int64, err error)

	// поиск по таблицам для резолвера: родительская цепочка записи
	// из дельты обычно лежит в базе, а не в пакете
	StreetSettlement(objectID int64) (settlementID int64, ok bool)
	SettlementAdminUnit(objectID int64) (adminUnitID int64, ok bool)
	ObjectBand(objectID int64) (lo, hi int, ok bool)

	// BuildFullAddresses пересобирает полные адреса домов из имён
	// их связей одним запросом
	BuildFullAddresses(ctx context.Context) (updated int64, err error)

	CountExisting(ctx context.Context, model interface{}, objectIDs []int64) (int64, error)
}

func NewInstance(DB *gorm.DB) Provider {
	return &impl{
		db: DB,
	}
}

type impl struct {
	db *gorm.DB
}

func upsertByObjectID(ctx context.Context, db *gorm.DB, recs interface{}, msg string) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "object_id"}},
		UpdateAll: true,
	}).Create(recs).Error
	if err != nil {
		return wrapDBError(err, msg)
	}
	return nil
}

func (i impl) UpsertAdministrativeUnits(ctx context.Context, recs []dbmodels.AdministrativeUnit) error {
	if len(recs) == 0 {
		return nil
	}
	return upsertByObjectID(ctx, i.db, &recs, "ошибка загрузки административных единиц")
}

func (i impl) UpsertSettlements(ctx context.Context, recs []dbmodels.Settlement) error {
	if len(recs) == 0 {
		return nil
	}
	return upsertByObjectID(ctx, i.db, &recs, "ошибка загрузки населённых пунктов")
}

func (i impl) UpsertStreets(ctx context.Context, recs []dbmodels.Street) error {
	if len(recs) == 0 {
		return nil
	}
	return upsertByObjectID(ctx, i.db, &recs, "ошибка загрузки улиц")
}

func (i impl) UpsertHouses(ctx context.Context, recs []dbmodels.House) error {
	if len(recs) == 0 {
		return nil
	}
	return upsertByObjectID(ctx, i.db, &recs, "ошибка загрузки домов")
}

func (i impl) UpsertCadastralPlots(ctx context.Context, recs []dbmodels.CadastralPlot) error {
	if len(recs) == 0 {
		return nil
	}
	return upsertByObjectID(ctx, i.db, &recs, "ошибка загрузки земельных участков")
}

// колонки домов, заполняемые из параметров
var houseParamColumns = map[int]string{
	models.ParamTypePostalCode:      "postal_code",
	models.ParamTypeOkato:           "okato",
	models.ParamTypeOktmo:           "oktmo",
	models.ParamTypeCadastralNumber: "cadastral_number",
	models.ParamTypeKladrCode:       "kladr_code",
	models.ParamTypeEgrnNumber:      "egrn_number",
}

var plotParamColumns = map[int]string{
	models.ParamTypeCadastralNumber: "cadastral_number",
}

func (i impl) ApplyHouseParams(ctx context.Context, params map[int64]map[int]string) (int64, error) {
	return i.applyParams(ctx, dbmodels.House{}, houseParamColumns, params, "ошибка применения параметров домов")
}

func (i impl) ApplyPlotParams(ctx context.Context, params map[int64]map[int]string) (int64, error) {
	return i.applyParams(ctx, dbmodels.CadastralPlot{}, plotParamColumns, params, "ошибка применения параметров участков")
}

func (i impl) applyParams(ctx context.Context, model interface{}, columns map[int]string, params map[int64]map[int]string, msg string) (updated int64, err error) {
	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for objectID, values := range params {
			updates := make(map[string]interface{}, len(values))
			for typeID, value := range values {
				column, exist := columns[typeID]
				if !exist {
					continue
				}
				updates[column] = value
			}
			if len(updates) == 0 {
				continue
			}
			res := tx.Model(model).Where("object_id = ?", objectID).Updates(updates)
			if res.Error != nil {
				return wrapDBError(res.Error, msg)
			}
			updated += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (i impl) StreetSettlement(objectID int64) (int64, bool) {
	var rec dbmodels.Street
	err := i.db.Select("object_id", "settlement_id").First(&rec, "object_id = ?", objectID).Error
	if err != nil {
		return 0, false
	}
	return rec.SettlementID, true
}

func (i impl) SettlementAdminUnit(objectID int64) (int64, bool) {
	var rec dbmodels.Settlement
	err := i.db.Select("object_id", "admin_unit_id").First(&rec, "object_id = ?", objectID).Error
	if err != nil || rec.AdminUnitID == nil {
		return 0, false
	}
	return *rec.AdminUnitID, true
}

// ObjectBand классифицирует объект по таблице, в которой он лежит,
// и возвращает диапазон уровней этой таблицы
func (i impl) ObjectBand(objectID int64) (int, int, bool) {
	var count int64
	if err := i.db.Model(&dbmodels.Street{}).Where("object_id = ?", objectID).Count(&count).Error; err == nil && count > 0 {
		return models.LevelStreet, models.LevelStreet, true
	}
	if err := i.db.Model(&dbmodels.Settlement{}).Where("object_id = ?", objectID).Count(&count).Error; err == nil && count > 0 {
		return models.LevelPlaceMin, models.LevelPlaceMax, true
	}
	if err := i.db.Model(&dbmodels.AdministrativeUnit{}).Where("object_id = ?", objectID).Count(&count).Error; err == nil && count > 0 {
		return models.LevelRegionMin, models.LevelRegionMax, true
	}
	return 0, 0, false
}

// BuildFullAddresses - полный адрес дома: административная единица,
// населённый пункт, улица, номер дома с корпусом и строением
func (i impl) BuildFullAddresses(ctx context.Context) (int64, error) {
	res := i.db.WithContext(ctx).Exec(`
		UPDATE houses h SET full_address = TRIM(BOTH ', ' FROM CONCAT_WS(', ',
			u.name,
			NULLIF(CONCAT_WS(' ', s.type_name, s.name), ''),
			NULLIF(CONCAT_WS(' ', st.type_name, st.name), ''),
			CASE WHEN h.house_num <> '' THEN 'д. ' || h.house_num END,
			CASE WHEN h.add_num1 IS NOT NULL AND h.add_num1 <> '' THEN 'к. ' || h.add_num1 END,
			CASE WHEN h.add_num2 IS NOT NULL AND h.add_num2 <> '' THEN 'стр. ' || h.add_num2 END))
		FROM streets st
		JOIN settlements s ON s.object_id = st.settlement_id
		LEFT JOIN administrative_units u ON u.object_id = s.admin_unit_id
		WHERE h.street_id = st.object_id`)
	if res.Error != nil {
		return 0, wrapDBError(res.Error, "ошибка построения полных адресов")
	}
	return res.RowsAffected, nil
}

// CountExisting - выборочная проверка наличия загруженных строк
func (i impl) CountExisting(ctx context.Context, model interface{}, objectIDs []int64) (int64, error) {
	if len(objectIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := i.db.WithContext(ctx).Model(model).Where("object_id IN ?", objectIDs).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "ошибка проверки загруженных строк")
	}
	return count, nil
}

// wrapDBError дополняет ошибку кодом и именем ограничения Postgres
func wrapDBError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errors.Wrap(err, fmt.Sprintf("%s (код %s, ограничение %q)", msg, pgErr.Code, pgErr.ConstraintName))
	}
	return errors.Wrap(err, msg)
}
