package resolver

import (
	"gar-loader/lib/gar/decoder"
	"gar-loader/models"
	dbmodels "gar-loader/models/db"
)

// Резолвер присваивает каждой записи родителя/владельца по карте
// иерархии; пробелы в связях считаются покрытием, а не ошибкой.
// Жёстких правил два: улица без населённого пункта и дом без улицы
// не загружаются

type Provider interface {
	Index() *Index

	AdministrativeUnit(rec decoder.AddressObject) dbmodels.AdministrativeUnit
	Settlement(rec decoder.AddressObject) dbmodels.Settlement
	Street(rec decoder.AddressObject) (dbmodels.Street, bool)
	House(rec decoder.House) (dbmodels.House, bool)
	Plot(rec decoder.Stead) dbmodels.CadastralPlot
	AddParam(rec decoder.Param)
	FoldedParams() []FoldedParams

	Coverage() *Coverage
}

// StoreLookup отвечает на вопросы об объектах, которых нет в пакете.
// Пакет дельты содержит только изменённые записи, поэтому родительская
// цепочка изменённого дома обычно уже лежит в базе, а не в файлах
type StoreLookup interface {
	StreetSettlement(streetObjectID int64) (settlementID int64, ok bool)
	SettlementAdminUnit(settlementObjectID int64) (adminUnitID int64, ok bool)
	// ObjectBand определяет диапазон уровней объекта по таблице,
	// в которой он лежит
	ObjectBand(objectID int64) (lo, hi int, ok bool)
}

func NewInstance(lookup StoreLookup) Provider {
	return &impl{
		index:            NewIndex(),
		streetSettlement: make(map[int64]int64),
		settlementUnit:   make(map[int64]int64),
		bands:            make(map[int64]storedBand),
		params:           make(map[foldKey]decoder.Param),
		lookup:           lookup,
		coverage:         &Coverage{},
	}
}

// storedBand - кешированный ответ хранилища о диапазоне уровней объекта
type storedBand struct {
	lo, hi int
	ok     bool
}

type impl struct {
	index *Index
	// улица -> её населённый пункт, заполняется по мере разрешения улиц
	streetSettlement map[int64]int64
	// населённый пункт -> его административная единица
	settlementUnit map[int64]int64
	bands          map[int64]storedBand
	params         map[foldKey]decoder.Param
	lookup         StoreLookup
	coverage       *Coverage
}

func (i *impl) Index() *Index {
	return i.index
}

func (i *impl) Coverage() *Coverage {
	return i.coverage
}

func (i *impl) AdministrativeUnit(rec decoder.AddressObject) dbmodels.AdministrativeUnit {
	i.coverage.UnitsTotal++
	out := dbmodels.AdministrativeUnit{
		ObjectID:   rec.ObjectID,
		ObjectGUID: rec.ObjectGUID,
		Name:       rec.Name,
		TypeName:   rec.TypeName,
		LevelID:    rec.Level,
		Oktmo:      rec.Oktmo,
		Okato:      rec.Okato,
		IsActive:   isActiveRecord(rec.IsActual, rec.IsActive),
		StatusID:   statusOf(rec.IsActual, rec.IsActive),
		UpdateDate: rec.UpdateDate,
	}
	if parentID, ok := i.ancestorInBand(rec.ObjectID, models.LevelRegionMin, models.LevelRegionMax); ok {
		out.ParentID = &parentID
		i.coverage.UnitsLinked++
	}
	return out
}

func (i *impl) Settlement(rec decoder.AddressObject) dbmodels.Settlement {
	i.coverage.SettlementsTotal++
	out := dbmodels.Settlement{
		ObjectID:   rec.ObjectID,
		ObjectGUID: rec.ObjectGUID,
		Name:       rec.Name,
		TypeName:   rec.TypeName,
		LevelID:    rec.Level,
		Oktmo:      rec.Oktmo,
		IsActive:   isActiveRecord(rec.IsActual, rec.IsActive),
		StatusID:   statusOf(rec.IsActual, rec.IsActive),
		UpdateDate: rec.UpdateDate,
	}
	if parentID, exist := i.index.parents[rec.ObjectID]; exist {
		out.ParentID = &parentID
	}
	// административная единица ищется по цепочке предков; её отсутствие
	// допустимо (сельские территории) и отражается только в покрытии
	if unitID, ok := i.ancestorInBand(rec.ObjectID, models.LevelRegionMin, models.LevelRegionMax); ok {
		out.AdminUnitID = &unitID
		i.settlementUnit[rec.ObjectID] = unitID
		i.coverage.SettlementsLinked++
	}
	return out
}

func (i *impl) Street(rec decoder.AddressObject) (dbmodels.Street, bool) {
	i.coverage.StreetsTotal++
	settlementID, ok := i.parentInBand(rec.ObjectID, models.LevelPlaceMin, models.LevelPlaceMax)
	if !ok {
		// улица не может существовать без населённого пункта
		i.coverage.StreetsRejected++
		return dbmodels.Street{}, false
	}
	i.streetSettlement[rec.ObjectID] = settlementID
	i.coverage.StreetsLinked++
	out := dbmodels.Street{
		ObjectID:     rec.ObjectID,
		ObjectGUID:   rec.ObjectGUID,
		Name:         rec.Name,
		TypeName:     rec.TypeName,
		SettlementID: settlementID,
		IsActive:     isActiveRecord(rec.IsActual, rec.IsActive),
		StatusID:     statusOf(rec.IsActual, rec.IsActive),
		UpdateDate:   rec.UpdateDate,
	}
	if unitID, exist := i.adminUnitOf(rec.ObjectID, settlementID); exist {
		out.AdminUnitID = &unitID
	}
	return out, true
}

func (i *impl) House(rec decoder.House) (dbmodels.House, bool) {
	i.coverage.HousesTotal++
	streetID, ok := i.parentInBand(rec.ObjectID, models.LevelStreet, models.LevelStreet)
	if !ok {
		i.coverage.HousesRejected++
		return dbmodels.House{}, false
	}
	ownSettlement, _ := i.parentInBand(rec.ObjectID, models.LevelPlaceMin, models.LevelPlaceMax)
	settlementID, conflict := i.houseSettlement(streetID, ownSettlement)
	if settlementID == 0 {
		i.coverage.HousesRejected++
		return dbmodels.House{}, false
	}
	if conflict {
		i.coverage.SettlementConflicts++
	}
	i.coverage.HousesLinked++
	out := dbmodels.House{
		ObjectID:     rec.ObjectID,
		ObjectGUID:   rec.ObjectGUID,
		HouseNum:     rec.HouseNum,
		HouseTypeID:  rec.HouseType,
		AddNum1:      rec.AddNum1,
		AddNum2:      rec.AddNum2,
		AddType1:     rec.AddType1,
		AddType2:     rec.AddType2,
		StreetID:     streetID,
		SettlementID: settlementID,
		IsActive:     isActiveRecord(rec.IsActual, rec.IsActive),
		StatusID:     statusOf(rec.IsActual, rec.IsActive),
		UpdateDate:   rec.UpdateDate,
	}
	if unitID, exist := i.adminUnitOf(rec.ObjectID, settlementID); exist {
		out.AdminUnitID = &unitID
	}
	return out, true
}

// houseSettlement выбирает населённый пункт дома: значение улицы
// авторитетнее собственного значения дома (правило "ближняя запись
// побеждает" - улица ближе к дому, чем цепочка иерархии)
func (i *impl) houseSettlement(streetID, ownSettlement int64) (settlementID int64, conflict bool) {
	streetSettlement, exist := i.streetSettlementOf(streetID)
	if !exist {
		return ownSettlement, false
	}
	if ownSettlement != 0 && ownSettlement != streetSettlement {
		return streetSettlement, true
	}
	return streetSettlement, false
}

func (i *impl) Plot(rec decoder.Stead) dbmodels.CadastralPlot {
	i.coverage.PlotsTotal++
	out := dbmodels.CadastralPlot{
		ObjectID:        rec.ObjectID,
		ObjectGUID:      rec.ObjectGUID,
		Number:          rec.Number,
		CadastralNumber: rec.CadNum,
		Area:            rec.Area,
		Purpose:         rec.Purpose,
		IsActive:        isActiveRecord(rec.IsActual, rec.IsActive),
		StatusID:        statusOf(rec.IsActual, rec.IsActive),
		UpdateDate:      rec.UpdateDate,
	}
	// для участка обе связи опциональны, побеждает более близкая запись
	if streetID, ok := i.parentInBand(rec.ObjectID, models.LevelStreet, models.LevelStreet); ok {
		out.StreetID = &streetID
		if settlementID, exist := i.streetSettlementOf(streetID); exist {
			out.SettlementID = &settlementID
		}
	}
	if out.SettlementID == nil {
		if settlementID, ok := i.parentInBand(rec.ObjectID, models.LevelPlaceMin, models.LevelPlaceMax); ok {
			out.SettlementID = &settlementID
		}
	}
	if out.SettlementID != nil {
		if unitID, exist := i.adminUnitOf(rec.ObjectID, *out.SettlementID); exist {
			out.AdminUnitID = &unitID
		}
	}
	if out.StreetID != nil || out.SettlementID != nil {
		i.coverage.PlotsLinked++
	}
	return out
}

// parentInBand ищет предка с уровнем в диапазоне [lo, hi]; сам объект
// тоже проверяется
func (i *impl) parentInBand(objectID int64, lo, hi int) (int64, bool) {
	if objectID != 0 && i.inBand(objectID, lo, hi) {
		return objectID, true
	}
	return i.ancestorInBand(objectID, lo, hi)
}

func (i *impl) ancestorInBand(objectID int64, lo, hi int) (int64, bool) {
	return i.index.walkToBand(objectID, func(candidate int64) bool {
		return i.inBand(candidate, lo, hi)
	})
}

// inBand - попадание объекта в диапазон уровней. Уровень берётся из
// индекса пакета; объект не из пакета классифицируется по таблице
// хранилища, ответы кешируются
func (i *impl) inBand(objectID int64, lo, hi int) bool {
	if level, exist := i.index.Level(objectID); exist {
		return level >= lo && level <= hi
	}
	if i.lookup == nil {
		return false
	}
	entry, cached := i.bands[objectID]
	if !cached {
		entry.lo, entry.hi, entry.ok = i.lookup.ObjectBand(objectID)
		i.bands[objectID] = entry
	}
	return entry.ok && entry.lo >= lo && entry.hi <= hi
}

// streetSettlementOf - населённый пункт улицы: из разрешённых в этом
// пакете улиц, иначе из хранилища
func (i *impl) streetSettlementOf(streetID int64) (int64, bool) {
	if settlementID, exist := i.streetSettlement[streetID]; exist {
		return settlementID, true
	}
	if i.lookup == nil {
		return 0, false
	}
	settlementID, ok := i.lookup.StreetSettlement(streetID)
	if ok {
		i.streetSettlement[streetID] = settlementID
	}
	return settlementID, ok
}

// adminUnitOf - административная единица объекта: по цепочке предков,
// иначе через его населённый пункт
func (i *impl) adminUnitOf(objectID, settlementID int64) (int64, bool) {
	if unitID, ok := i.ancestorInBand(objectID, models.LevelRegionMin, models.LevelRegionMax); ok && unitID != objectID {
		return unitID, true
	}
	if settlementID == 0 {
		return 0, false
	}
	if unitID, exist := i.settlementUnit[settlementID]; exist {
		return unitID, true
	}
	if i.lookup == nil {
		return 0, false
	}
	unitID, ok := i.lookup.SettlementAdminUnit(settlementID)
	if ok {
		i.settlementUnit[settlementID] = unitID
	}
	return unitID, ok
}

func isActiveRecord(isActual, isActive bool) bool {
	return isActual && isActive
}

func statusOf(isActual, isActive bool) int {
	if isActual && isActive {
		return models.ObjectStatusActive
	}
	return models.ObjectStatusDeleted
}
