package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gar-loader/lib/gar/decoder"
)

func addrObject(objectID int64, level int) decoder.AddressObject {
	return decoder.AddressObject{
		ObjectID: objectID,
		Name:     "тест",
		Level:    level,
		IsActual: true,
		IsActive: true,
	}
}

func link(objectID, parentID int64) decoder.HierarchyItem {
	return decoder.HierarchyItem{ObjectID: objectID, ParentObjID: parentID, IsActive: true}
}

// fakeLookup отвечает за объекты, лежащие только в хранилище
type fakeLookup struct {
	streetSettlements map[int64]int64
	settlementUnits   map[int64]int64
	bands             map[int64][2]int
}

func (f fakeLookup) StreetSettlement(streetObjectID int64) (int64, bool) {
	settlementID, ok := f.streetSettlements[streetObjectID]
	return settlementID, ok
}

func (f fakeLookup) SettlementAdminUnit(settlementObjectID int64) (int64, bool) {
	unitID, ok := f.settlementUnits[settlementObjectID]
	return unitID, ok
}

func (f fakeLookup) ObjectBand(objectID int64) (int, int, bool) {
	band, ok := f.bands[objectID]
	return band[0], band[1], ok
}

func TestThreeLevelChain(t *testing.T) {
	// АЕ(1, уровень 1) <- НП(10) <- улица(100) <- дом(1000, свой НП не указан)
	r := NewInstance(nil)
	idx := r.Index()
	idx.AddLevel(1, 1)
	idx.AddLevel(10, 5)
	idx.AddLevel(100, 8)
	idx.AddLink(link(10, 1), SourceMunicipal)
	idx.AddLink(link(100, 10), SourceMunicipal)
	idx.AddLink(link(1000, 100), SourceMunicipal)

	settlement := r.Settlement(addrObject(10, 5))
	require.NotNil(t, settlement.AdminUnitID)
	require.Equal(t, int64(1), *settlement.AdminUnitID)

	street, ok := r.Street(addrObject(100, 8))
	require.True(t, ok)
	require.Equal(t, int64(10), street.SettlementID)
	require.NotNil(t, street.AdminUnitID)
	require.Equal(t, int64(1), *street.AdminUnitID)

	house, ok := r.House(decoder.House{ObjectID: 1000, HouseNum: "1", IsActual: true, IsActive: true})
	require.True(t, ok)
	require.Equal(t, int64(100), house.StreetID)
	require.Equal(t, int64(10), house.SettlementID)
	require.NotNil(t, house.AdminUnitID)
	require.Equal(t, int64(1), *house.AdminUnitID)

	cov := r.Coverage()
	require.Equal(t, 1.0, Ratio(cov.HousesLinked, cov.HousesTotal))
	require.Equal(t, 0, cov.SettlementConflicts)
}

func TestHouseSettlementConflictStreetWins(t *testing.T) {
	// цепочка дома указывает на НП 20, а улица (по данным хранилища,
	// улица в пакет дельты не входит) принадлежит НП 10: побеждает
	// значение улицы, конфликт фиксируется
	r := NewInstance(fakeLookup{
		streetSettlements: map[int64]int64{100: 10},
	})
	idx := r.Index()
	idx.AddLevel(10, 5)
	idx.AddLevel(20, 5)
	idx.AddLevel(100, 8)
	idx.AddLink(link(100, 20), SourceMunicipal)
	idx.AddLink(link(2000, 100), SourceMunicipal)

	house, ok := r.House(decoder.House{ObjectID: 2000, HouseNum: "7", IsActual: true, IsActive: true})
	require.True(t, ok)
	require.Equal(t, int64(100), house.StreetID)
	require.Equal(t, int64(10), house.SettlementID)
	require.Equal(t, 1, r.Coverage().SettlementConflicts)
}

func TestStreetWithoutSettlementRejected(t *testing.T) {
	r := NewInstance(nil)
	r.Index().AddLevel(100, 8)

	_, ok := r.Street(addrObject(100, 8))
	require.False(t, ok)
	cov := r.Coverage()
	require.Equal(t, 1, cov.StreetsRejected)
	require.Equal(t, 0, cov.StreetsLinked)
}

func TestHouseWithoutStreetRejected(t *testing.T) {
	r := NewInstance(nil)
	_, ok := r.House(decoder.House{ObjectID: 1000, HouseNum: "1", IsActual: true, IsActive: true})
	require.False(t, ok)
	require.Equal(t, 1, r.Coverage().HousesRejected)
}

func TestDeltaHouseParentsFromStore(t *testing.T) {
	// дельта: в пакете только связь дома с улицей, без записей уровней.
	// Улица и её НП не менялись и лежат только в базе; дом обязан
	// разрешиться через хранилище, а не попасть в отклонённые
	r := NewInstance(fakeLookup{
		streetSettlements: map[int64]int64{100: 10},
		settlementUnits:   map[int64]int64{10: 1},
		bands:             map[int64][2]int{100: {8, 8}},
	})
	r.Index().AddLink(link(1000, 100), SourceMunicipal)

	house, ok := r.House(decoder.House{ObjectID: 1000, HouseNum: "3", IsActual: true, IsActive: true})
	require.True(t, ok)
	require.Equal(t, int64(100), house.StreetID)
	require.Equal(t, int64(10), house.SettlementID)
	require.NotNil(t, house.AdminUnitID)
	require.Equal(t, int64(1), *house.AdminUnitID)

	cov := r.Coverage()
	require.Equal(t, 0, cov.HousesRejected)
	require.Equal(t, 1, cov.HousesLinked)
}

func TestDeltaStreetSettlementFromStore(t *testing.T) {
	// дельта: изменилась улица, её НП в пакет не входит и известен
	// только по таблицам хранилища
	r := NewInstance(fakeLookup{
		bands: map[int64][2]int{10: {4, 7}},
	})
	r.Index().AddLevel(100, 8)
	r.Index().AddLink(link(100, 10), SourceMunicipal)

	street, ok := r.Street(addrObject(100, 8))
	require.True(t, ok)
	require.Equal(t, int64(10), street.SettlementID)
	require.Equal(t, 0, r.Coverage().StreetsRejected)
}

func TestMunicipalHierarchyPriority(t *testing.T) {
	idx := NewIndex()
	idx.AddLevel(1, 2)
	idx.AddLevel(2, 2)
	idx.AddLevel(10, 5)
	// административная связь добавляется первой и перекрывается муниципальной
	idx.AddLink(link(10, 2), SourceAdministrative)
	idx.AddLink(link(10, 1), SourceMunicipal)
	// обратный порядок: муниципальная связь не затирается административной
	idx.AddLevel(11, 5)
	idx.AddLink(link(11, 1), SourceMunicipal)
	idx.AddLink(link(11, 2), SourceAdministrative)

	parent, ok := idx.AncestorInBand(10, 1, 3)
	require.True(t, ok)
	require.Equal(t, int64(1), parent)

	parent, ok = idx.AncestorInBand(11, 1, 3)
	require.True(t, ok)
	require.Equal(t, int64(1), parent)
}

func TestHierarchyCycleGuard(t *testing.T) {
	idx := NewIndex()
	idx.AddLink(link(1, 2), SourceMunicipal)
	idx.AddLink(link(2, 1), SourceMunicipal)

	_, ok := idx.ParentInBand(1, 1, 3)
	require.False(t, ok)
}

func TestDeactivatedRecordKeepsRow(t *testing.T) {
	r := NewInstance(nil)
	idx := r.Index()
	idx.AddLevel(10, 5)
	idx.AddLevel(100, 8)
	idx.AddLink(link(100, 10), SourceMunicipal)

	rec := addrObject(100, 8)
	rec.IsActive = false
	street, ok := r.Street(rec)
	require.True(t, ok)
	require.False(t, street.IsActive)
	require.Equal(t, 2, street.StatusID)
}

func TestCoverageMonotonicOnReprocess(t *testing.T) {
	// повторная обработка тех же улиц при полностью построенном индексе
	// не ухудшает покрытие
	r := NewInstance(nil)
	idx := r.Index()
	idx.AddLevel(10, 5)
	for objectID := int64(100); objectID < 110; objectID++ {
		idx.AddLevel(objectID, 8)
		idx.AddLink(link(objectID, 10), SourceMunicipal)
	}
	for objectID := int64(100); objectID < 110; objectID++ {
		_, ok := r.Street(addrObject(objectID, 8))
		require.True(t, ok)
	}
	cov := r.Coverage()
	first := Ratio(cov.StreetsLinked, cov.StreetsTotal)

	for objectID := int64(100); objectID < 110; objectID++ {
		_, ok := r.Street(addrObject(objectID, 8))
		require.True(t, ok)
	}
	second := Ratio(cov.StreetsLinked, cov.StreetsTotal)
	require.GreaterOrEqual(t, second, first)
}
