package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	dbmodels "gar-loader/models/db"
)

type fakeStore struct {
	units       []dbmodels.AdministrativeUnit
	settlements []dbmodels.Settlement
	streets     []dbmodels.Street
	houses      []dbmodels.House
	plots       []dbmodels.CadastralPlot
	houseParams map[int64]map[int]string
	plotParams  map[int64]map[int]string
}

func (f *fakeStore) UpsertAdministrativeUnits(ctx context.Context, recs []dbmodels.AdministrativeUnit) error {
	f.units = append(f.units, recs...)
	return nil
}
func (f *fakeStore) UpsertSettlements(ctx context.Context, recs []dbmodels.Settlement) error {
	f.settlements = append(f.settlements, recs...)
	return nil
}
func (f *fakeStore) UpsertStreets(ctx context.Context, recs []dbmodels.Street) error {
	f.streets = append(f.streets, recs...)
	return nil
}
func (f *fakeStore) UpsertHouses(ctx context.Context, recs []dbmodels.House) error {
	f.houses = append(f.houses, recs...)
	return nil
}
func (f *fakeStore) UpsertCadastralPlots(ctx context.Context, recs []dbmodels.CadastralPlot) error {
	f.plots = append(f.plots, recs...)
	return nil
}
func (f *fakeStore) ApplyHouseParams(ctx context.Context, params map[int64]map[int]string) (int64, error) {
	f.houseParams = params
	return int64(len(params)), nil
}
func (f *fakeStore) ApplyPlotParams(ctx context.Context, params map[int64]map[int]string) (int64, error) {
	f.plotParams = params
	return int64(len(params)), nil
}
func (f *fakeStore) StreetSettlement(objectID int64) (int64, bool)    { return 0, false }
func (f *fakeStore) SettlementAdminUnit(objectID int64) (int64, bool) { return 0, false }
func (f *fakeStore) ObjectBand(objectID int64) (int, int, bool)       { return 0, 0, false }
func (f *fakeStore) BuildFullAddresses(ctx context.Context) (int64, error) {
	return int64(len(f.houses)), nil
}
func (f *fakeStore) CountExisting(ctx context.Context, model interface{}, objectIDs []int64) (int64, error) {
	return int64(len(objectIDs)), nil
}

func TestClassifyFile(t *testing.T) {
	cases := map[string]FileKind{
		"AS_ADDR_OBJ_20230101_x.XML":       KindAddressObjects,
		"AS_ADDR_OBJ_PARAMS_20230101.XML":  KindUnknown,
		"AS_HOUSES_20230101_x.XML":         KindHouses,
		"AS_HOUSES_PARAMS_20230101_x.XML":  KindHouseParams,
		"AS_STEADS_20230101_x.XML":         KindSteads,
		"AS_STEADS_PARAMS_20230101_x.XML":  KindSteadParams,
		"AS_MUN_HIERARCHY_20230101_x.XML":  KindMunHierarchy,
		"AS_ADM_HIERARCHY_20230101_x.XML":  KindAdmHierarchy,
		"AS_NORMATIVE_DOCS_20230101_x.XML": KindUnknown,
		"readme.txt":                       KindUnknown,
	}
	for name, want := range cases {
		require.Equal(t, want, classifyFile(name), name)
	}
}

func writeRegionFiles(t *testing.T, dir, region string) {
	t.Helper()
	regionDir := filepath.Join(dir, region)
	require.Nil(t, os.MkdirAll(regionDir, 0o755))

	files := map[string]string{
		"AS_ADDR_OBJ_20230101_1.XML": `<?xml version="1.0" encoding="utf-8"?>
<ADDRESSOBJECTS>
	<OBJECT OBJECTID="1" OBJECTGUID="1f14a898-abc0-4d06-8b1a-60a93c70a0cf" NAME="Свердловская" TYPENAME="обл" LEVEL="1" ISACTUAL="1" ISACTIVE="1" UPDATEDATE="2023-01-01"/>
	<OBJECT OBJECTID="10" NAME="Екатеринбург" TYPENAME="г" LEVEL="5" ISACTUAL="1" ISACTIVE="1"/>
	<OBJECT OBJECTID="100" NAME="Ленина" TYPENAME="пр-кт" LEVEL="8" ISACTUAL="1" ISACTIVE="1"/>
	<OBJECT OBJECTID="900" NAME="Потерянная" TYPENAME="ул" LEVEL="8" ISACTUAL="1" ISACTIVE="1"/>
</ADDRESSOBJECTS>`,
		"AS_MUN_HIERARCHY_20230101_1.XML": `<?xml version="1.0" encoding="utf-8"?>
<ITEMS>
	<ITEM OBJECTID="10" PARENTOBJID="1" ISACTIVE="1"/>
	<ITEM OBJECTID="100" PARENTOBJID="10" ISACTIVE="1"/>
	<ITEM OBJECTID="1000" PARENTOBJID="100" ISACTIVE="1"/>
	<ITEM OBJECTID="2000" PARENTOBJID="100" ISACTIVE="1"/>
</ITEMS>`,
		"AS_HOUSES_20230101_1.XML": `<?xml version="1.0" encoding="utf-8"?>
<HOUSES>
	<HOUSE OBJECTID="1000" HOUSENUM="12" HOUSETYPE="2" ISACTUAL="1" ISACTIVE="1"/>
</HOUSES>`,
		"AS_STEADS_20230101_1.XML": `<?xml version="1.0" encoding="utf-8"?>
<STEADS>
	<STEAD OBJECTID="2000" NUMBER="7" CADNUM="66:41:0:1" ISACTUAL="1" ISACTIVE="1"/>
</STEADS>`,
		"AS_HOUSES_PARAMS_20230101_1.XML": `<?xml version="1.0" encoding="utf-8"?>
<PARAMS>
	<PARAM OBJECTID="1000" TYPEID="5" VALUE="620000" STARTDATE="2020-01-01" ENDDATE="2079-06-06"/>
	<PARAM OBJECTID="1000" TYPEID="7" VALUE="65701000" STARTDATE="2020-01-01" ENDDATE="2079-06-06"/>
</PARAMS>`,
		"AS_STEADS_PARAMS_20230101_1.XML": `<?xml version="1.0" encoding="utf-8"?>
<PARAMS>
	<PARAM OBJECTID="2000" TYPEID="8" VALUE="66:41:0:1" STARTDATE="2020-01-01" ENDDATE="2079-06-06"/>
</PARAMS>`,
	}
	for name, body := range files {
		require.Nil(t, os.WriteFile(filepath.Join(regionDir, name), []byte(body), 0o644))
	}
}

func TestImportDirectory(t *testing.T) {
	dir := t.TempDir()
	writeRegionFiles(t, dir, "66")
	store := &fakeStore{}

	imp := NewInstance(store, 2, "66")
	result, err := imp.ImportDirectory(context.Background(), dir)
	require.Nil(t, err)

	require.Len(t, store.units, 1)
	require.Len(t, store.settlements, 1)
	// улица 900 без населённого пункта отклонена
	require.Len(t, store.streets, 1)
	require.Len(t, store.houses, 1)
	require.Len(t, store.plots, 1)

	require.Equal(t, int64(10), store.streets[0].SettlementID)
	require.Equal(t, int64(100), store.houses[0].StreetID)
	require.Equal(t, int64(10), store.houses[0].SettlementID)
	require.NotNil(t, store.plots[0].StreetID)
	require.Equal(t, int64(100), *store.plots[0].StreetID)

	// привязка к административной единице идёт по цепочке предков
	require.NotNil(t, store.streets[0].AdminUnitID)
	require.Equal(t, int64(1), *store.streets[0].AdminUnitID)
	require.NotNil(t, store.houses[0].AdminUnitID)
	require.Equal(t, int64(1), *store.houses[0].AdminUnitID)

	// параметры домов и участков применены к своим таблицам
	require.Equal(t, "620000", store.houseParams[1000][5])
	require.Equal(t, "65701000", store.houseParams[1000][7])
	require.Equal(t, "66:41:0:1", store.plotParams[2000][8])

	require.Equal(t, 1, result.Coverage.StreetsRejected)
	require.Equal(t, int64(2), result.ParamsUpdated)
	require.Equal(t, int64(1), result.AddressesBuilt)
	require.Equal(t, 6, result.Files)
}

func TestAffectedTablesByPackageContents(t *testing.T) {
	full := t.TempDir()
	writeRegionFiles(t, full, "66")
	imp := NewInstance(&fakeStore{}, 10, "66")

	tables, err := imp.AffectedTables(full)
	require.Nil(t, err)
	require.Equal(t, AllTables(), tables)

	// пакет только с домами не трогает остальные таблицы
	housesOnly := t.TempDir()
	body := `<?xml version="1.0" encoding="utf-8"?>
<HOUSES>
	<HOUSE OBJECTID="1000" HOUSENUM="12" ISACTUAL="1" ISACTIVE="1"/>
</HOUSES>`
	require.Nil(t, os.WriteFile(filepath.Join(housesOnly, "AS_HOUSES_20230108_1.XML"), []byte(body), 0o644))

	tables, err = NewInstance(&fakeStore{}, 10, "").AffectedTables(housesOnly)
	require.Nil(t, err)
	require.Equal(t, []string{"houses"}, tables)
}

func TestImportDirectoryEmpty(t *testing.T) {
	dir := t.TempDir()
	imp := NewInstance(&fakeStore{}, 10, "")
	_, err := imp.ImportDirectory(context.Background(), dir)
	require.NotNil(t, err)
}

func TestImportDirectoryCancelled(t *testing.T) {
	dir := t.TempDir()
	writeRegionFiles(t, dir, "66")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imp := NewInstance(&fakeStore{}, 10, "66")
	_, err := imp.ImportDirectory(ctx, dir)
	require.NotNil(t, err)
}
