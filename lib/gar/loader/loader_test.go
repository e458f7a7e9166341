package loader

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gar-loader/lib/gar/resolver"
	"gar-loader/models"
	dbmodels "gar-loader/models/db"
)

type fakeStore struct {
	houseBatches [][]dbmodels.House
	houseParams  map[int64]map[int]string
	failHouses   bool
}

func (f *fakeStore) UpsertAdministrativeUnits(ctx context.Context, recs []dbmodels.AdministrativeUnit) error {
	return nil
}
func (f *fakeStore) UpsertSettlements(ctx context.Context, recs []dbmodels.Settlement) error {
	return nil
}
func (f *fakeStore) UpsertStreets(ctx context.Context, recs []dbmodels.Street) error { return nil }
func (f *fakeStore) UpsertHouses(ctx context.Context, recs []dbmodels.House) error {
	if f.failHouses {
		return errors.New("отказ хранилища")
	}
	batch := make([]dbmodels.House, len(recs))
	copy(batch, recs)
	f.houseBatches = append(f.houseBatches, batch)
	return nil
}
func (f *fakeStore) UpsertCadastralPlots(ctx context.Context, recs []dbmodels.CadastralPlot) error {
	return nil
}
func (f *fakeStore) ApplyHouseParams(ctx context.Context, params map[int64]map[int]string) (int64, error) {
	f.houseParams = params
	return int64(len(params)), nil
}
func (f *fakeStore) ApplyPlotParams(ctx context.Context, params map[int64]map[int]string) (int64, error) {
	return 0, nil
}
func (f *fakeStore) StreetSettlement(objectID int64) (int64, bool)    { return 0, false }
func (f *fakeStore) SettlementAdminUnit(objectID int64) (int64, bool) { return 0, false }
func (f *fakeStore) ObjectBand(objectID int64) (int, int, bool)       { return 0, 0, false }

func (f *fakeStore) BuildFullAddresses(ctx context.Context) (int64, error) { return 0, nil }
func (f *fakeStore) CountExisting(ctx context.Context, model interface{}, objectIDs []int64) (int64, error) {
	return int64(len(objectIDs)), nil
}

func house(objectID int64) dbmodels.House {
	return dbmodels.House{ObjectID: objectID, HouseNum: "1", StreetID: 100, SettlementID: 10, IsActive: true}
}

func TestBatchingAndFlush(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	l := NewWithStore(store, 2)

	for objectID := int64(1); objectID <= 5; objectID++ {
		require.Nil(t, l.AddHouse(ctx, house(objectID)))
	}
	// два полных батча ушли сразу, хвост - по Flush
	require.Len(t, store.houseBatches, 2)
	require.Nil(t, l.Flush(ctx))
	require.Len(t, store.houseBatches, 3)
	require.Len(t, store.houseBatches[2], 1)

	counts := l.Counts()
	require.Equal(t, 5, counts.Houses)
	require.Equal(t, 3, counts.Batches)

	// порядок записей внутри вида сохраняется
	require.Equal(t, int64(1), store.houseBatches[0][0].ObjectID)
	require.Equal(t, int64(5), store.houseBatches[2][0].ObjectID)
}

func TestBatchErrorCarriesRange(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{failHouses: true}
	l := NewWithStore(store, 3)

	require.Nil(t, l.AddHouse(ctx, house(7)))
	require.Nil(t, l.AddHouse(ctx, house(8)))
	err := l.AddHouse(ctx, house(9))
	require.NotNil(t, err)

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	require.Equal(t, "houses", batchErr.Kind)
	require.Equal(t, int64(7), batchErr.FirstObjectID)
	require.Equal(t, int64(9), batchErr.LastObjectID)

	// упавший батч не попадает в счётчики подтверждённых строк
	require.Equal(t, 0, l.Counts().Houses)
}

func TestApplyParams(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	l := NewWithStore(store, 10)

	updated, err := l.ApplyParams(ctx, []resolver.FoldedParams{
		{ObjectID: 1000, Values: map[int]string{models.ParamTypePostalCode: "620000"}},
	}, nil)
	require.Nil(t, err)
	require.Equal(t, int64(1), updated)
	require.Equal(t, "620000", store.houseParams[1000][models.ParamTypePostalCode])
}
