package loader

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	garstore "gar-loader/lib/gar/loader/store"
	"gar-loader/lib/gar/resolver"
	dbmodels "gar-loader/models/db"
)

// Загрузчик копит разрешённые записи и пишет их в хранилище
// батчами ограниченного размера. Батчи одного вида применяются
// последовательно в порядке поступления записей - это сохраняет
// семантику "ближняя запись побеждает". Экземпляр не потокобезопасен:
// на каждый вид записей - свой писатель

type Provider interface {
	AddUnit(ctx context.Context, rec dbmodels.AdministrativeUnit) error
	AddSettlement(ctx context.Context, rec dbmodels.Settlement) error
	AddStreet(ctx context.Context, rec dbmodels.Street) error
	AddHouse(ctx context.Context, rec dbmodels.House) error
	AddPlot(ctx context.Context, rec dbmodels.CadastralPlot) error

	ApplyParams(ctx context.Context, houseParams, plotParams []resolver.FoldedParams) (updated int64, err error)

	// Flush дописывает неполные батчи; вызывается по завершении файла
	Flush(ctx context.Context) error

	Counts() Counts
	Store() garstore.Provider
}

// Counts - количество строк, подтверждённых хранилищем
type Counts struct {
	Units       int
	Settlements int
	Streets     int
	Houses      int
	Plots       int
	Batches     int
}

// BatchError несёт идентифицирующий диапазон упавшего батча:
// уже закоммиченные батчи при этом остаются в хранилище
type BatchError struct {
	Kind          string
	FirstObjectID int64
	LastObjectID  int64
	Err           error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("батч %s [%d..%d]: %v", e.Kind, e.FirstObjectID, e.LastObjectID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

func NewInstance(DB *gorm.DB, batchSize int) Provider {
	return NewWithStore(garstore.NewInstance(DB), batchSize)
}

func NewWithStore(store garstore.Provider, batchSize int) Provider {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &impl{
		store:     store,
		batchSize: batchSize,
	}
}

type impl struct {
	store     garstore.Provider
	batchSize int
	counts    Counts

	units       []dbmodels.AdministrativeUnit
	settlements []dbmodels.Settlement
	streets     []dbmodels.Street
	houses      []dbmodels.House
	plots       []dbmodels.CadastralPlot
}

func (i *impl) Store() garstore.Provider {
	return i.store
}

func (i *impl) Counts() Counts {
	return i.counts
}

func (i *impl) AddUnit(ctx context.Context, rec dbmodels.AdministrativeUnit) error {
	i.units = append(i.units, rec)
	if len(i.units) >= i.batchSize {
		return i.flushUnits(ctx)
	}
	return nil
}

func (i *impl) AddSettlement(ctx context.Context, rec dbmodels.Settlement) error {
	i.settlements = append(i.settlements, rec)
	if len(i.settlements) >= i.batchSize {
		return i.flushSettlements(ctx)
	}
	return nil
}

func (i *impl) AddStreet(ctx context.Context, rec dbmodels.Street) error {
	i.streets = append(i.streets, rec)
	if len(i.streets) >= i.batchSize {
		return i.flushStreets(ctx)
	}
	return nil
}

func (i *impl) AddHouse(ctx context.Context, rec dbmodels.House) error {
	i.houses = append(i.houses, rec)
	if len(i.houses) >= i.batchSize {
		return i.flushHouses(ctx)
	}
	return nil
}

func (i *impl) AddPlot(ctx context.Context, rec dbmodels.CadastralPlot) error {
	i.plots = append(i.plots, rec)
	if len(i.plots) >= i.batchSize {
		return i.flushPlots(ctx)
	}
	return nil
}

func (i *impl) Flush(ctx context.Context) error {
	if err := i.flushUnits(ctx); err != nil {
		return err
	}
	if err := i.flushSettlements(ctx); err != nil {
		return err
	}
	if err := i.flushStreets(ctx); err != nil {
		return err
	}
	if err := i.flushHouses(ctx); err != nil {
		return err
	}
	return i.flushPlots(ctx)
}

func (i *impl) ApplyParams(ctx context.Context, houseParams, plotParams []resolver.FoldedParams) (int64, error) {
	houseUpdated, err := i.store.ApplyHouseParams(ctx, toParamMap(houseParams))
	if err != nil {
		return 0, err
	}
	plotUpdated, err := i.store.ApplyPlotParams(ctx, toParamMap(plotParams))
	if err != nil {
		return houseUpdated, err
	}
	return houseUpdated + plotUpdated, nil
}

func toParamMap(params []resolver.FoldedParams) map[int64]map[int]string {
	out := make(map[int64]map[int]string, len(params))
	for _, p := range params {
		out[p.ObjectID] = p.Values
	}
	return out
}

func (i *impl) flushUnits(ctx context.Context) error {
	if len(i.units) == 0 {
		return nil
	}
	batch := i.units
	i.units = nil
	if err := i.store.UpsertAdministrativeUnits(ctx, batch); err != nil {
		return &BatchError{Kind: "administrative_units", FirstObjectID: batch[0].ObjectID, LastObjectID: batch[len(batch)-1].ObjectID, Err: err}
	}
	i.counts.Units += len(batch)
	i.counts.Batches++
	return nil
}

func (i *impl) flushSettlements(ctx context.Context) error {
	if len(i.settlements) == 0 {
		return nil
	}
	batch := i.settlements
	i.settlements = nil
	if err := i.store.UpsertSettlements(ctx, batch); err != nil {
		return &BatchError{Kind: "settlements", FirstObjectID: batch[0].ObjectID, LastObjectID: batch[len(batch)-1].ObjectID, Err: err}
	}
	i.counts.Settlements += len(batch)
	i.counts.Batches++
	return nil
}

func (i *impl) flushStreets(ctx context.Context) error {
	if len(i.streets) == 0 {
		return nil
	}
	batch := i.streets
	i.streets = nil
	if err := i.store.UpsertStreets(ctx, batch); err != nil {
		return &BatchError{Kind: "streets", FirstObjectID: batch[0].ObjectID, LastObjectID: batch[len(batch)-1].ObjectID, Err: err}
	}
	i.counts.Streets += len(batch)
	i.counts.Batches++
	return nil
}

func (i *impl) flushHouses(ctx context.Context) error {
	if len(i.houses) == 0 {
		return nil
	}
	batch := i.houses
	i.houses = nil
	if err := i.store.UpsertHouses(ctx, batch); err != nil {
		return &BatchError{Kind: "houses", FirstObjectID: batch[0].ObjectID, LastObjectID: batch[len(batch)-1].ObjectID, Err: err}
	}
	i.counts.Houses += len(batch)
	i.counts.Batches++
	return nil
}

func (i *impl) flushPlots(ctx context.Context) error {
	if len(i.plots) == 0 {
		return nil
	}
	batch := i.plots
	i.plots = nil
	if err := i.store.UpsertCadastralPlots(ctx, batch); err != nil {
		return &BatchError{Kind: "cadastral_plots", FirstObjectID: batch[0].ObjectID, LastObjectID: batch[len(batch)-1].ObjectID, Err: err}
	}
	i.counts.Plots += len(batch)
	i.counts.Batches++
	return nil
}
