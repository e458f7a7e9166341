package importer

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"gar-loader/lib/gar/decoder"
	"gar-loader/lib/gar/loader"
	garstore "gar-loader/lib/gar/loader/store"
	"gar-loader/lib/gar/resolver"
	"gar-loader/lib/utils/helpers"
	"gar-loader/models"
	dbmodels "gar-loader/models/db"
)

// Импорт распакованной выгрузки: сначала по файлам иерархии и адресных
// объектов строится индекс связей, затем записи разрешаются и грузятся
// батчами. Виды файлов применяются в порядке зависимостей: адресные
// объекты, дома и участки, параметры. Память ограничена индексом,
// сами записи через неё не проходят

type Result struct {
	Files        int
	SkippedFiles int
	Decode       decoder.Counters
	Loaded       loader.Counts
	Coverage     resolver.Coverage
	// строки, получившие значения параметров
	ParamsUpdated int64
	// дома с пересобранным полным адресом
	AddressesBuilt int64
	Duration       time.Duration
}

type Provider interface {
	ImportDirectory(ctx context.Context, dir string) (*Result, error)
	// AffectedTables - таблицы, которые затронет импорт пакета,
	// по видам найденных в директории файлов
	AffectedTables(dir string) ([]string, error)
}

type impl struct {
	dec        decoder.Provider
	store      garstore.Provider
	batchSize  int
	regionCode string
}

func NewInstance(store garstore.Provider, batchSize int, regionCode string) Provider {
	return &impl{
		dec:        decoder.NewInstance(),
		store:      store,
		batchSize:  batchSize,
		regionCode: regionCode,
	}
}

func (i impl) ImportDirectory(ctx context.Context, dir string) (*Result, error) {
	started := time.Now()
	logger := log.WithField("import_dir", dir)

	files, err := collectFiles(dir, i.regionCode)
	if err != nil {
		return nil, err
	}
	if files.total() == 0 {
		return nil, errors.Errorf("в директории %v нет файлов выгрузки", dir)
	}
	logger.
		WithField("files", files.total()).
		WithField("skipped_files", files.SkippedFiles).
		Info("выгрузка найдена, строится индекс связей")

	res := resolver.NewInstance(i.store)
	ld := loader.NewWithStore(i.store, i.batchSize)
	result := &Result{
		Files:        files.total(),
		SkippedFiles: files.SkippedFiles,
	}

	if err = i.buildIndex(ctx, files, res, result); err != nil {
		return nil, err
	}
	logger.WithField("index_size", res.Index().Size()).Info("индекс связей построен")

	sample, err := i.loadObjects(ctx, files, res, ld, result)
	if err != nil {
		return nil, err
	}
	if err = ld.Flush(ctx); err != nil {
		return nil, err
	}
	if err = i.verifyLoaded(ctx, sample); err != nil {
		return nil, err
	}
	if err = i.applyParams(ctx, files, res, ld, result); err != nil {
		return nil, err
	}
	if result.AddressesBuilt, err = i.store.BuildFullAddresses(ctx); err != nil {
		return nil, err
	}

	result.Loaded = ld.Counts()
	result.Coverage = *res.Coverage()
	result.Duration = time.Since(started)
	logger.
		WithField("loaded_rows", result.Loaded).
		WithField("decode", result.Decode).
		WithField("coverage", result.Coverage.Ratios()).
		WithField("duration", result.Duration.String()).
		Info("импорт выгрузки завершён")
	return result, nil
}

// buildIndex - первый проход: уровни адресных объектов и связи
// иерархии. Муниципальная иерархия применяется раньше и приоритетнее
// административной
func (i impl) buildIndex(ctx context.Context, files *packageFiles, res resolver.Provider, result *Result) error {
	idx := res.Index()
	for _, path := range files.AddressObjects {
		counters, err := i.decodeFile(ctx, path, func(f *os.File) (decoder.Counters, error) {
			return i.dec.DecodeAddressObjects(f, func(rec decoder.AddressObject) error {
				if helpers.IsContextDone(ctx) {
					return ctx.Err()
				}
				idx.AddLevel(rec.ObjectID, rec.Level)
				return nil
			})
		})
		result.Decode.Add(counters)
		if err != nil {
			return err
		}
	}

	hierarchy := []struct {
		paths  []string
		source resolver.HierarchySource
	}{
		{files.MunHierarchy, resolver.SourceMunicipal},
		{files.AdmHierarchy, resolver.SourceAdministrative},
	}
	for _, group := range hierarchy {
		for _, path := range group.paths {
			source := group.source
			counters, err := i.decodeFile(ctx, path, func(f *os.File) (decoder.Counters, error) {
				return i.dec.DecodeHierarchy(f, func(rec decoder.HierarchyItem) error {
					if helpers.IsContextDone(ctx) {
						return ctx.Err()
					}
					if !rec.IsActive {
						return nil
					}
					idx.AddLink(rec, source)
					return nil
				})
			})
			result.Decode.Add(counters)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// объём выборки для сверки после загрузки
const verifySampleSize = 1000

// loadObjects - второй проход: адресные объекты по диапазонам уровней,
// затем дома и участки. Возвращает выборку идентификаторов загруженных
// домов для сверки
func (i impl) loadObjects(ctx context.Context, files *packageFiles, res resolver.Provider, ld loader.Provider, result *Result) ([]int64, error) {
	for _, path := range files.AddressObjects {
		counters, err := i.decodeFile(ctx, path, func(f *os.File) (decoder.Counters, error) {
			return i.dec.DecodeAddressObjects(f, func(rec decoder.AddressObject) error {
				if helpers.IsContextDone(ctx) {
					return ctx.Err()
				}
				return i.loadAddressObject(ctx, rec, res, ld)
			})
		})
		result.Decode.Add(counters)
		if err != nil {
			return nil, err
		}
	}

	var sample []int64
	for _, path := range files.Houses {
		counters, err := i.decodeFile(ctx, path, func(f *os.File) (decoder.Counters, error) {
			return i.dec.DecodeHouses(f, func(rec decoder.House) error {
				if helpers.IsContextDone(ctx) {
					return ctx.Err()
				}
				house, ok := res.House(rec)
				if !ok {
					return nil
				}
				if len(sample) < verifySampleSize {
					sample = append(sample, house.ObjectID)
				}
				return ld.AddHouse(ctx, house)
			})
		})
		result.Decode.Add(counters)
		if err != nil {
			return nil, err
		}
	}

	for _, path := range files.Steads {
		counters, err := i.decodeFile(ctx, path, func(f *os.File) (decoder.Counters, error) {
			return i.dec.DecodeSteads(f, func(rec decoder.Stead) error {
				if helpers.IsContextDone(ctx) {
					return ctx.Err()
				}
				return ld.AddPlot(ctx, res.Plot(rec))
			})
		})
		result.Decode.Add(counters)
		if err != nil {
			return nil, err
		}
	}
	return sample, nil
}

// verifyLoaded - выборочная сверка: каждый дом из выборки должен
// присутствовать в базе после сброса батчей
func (i impl) verifyLoaded(ctx context.Context, sample []int64) error {
	if len(sample) == 0 {
		return nil
	}
	count, err := i.store.CountExisting(ctx, dbmodels.House{}, sample)
	if err != nil {
		return err
	}
	if count != int64(len(sample)) {
		return errors.Errorf("сверка после загрузки: в базе %d домов из %d", count, len(sample))
	}
	return nil
}

func (i impl) loadAddressObject(ctx context.Context, rec decoder.AddressObject, res resolver.Provider, ld loader.Provider) error {
	switch {
	case rec.Level >= models.LevelRegionMin && rec.Level <= models.LevelRegionMax:
		return ld.AddUnit(ctx, res.AdministrativeUnit(rec))
	case rec.Level >= models.LevelPlaceMin && rec.Level <= models.LevelPlaceMax:
		return ld.AddSettlement(ctx, res.Settlement(rec))
	case rec.Level == models.LevelStreet:
		street, ok := res.Street(rec)
		if !ok {
			return nil
		}
		return ld.AddStreet(ctx, street)
	}
	// прочие уровни (машино-места, помещения) не загружаются
	return nil
}

// applyParams - параметры применяются последними, когда дома и участки
// уже загружены. Параметры домов и участков сворачиваются раздельно
func (i impl) applyParams(ctx context.Context, files *packageFiles, res resolver.Provider, ld loader.Provider, result *Result) error {
	groups := []struct {
		paths   []string
		isHouse bool
	}{
		{files.HouseParams, true},
		{files.SteadParams, false},
	}
	for _, group := range groups {
		for _, path := range group.paths {
			counters, err := i.decodeFile(ctx, path, func(f *os.File) (decoder.Counters, error) {
				return i.dec.DecodeParams(f, func(rec decoder.Param) error {
					if helpers.IsContextDone(ctx) {
						return ctx.Err()
					}
					res.AddParam(rec)
					return nil
				})
			})
			result.Decode.Add(counters)
			if err != nil {
				return err
			}
		}
		folded := res.FoldedParams()
		if len(folded) == 0 {
			continue
		}
		var updated int64
		var err error
		if group.isHouse {
			updated, err = ld.ApplyParams(ctx, folded, nil)
		} else {
			updated, err = ld.ApplyParams(ctx, nil, folded)
		}
		if err != nil {
			return err
		}
		result.ParamsUpdated += updated
	}
	return nil
}

func (i impl) decodeFile(ctx context.Context, path string, decode func(f *os.File) (decoder.Counters, error)) (decoder.Counters, error) {
	if helpers.IsContextDone(ctx) {
		return decoder.Counters{}, ctx.Err()
	}
	f, err := os.Open(path)
	if err != nil {
		return decoder.Counters{}, errors.Wrapf(err, "ошибка открытия файла %v", path)
	}
	defer f.Close()

	log.WithField("file", path).Debug("разбор файла выгрузки")
	counters, err := decode(f)
	if err != nil {
		return counters, errors.Wrapf(err, "ошибка разбора файла %v", path)
	}
	return counters, nil
}

// AllTables - все таблицы реестра; по ним строится снимок, когда
// настроен бэкап всего набора
func AllTables() []string {
	return []string{
		"administrative_units",
		"settlements",
		"streets",
		"houses",
		"cadastral_plots",
	}
}

// AffectedTables сужает снимок до таблиц, которые пакет реально
// затронет. Адресные объекты меняют и дома: их полные адреса
// пересобираются после загрузки
func (i impl) AffectedTables(dir string) ([]string, error) {
	files, err := collectFiles(dir, i.regionCode)
	if err != nil {
		return nil, err
	}
	affected := make(map[string]struct{})
	if len(files.AddressObjects) > 0 {
		affected["administrative_units"] = struct{}{}
		affected["settlements"] = struct{}{}
		affected["streets"] = struct{}{}
		affected["houses"] = struct{}{}
	}
	if len(files.Houses)+len(files.HouseParams) > 0 {
		affected["houses"] = struct{}{}
	}
	if len(files.Steads)+len(files.SteadParams) > 0 {
		affected["cadastral_plots"] = struct{}{}
	}
	out := make([]string, 0, len(affected))
	for _, table := range AllTables() {
		if _, exist := affected[table]; exist {
			out = append(out, table)
		}
	}
	return out, nil
}
