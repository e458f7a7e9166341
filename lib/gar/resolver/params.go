package resolver

import (
	"sort"
	"time"

	"gar-loader/lib/gar/decoder"
	"gar-loader/models"
)

// Свёртка параметров: из нескольких значений одного типа с интервалами
// действия для объекта остаётся одно действующее. Дата окончания
// 2079-06-06 в выгрузках означает бессрочное значение

type foldKey struct {
	objectID int64
	typeID   int
}

// FoldedParams - действующие значения параметров одного объекта,
// ключ карты - тип параметра
type FoldedParams struct {
	ObjectID int64
	Values   map[int]string
}

// ParamValue - значение с интервалом действия
type ParamValue struct {
	Value     string
	StartDate time.Time
	EndDate   time.Time
}

var knownParamTypes = map[int]struct{}{
	models.ParamTypePostalCode:      {},
	models.ParamTypeOkato:           {},
	models.ParamTypeOktmo:           {},
	models.ParamTypeCadastralNumber: {},
	models.ParamTypeKladrCode:       {},
	models.ParamTypeEgrnNumber:      {},
}

func (i *impl) AddParam(rec decoder.Param) {
	if _, known := knownParamTypes[rec.TypeID]; !known {
		i.coverage.ParamsUnknown++
		return
	}
	if rec.Value == "" {
		return
	}
	now := time.Now()
	if !isCurrent(rec.StartDate, rec.EndDate, now) {
		return
	}
	key := foldKey{objectID: rec.ObjectID, typeID: rec.TypeID}
	existing, exist := i.params[key]
	if !exist || moreEffective(rec, existing) {
		i.params[key] = rec
	}
}

// FoldedParams группирует свёрнутые значения по объекту и очищает
// накопитель: параметры домов и участков идут из разных файлов и
// забираются отдельными вызовами. Порядок детерминирован для
// воспроизводимых батчей
func (i *impl) FoldedParams() []FoldedParams {
	byObject := make(map[int64]map[int]string)
	for key, rec := range i.params {
		values, exist := byObject[key.objectID]
		if !exist {
			values = make(map[int]string)
			byObject[key.objectID] = values
		}
		values[key.typeID] = rec.Value
	}
	out := make([]FoldedParams, 0, len(byObject))
	for objectID, values := range byObject {
		out = append(out, FoldedParams{ObjectID: objectID, Values: values})
		i.coverage.ParamsFolded += len(values)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ObjectID < out[b].ObjectID })
	i.params = make(map[foldKey]decoder.Param)
	return out
}

// EffectiveValue - чистая функция выбора действующего значения из
// последовательности: берётся значение, чей интервал содержит текущий
// момент; среди таких бессрочное приоритетнее, далее - с наиболее
// поздним началом действия
func EffectiveValue(values []ParamValue, now time.Time) (string, bool) {
	var best *ParamValue
	for idx := range values {
		v := values[idx]
		if v.Value == "" || !isCurrent(v.StartDate, v.EndDate, now) {
			continue
		}
		if best == nil || moreEffectiveValue(v, *best) {
			best = &v
		}
	}
	if best == nil {
		return "", false
	}
	return best.Value, true
}

func isCurrent(start, end time.Time, now time.Time) bool {
	if !start.IsZero() && start.After(now) {
		return false
	}
	if !end.IsZero() && !isOpenEnded(end) && end.Before(now) {
		return false
	}
	return true
}

func isOpenEnded(end time.Time) bool {
	return end.IsZero() || end.Year() >= 2070
}

func moreEffective(a, b decoder.Param) bool {
	return moreEffectiveValue(
		ParamValue{Value: a.Value, StartDate: a.StartDate, EndDate: a.EndDate},
		ParamValue{Value: b.Value, StartDate: b.StartDate, EndDate: b.EndDate},
	)
}

func moreEffectiveValue(a, b ParamValue) bool {
	aOpen, bOpen := isOpenEnded(a.EndDate), isOpenEnded(b.EndDate)
	if aOpen != bOpen {
		return aOpen
	}
	return a.StartDate.After(b.StartDate)
}
