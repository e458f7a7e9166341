package resolver

import (
	"gar-loader/lib/gar/decoder"
)

type HierarchySource int

const (
	// Муниципальная иерархия приоритетна: её связи перекрывают
	// административные, административные дополняют только пропуски
	SourceMunicipal HierarchySource = iota
	SourceAdministrative
)

// Index - карта уровней и родительских связей, строится до разбора
// зависимых записей. Уровни есть только у адресных объектов (1-8),
// родительские связи - у всех объектов, включая дома и участки
type Index struct {
	levels  map[int64]int
	parents map[int64]int64
	// объекты, чья связь пришла из муниципальной иерархии
	mun map[int64]struct{}
}

func NewIndex() *Index {
	return &Index{
		levels:  make(map[int64]int),
		parents: make(map[int64]int64),
		mun:     make(map[int64]struct{}),
	}
}

func (x *Index) AddLevel(objectID int64, level int) {
	if level > 0 {
		x.levels[objectID] = level
	}
}

func (x *Index) AddLink(rec decoder.HierarchyItem, source HierarchySource) {
	if !rec.IsActive || rec.ParentObjID == 0 {
		return
	}
	if source == SourceMunicipal {
		x.parents[rec.ObjectID] = rec.ParentObjID
		x.mun[rec.ObjectID] = struct{}{}
		return
	}
	if _, exist := x.mun[rec.ObjectID]; exist {
		return
	}
	if _, exist := x.parents[rec.ObjectID]; !exist {
		x.parents[rec.ObjectID] = rec.ParentObjID
	}
}

func (x *Index) Level(objectID int64) (int, bool) {
	level, exist := x.levels[objectID]
	return level, exist
}

func (x *Index) Size() int {
	return len(x.parents)
}

// ParentInBand ищет ближайшего предка с уровнем в диапазоне [lo, hi],
// поднимаясь по цепочке родителей. Сам объект тоже проверяется
func (x *Index) ParentInBand(objectID int64, lo, hi int) (int64, bool) {
	if objectID == 0 {
		return 0, false
	}
	if level, exist := x.levels[objectID]; exist && level >= lo && level <= hi {
		return objectID, true
	}
	return x.AncestorInBand(objectID, lo, hi)
}

// AncestorInBand - то же, что ParentInBand, но сам объект не проверяется;
// нужен для поиска родителя объекта, чей уровень уже попадает в диапазон
func (x *Index) AncestorInBand(objectID int64, lo, hi int) (int64, bool) {
	return x.walkToBand(objectID, func(candidate int64) bool {
		level, exist := x.levels[candidate]
		return exist && level >= lo && level <= hi
	})
}

// walkToBand поднимается по цепочке родителей до первого предка,
// удовлетворяющего inBand. Циклы в сырых данных встречаются, поэтому
// путь отслеживается
func (x *Index) walkToBand(objectID int64, inBand func(int64) bool) (int64, bool) {
	if objectID == 0 {
		return 0, false
	}
	visited := map[int64]struct{}{objectID: {}}
	current := objectID
	for {
		parent, exist := x.parents[current]
		if !exist {
			return 0, false
		}
		if _, seen := visited[parent]; seen {
			return 0, false
		}
		visited[parent] = struct{}{}
		if inBand(parent) {
			return parent, true
		}
		current = parent
	}
}
