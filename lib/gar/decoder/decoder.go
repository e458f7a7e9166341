package decoder

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Потоковый разбор выгрузок ГАР: файл читается токенами, в памяти
// одновременно находится не более одной записи независимо от размера файла.
// Некорректные и незнакомые элементы пропускаются и считаются, разбор
// при этом продолжается.

// AddressObject - запись файла AS_ADDR_OBJ (элемент OBJECT)
type AddressObject struct {
	ObjectID   int64
	ObjectGUID string
	Name       string
	TypeName   string
	Level      int
	Oktmo      string
	Okato      string
	IsActual   bool
	IsActive   bool
	UpdateDate *time.Time
}

// HierarchyItem - запись файлов AS_ADM_HIERARCHY / AS_MUN_HIERARCHY (элемент ITEM)
type HierarchyItem struct {
	ObjectID    int64
	ParentObjID int64
	IsActive    bool
}

// House - запись файла AS_HOUSES (элемент HOUSE)
type House struct {
	ObjectID   int64
	ObjectGUID string
	HouseNum   string
	HouseType  *int
	AddNum1    *string
	AddNum2    *string
	AddType1   *int
	AddType2   *int
	IsActual   bool
	IsActive   bool
	UpdateDate *time.Time
}

// Stead - запись файла AS_STEADS (элемент STEAD)
type Stead struct {
	ObjectID   int64
	ObjectGUID string
	Number     string
	CadNum     string
	Area       float64
	Purpose    string
	IsActual   bool
	IsActive   bool
	UpdateDate *time.Time
}

// Param - запись файлов AS_*_PARAMS (элемент PARAM):
// значение параметра с интервалом действия
type Param struct {
	ObjectID  int64
	TypeID    int
	Value     string
	StartDate time.Time
	EndDate   time.Time
}

// Counters - счётчики одного файла
type Counters struct {
	Decoded      int // успешно разобранные записи
	Skipped      int // незнакомые элементы
	DecodeErrors int // записи без обязательного идентификатора объекта
}

func (c *Counters) Add(other Counters) {
	c.Decoded += other.Decoded
	c.Skipped += other.Skipped
	c.DecodeErrors += other.DecodeErrors
}

type Provider interface {
	DecodeAddressObjects(r io.Reader, fn func(rec AddressObject) error) (Counters, error)
	DecodeHierarchy(r io.Reader, fn func(rec HierarchyItem) error) (Counters, error)
	DecodeHouses(r io.Reader, fn func(rec House) error) (Counters, error)
	DecodeSteads(r io.Reader, fn func(rec Stead) error) (Counters, error)
	DecodeParams(r io.Reader, fn func(rec Param) error) (Counters, error)
}

func NewInstance() Provider {
	return &impl{}
}

type impl struct{}

const garDateLayout = "2006-01-02"

func (i impl) DecodeAddressObjects(r io.Reader, fn func(rec AddressObject) error) (Counters, error) {
	return decodeElements(r, "OBJECT", fn, func(attrs map[string]string) (AddressObject, bool) {
		objectID, ok := attrInt64(attrs, "OBJECTID")
		if !ok {
			return AddressObject{}, false
		}
		level, _ := attrInt(attrs, "LEVEL")
		return AddressObject{
			ObjectID:   objectID,
			ObjectGUID: attrGUID(attrs, "OBJECTGUID"),
			Name:       attrs["NAME"],
			TypeName:   attrs["TYPENAME"],
			Level:      level,
			Oktmo:      attrs["OKTMO"],
			Okato:      attrs["OKATO"],
			IsActual:   attrFlag(attrs, "ISACTUAL"),
			IsActive:   attrFlag(attrs, "ISACTIVE"),
			UpdateDate: attrDate(attrs, "UPDATEDATE"),
		}, true
	})
}

func (i impl) DecodeHierarchy(r io.Reader, fn func(rec HierarchyItem) error) (Counters, error) {
	return decodeElements(r, "ITEM", fn, func(attrs map[string]string) (HierarchyItem, bool) {
		objectID, ok := attrInt64(attrs, "OBJECTID")
		if !ok {
			return HierarchyItem{}, false
		}
		parentID, _ := attrInt64(attrs, "PARENTOBJID")
		return HierarchyItem{
			ObjectID:    objectID,
			ParentObjID: parentID,
			IsActive:    attrFlag(attrs, "ISACTIVE"),
		}, true
	})
}

func (i impl) DecodeHouses(r io.Reader, fn func(rec House) error) (Counters, error) {
	return decodeElements(r, "HOUSE", fn, func(attrs map[string]string) (House, bool) {
		objectID, ok := attrInt64(attrs, "OBJECTID")
		if !ok {
			return House{}, false
		}
		return House{
			ObjectID:   objectID,
			ObjectGUID: attrGUID(attrs, "OBJECTGUID"),
			HouseNum:   attrs["HOUSENUM"],
			HouseType:  attrIntPtr(attrs, "HOUSETYPE"),
			AddNum1:    attrStrPtr(attrs, "ADDNUM1"),
			AddNum2:    attrStrPtr(attrs, "ADDNUM2"),
			AddType1:   attrIntPtr(attrs, "ADDTYPE1"),
			AddType2:   attrIntPtr(attrs, "ADDTYPE2"),
			IsActual:   attrFlag(attrs, "ISACTUAL"),
			IsActive:   attrFlag(attrs, "ISACTIVE"),
			UpdateDate: attrDate(attrs, "UPDATEDATE"),
		}, true
	})
}

func (i impl) DecodeSteads(r io.Reader, fn func(rec Stead) error) (Counters, error) {
	return decodeElements(r, "STEAD", fn, func(attrs map[string]string) (Stead, bool) {
		objectID, ok := attrInt64(attrs, "OBJECTID")
		if !ok {
			return Stead{}, false
		}
		area, _ := strconv.ParseFloat(attrs["AREA"], 64)
		return Stead{
			ObjectID:   objectID,
			ObjectGUID: attrGUID(attrs, "OBJECTGUID"),
			Number:     attrs["NUMBER"],
			CadNum:     attrs["CADNUM"],
			Area:       area,
			Purpose:    attrs["PURPOSE"],
			IsActual:   attrFlag(attrs, "ISACTUAL"),
			IsActive:   attrFlag(attrs, "ISACTIVE"),
			UpdateDate: attrDate(attrs, "UPDATEDATE"),
		}, true
	})
}

func (i impl) DecodeParams(r io.Reader, fn func(rec Param) error) (Counters, error) {
	return decodeElements(r, "PARAM", fn, func(attrs map[string]string) (Param, bool) {
		objectID, ok := attrInt64(attrs, "OBJECTID")
		if !ok {
			return Param{}, false
		}
		typeID, ok := attrInt(attrs, "TYPEID")
		if !ok {
			return Param{}, false
		}
		rec := Param{
			ObjectID: objectID,
			TypeID:   typeID,
			Value:    strings.TrimSpace(attrs["VALUE"]),
		}
		if d := attrDate(attrs, "STARTDATE"); d != nil {
			rec.StartDate = *d
		}
		if d := attrDate(attrs, "ENDDATE"); d != nil {
			rec.EndDate = *d
		}
		return rec, true
	})
}

// decodeElements - общий цикл потокового разбора: интересует только
// элемент target, его атрибуты видны прямо на StartElement, вложенное
// содержимое пропускается через Skip
func decodeElements[T any](r io.Reader, target string, fn func(rec T) error, build func(attrs map[string]string) (T, bool)) (Counters, error) {
	var counters Counters
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return counters, nil
		}
		if err != nil {
			return counters, errors.Wrap(err, "ошибка разбора XML")
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != target {
			if !isRootElement(start.Name.Local) {
				counters.Skipped++
				if err := d.Skip(); err != nil {
					return counters, errors.Wrap(err, "ошибка пропуска элемента")
				}
			}
			continue
		}
		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}
		if err := d.Skip(); err != nil {
			return counters, errors.Wrap(err, "ошибка пропуска элемента")
		}
		rec, ok := build(attrs)
		if !ok {
			counters.DecodeErrors++
			continue
		}
		counters.Decoded++
		if err := fn(rec); err != nil {
			return counters, err
		}
	}
}

// корневые элементы-обёртки выгрузок, их пропуск не считается
func isRootElement(name string) bool {
	switch name {
	case "ADDRESSOBJECTS", "ITEMS", "HOUSES", "STEADS", "PARAMS":
		return true
	}
	return false
}

func attrInt64(attrs map[string]string, name string) (int64, bool) {
	v, err := strconv.ParseInt(attrs[name], 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

func attrInt(attrs map[string]string, name string) (int, bool) {
	v, err := strconv.Atoi(attrs[name])
	if err != nil {
		return 0, false
	}
	return v, true
}

func attrIntPtr(attrs map[string]string, name string) *int {
	v, ok := attrInt(attrs, name)
	if !ok {
		return nil
	}
	return &v
}

func attrStrPtr(attrs map[string]string, name string) *string {
	v, exist := attrs[name]
	if !exist || v == "" {
		return nil
	}
	return &v
}

func attrFlag(attrs map[string]string, name string) bool {
	return attrs[name] == "1"
}

func attrDate(attrs map[string]string, name string) *time.Time {
	v := attrs[name]
	if v == "" {
		return nil
	}
	t, err := time.Parse(garDateLayout, v)
	if err != nil {
		return nil
	}
	return &t
}

// attrGUID нормализует OBJECTGUID; значение, не являющееся UUID, отбрасывается
func attrGUID(attrs map[string]string, name string) string {
	id, err := uuid.Parse(attrs[name])
	if err != nil {
		return ""
	}
	return id.String()
}
