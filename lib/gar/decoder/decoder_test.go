package decoder

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecodeAddressObjects(t *testing.T) {
	xmlData := `<?xml version="1.0" encoding="utf-8"?>
<ADDRESSOBJECTS>
  <OBJECT ID="1" OBJECTID="10" OBJECTGUID="5c8b06f1-518e-496e-b1cd-2dbcb5439f91" NAME="Екатеринбург" TYPENAME="г" LEVEL="5" OKTMO="65701000" ISACTUAL="1" ISACTIVE="1" UPDATEDATE="2023-05-01"/>
  <OBJECT ID="2" OBJECTID="11" NAME="Ленина" TYPENAME="ул" LEVEL="8" ISACTUAL="1" ISACTIVE="0"/>
  <OBJECT ID="3" NAME="без идентификатора" LEVEL="8"/>
  <UNKNOWN><NESTED/></UNKNOWN>
</ADDRESSOBJECTS>`

	var recs []AddressObject
	counters, err := NewInstance().DecodeAddressObjects(strings.NewReader(xmlData), func(rec AddressObject) error {
		recs = append(recs, rec)
		return nil
	})
	require.Nil(t, err)
	require.Equal(t, 2, counters.Decoded)
	require.Equal(t, 1, counters.DecodeErrors)
	require.Equal(t, 1, counters.Skipped)
	require.Len(t, recs, 2)

	require.Equal(t, int64(10), recs[0].ObjectID)
	require.Equal(t, "5c8b06f1-518e-496e-b1cd-2dbcb5439f91", recs[0].ObjectGUID)
	require.Equal(t, "Екатеринбург", recs[0].Name)
	require.Equal(t, 5, recs[0].Level)
	require.Equal(t, "65701000", recs[0].Oktmo)
	require.True(t, recs[0].IsActive)
	require.NotNil(t, recs[0].UpdateDate)
	require.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), *recs[0].UpdateDate)

	// невалидный GUID отбрасывается, флаг активности читается
	require.Equal(t, "", recs[1].ObjectGUID)
	require.False(t, recs[1].IsActive)
}

func TestDecodeHierarchy(t *testing.T) {
	xmlData := `<ITEMS>
  <ITEM OBJECTID="100" PARENTOBJID="10" ISACTIVE="1"/>
  <ITEM OBJECTID="101" ISACTIVE="1"/>
  <ITEM PARENTOBJID="10" ISACTIVE="1"/>
</ITEMS>`

	var recs []HierarchyItem
	counters, err := NewInstance().DecodeHierarchy(strings.NewReader(xmlData), func(rec HierarchyItem) error {
		recs = append(recs, rec)
		return nil
	})
	require.Nil(t, err)
	require.Equal(t, 2, counters.Decoded)
	require.Equal(t, 1, counters.DecodeErrors)
	require.Equal(t, int64(100), recs[0].ObjectID)
	require.Equal(t, int64(10), recs[0].ParentObjID)
	// отсутствие родителя - не ошибка разбора
	require.Equal(t, int64(0), recs[1].ParentObjID)
}

func TestDecodeHouses(t *testing.T) {
	xmlData := `<HOUSES>
  <HOUSE ID="1" OBJECTID="1000" HOUSENUM="12" HOUSETYPE="2" ADDNUM1="3" ADDTYPE1="1" ISACTUAL="1" ISACTIVE="1"/>
</HOUSES>`

	var recs []House
	counters, err := NewInstance().DecodeHouses(strings.NewReader(xmlData), func(rec House) error {
		recs = append(recs, rec)
		return nil
	})
	require.Nil(t, err)
	require.Equal(t, 1, counters.Decoded)
	h := recs[0]
	require.Equal(t, "12", h.HouseNum)
	require.NotNil(t, h.HouseType)
	require.Equal(t, 2, *h.HouseType)
	require.NotNil(t, h.AddNum1)
	require.Equal(t, "3", *h.AddNum1)
	require.Nil(t, h.AddNum2)
}

func TestDecodeParams(t *testing.T) {
	xmlData := `<PARAMS>
  <PARAM ID="1" OBJECTID="1000" TYPEID="8" VALUE="66:41:0000000:1" STARTDATE="2020-01-01" ENDDATE="2079-06-06"/>
  <PARAM ID="2" OBJECTID="1000" VALUE="без типа"/>
</PARAMS>`

	var recs []Param
	counters, err := NewInstance().DecodeParams(strings.NewReader(xmlData), func(rec Param) error {
		recs = append(recs, rec)
		return nil
	})
	require.Nil(t, err)
	require.Equal(t, 1, counters.Decoded)
	require.Equal(t, 1, counters.DecodeErrors)
	require.Equal(t, 8, recs[0].TypeID)
	require.Equal(t, "66:41:0000000:1", recs[0].Value)
	require.Equal(t, 2020, recs[0].StartDate.Year())
	require.Equal(t, 2079, recs[0].EndDate.Year())
}

func TestDecodeMalformedXML(t *testing.T) {
	xmlData := `<HOUSES><HOUSE OBJECTID="1" ISACTIVE="1">`
	_, err := NewInstance().DecodeHouses(strings.NewReader(xmlData), func(rec House) error { return nil })
	require.NotNil(t, err)
}

func TestDecodeStopsOnCallbackError(t *testing.T) {
	xmlData := `<HOUSES><HOUSE OBJECTID="1"/><HOUSE OBJECTID="2"/></HOUSES>`
	calls := 0
	_, err := NewInstance().DecodeHouses(strings.NewReader(xmlData), func(rec House) error {
		calls++
		return errAbort
	})
	require.Equal(t, errAbort, err)
	require.Equal(t, 1, calls)
}

var errAbort = errors.New("стоп")
