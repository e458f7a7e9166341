package models

// Статусы объектов реестра (справочник object_statuses)
const (
	ObjectStatusActive  = 1
	ObjectStatusDeleted = 2
)

// Уровни адресных объектов ГАР
const (
	LevelRegionMin = 1 // административные единицы: уровни 1-3
	LevelRegionMax = 3
	LevelPlaceMin  = 4 // населённые пункты: уровни 4-7
	LevelPlaceMax  = 7
	LevelStreet    = 8 // улицы
)

// Типы параметров адресных объектов (справочник param_types),
// значения складываются в плоские поля домов и участков
const (
	ParamTypePostalCode      = 5
	ParamTypeOkato           = 6
	ParamTypeOktmo           = 7
	ParamTypeCadastralNumber = 8
	ParamTypeKladrCode       = 10
	ParamTypeEgrnNumber      = 13
)
