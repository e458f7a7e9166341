package resolver

// Coverage - счётчики покрытия связей по уровням; диагностика,
// ни один из счётчиков не останавливает загрузку
type Coverage struct {
	UnitsTotal  int
	UnitsLinked int

	SettlementsTotal  int
	SettlementsLinked int

	StreetsTotal    int
	StreetsLinked   int
	StreetsRejected int

	HousesTotal    int
	HousesLinked   int
	HousesRejected int
	// дом и его улица указали разные населённые пункты
	SettlementConflicts int

	PlotsTotal  int
	PlotsLinked int

	ParamsFolded  int
	ParamsUnknown int
}

func Ratio(linked, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(linked) / float64(total)
}

// Ratios - доли привязанных записей по видам связи
func (c *Coverage) Ratios() map[string]float64 {
	return map[string]float64{
		"units_linked":       Ratio(c.UnitsLinked, c.UnitsTotal),
		"settlements_linked": Ratio(c.SettlementsLinked, c.SettlementsTotal),
		"streets_linked":     Ratio(c.StreetsLinked, c.StreetsTotal),
		"houses_linked":      Ratio(c.HousesLinked, c.HousesTotal),
		"plots_linked":       Ratio(c.PlotsLinked, c.PlotsTotal),
	}
}
