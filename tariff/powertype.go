package tariff

// PowerType classifies the kind of energy a tariff or customer deals in.
type PowerType string

const (
	Consumption               PowerType = "CONSUMPTION"
	Production                PowerType = "PRODUCTION"
	Storage                   PowerType = "STORAGE"
	InterruptibleConsumption  PowerType = "INTERRUPTIBLE_CONSUMPTION"
	ThermalStorageConsumption PowerType = "THERMAL_STORAGE_CONSUMPTION"
	SolarProduction           PowerType = "SOLAR_PRODUCTION"
	WindProduction            PowerType = "WIND_PRODUCTION"
	RunOfRiverProduction      PowerType = "RUN_OF_RIVER_PRODUCTION"
	PumpedStorageProduction   PowerType = "PUMPED_STORAGE_PRODUCTION"
	CHPProduction             PowerType = "CHP_PRODUCTION"
	FossilProduction          PowerType = "FOSSIL_PRODUCTION"
	BatteryStorage            PowerType = "BATTERY_STORAGE"
	ElectricVehicle           PowerType = "ELECTRIC_VEHICLE"
)

// IsConsumption reports whether the type draws energy from the grid.
func (p PowerType) IsConsumption() bool {
	switch p {
	case Consumption, ElectricVehicle, InterruptibleConsumption, ThermalStorageConsumption:
		return true
	}
	return false
}

// IsProduction reports whether the type feeds energy into the grid.
func (p PowerType) IsProduction() bool {
	switch p {
	case Production, CHPProduction, FossilProduction, RunOfRiverProduction, SolarProduction, WindProduction:
		return true
	}
	return false
}

// IsInterruptible reports whether usage of this type can be curtailed.
func (p PowerType) IsInterruptible() bool {
	switch p {
	case InterruptibleConsumption, ThermalStorageConsumption, BatteryStorage, ElectricVehicle:
		return true
	}
	return false
}

// IsStorage reports whether the type can absorb and return energy.
func (p PowerType) IsStorage() bool {
	switch p {
	case Storage, ThermalStorageConsumption, BatteryStorage, ElectricVehicle, PumpedStorageProduction:
		return true
	}
	return false
}

// CanUse reports whether a customer of type p may subscribe to a tariff
// offered for tariffType.
func (p PowerType) CanUse(tariffType PowerType) bool {
	return p == tariffType ||
		(p.IsConsumption() && tariffType == Consumption) ||
		(p.IsProduction() && tariffType == Production) ||
		(p.IsStorage() && tariffType == Storage) ||
		(p.IsInterruptible() && tariffType == InterruptibleConsumption)
}

// Generic returns the broad category of p, or "" if it has none.
func (p PowerType) Generic() PowerType {
	switch {
	case p.IsStorage():
		return Storage
	case p.IsConsumption():
		return Consumption
	case p.IsProduction():
		return Production
	}
	return ""
}

// Valid reports whether p is one of the known power types.
func (p PowerType) Valid() bool {
	return p == Consumption || p == Production || p == Storage || p.Generic() != ""
}

func (p PowerType) String() string { return string(p) }
