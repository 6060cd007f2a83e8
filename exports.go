package tariffmarket

import (
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/types"
)

// Re-export common types so callers rarely need the sub-packages.

// Money is re-exported from the types package.
type Money = types.Money

// Clock is re-exported from the types package.
type Clock = types.Clock

// Tariff, Specification and Status are re-exported from the tariff package.
type (
	Tariff        = tariff.Tariff
	Specification = tariff.Specification
	Status        = tariff.Status
	PowerType     = tariff.PowerType
)

var (
	NewMoney    = types.NewMoney
	NewSimClock = types.NewSimClock
	Sum         = types.Sum
)
