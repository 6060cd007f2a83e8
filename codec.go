package tariffmarket

import (
	"github.com/xraph/tariffmarket/balancing"
	"github.com/xraph/tariffmarket/publication"
	"github.com/xraph/tariffmarket/tariff"
	"github.com/xraph/tariffmarket/transaction"
	"github.com/xraph/tariffmarket/transport"
)

// Wire names of the messages exchanged with brokers.
const (
	MsgTariffSpecification = "tariffSpecification"
	MsgTariffStatus        = "tariffStatus"
	MsgTariffExpire        = "tariffExpire"
	MsgTariffRevoke        = "tariffRevoke"
	MsgVariableRateUpdate  = "variableRateUpdate"
	MsgBalancingOrder      = "balancingOrder"
	MsgEconomicControl     = "economicControlEvent"
	MsgBalancingControl    = "balancingControlEvent"
	MsgTariffBatch         = "tariffBatch"
)

// NewCodec returns a transport codec that knows every market message.
func NewCodec() *transport.Codec {
	c := transport.NewCodec()
	c.Register(MsgTariffSpecification, tariff.Specification{})
	c.Register(MsgTariffStatus, tariff.Status{})
	c.Register(MsgTariffExpire, tariff.Expire{})
	c.Register(MsgTariffRevoke, tariff.Revoke{})
	c.Register(MsgVariableRateUpdate, tariff.VariableRateUpdate{})
	c.Register(MsgBalancingOrder, balancing.Order{})
	c.Register(MsgEconomicControl, balancing.EconomicControl{})
	c.Register(MsgBalancingControl, transaction.BalancingControl{})
	c.Register(MsgTariffBatch, publication.Batch{})
	return c
}
