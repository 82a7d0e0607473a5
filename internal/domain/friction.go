package domain

import (
	"fmt"
	"math"
)

// CommissionModel elige cómo se cobra la comisión de cada fill.
type CommissionModel string

const (
	CommissionNone     CommissionModel = "none"
	CommissionFlat     CommissionModel = "flat"      // Amount por fill
	CommissionPerShare CommissionModel = "per_share" // Amount por acción
)

// ParseCommissionModel acepta el nombre del modelo; vacío equivale a "none".
func ParseCommissionModel(s string) (CommissionModel, error) {
	switch CommissionModel(s) {
	case "", CommissionNone:
		return CommissionNone, nil
	case CommissionFlat:
		return CommissionFlat, nil
	case CommissionPerShare:
		return CommissionPerShare, nil
	}
	return "", fmt.Errorf("unknown commission model %q", s)
}

// Friction agrupa slippage y comisión; se aplican igual a entradas y salidas.
type Friction struct {
	SlippageBps     float64
	Commission      CommissionModel
	CommissionValue float64
}

// BuyPrice sube el precio nominal por el slippage.
func (f Friction) BuyPrice(nominal float64) float64 {
	return nominal * (1 + f.SlippageBps/10_000)
}

// SellPrice baja el precio nominal por el slippage.
func (f Friction) SellPrice(nominal float64) float64 {
	return nominal * (1 - f.SlippageBps/10_000)
}

// CommissionFor devuelve la comisión de un fill de shares acciones.
func (f Friction) CommissionFor(shares int64) float64 {
	switch f.Commission {
	case CommissionFlat:
		if shares == 0 {
			return 0
		}
		return f.CommissionValue
	case CommissionPerShare:
		return f.CommissionValue * float64(shares)
	}
	return 0
}

// SharesFor devuelve el máximo de acciones enteras cuyo coste, comisión
// incluida, cabe en budget a fillPrice. Sin apalancamiento: nunca supera
// floor(budget / fillPrice).
func (f Friction) SharesFor(budget, fillPrice float64) int64 {
	if budget <= 0 || fillPrice <= 0 {
		return 0
	}
	perShare := fillPrice
	fixed := 0.0
	switch f.Commission {
	case CommissionFlat:
		fixed = f.CommissionValue
	case CommissionPerShare:
		perShare += f.CommissionValue
	}
	n := int64(math.Floor((budget - fixed) / perShare))
	if n < 0 {
		return 0
	}
	// el redondeo puede dejar el coste un pelo por encima del budget
	for n > 0 && float64(n)*fillPrice+f.CommissionFor(n) > budget {
		n--
	}
	return n
}
