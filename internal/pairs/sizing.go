package pairs

import (
	"fmt"
	"math"

	"trading-replay/internal/model"
)

// TickSize returns the quantity step for an instrument at price. Cheaper
// instruments trade in coarser steps.
func TickSize(price float64) float64 {
	switch {
	case price < 5:
		return 1
	case price < 100:
		return 0.01
	case price < 2000:
		return 0.001
	case price < 10000:
		return 0.0001
	}
	return 0.00001
}

// RoundStep floors q to a multiple of step.
func RoundStep(q, step float64) float64 {
	// tolerate representation error just under a step boundary
	n := math.Floor(q/step + 1e-9)
	return n * step
}

// Sizing is the leg quantities for one pair entry.
type Sizing struct {
	QtyY      float64
	QtyX      float64
	NotionalY float64
	NotionalX float64
}

// Size splits total across the legs so that QtyX = coeff*QtyY:
// QtyY = total / (pxX*coeff + pxY), each rounded down to its tick size.
func Size(total, pxY, pxX, coeff float64) (Sizing, error) {
	if pxY <= 0 || pxX <= 0 {
		return Sizing{}, fmt.Errorf("%w: non-positive leg price (%g, %g)", model.ErrValidation, pxY, pxX)
	}
	if coeff <= 0 {
		return Sizing{}, fmt.Errorf("%w: hedge ratio %g is not tradable", model.ErrValidation, coeff)
	}
	qtyY := RoundStep(total/(pxX*coeff+pxY), TickSize(pxY))
	qtyX := RoundStep(coeff*qtyY, TickSize(pxX))
	if qtyY <= 0 || qtyX <= 0 {
		return Sizing{}, fmt.Errorf("%w: %g does not buy one step of both legs (%g, %g)",
			model.ErrValidation, total, qtyY, qtyX)
	}
	return Sizing{
		QtyY:      qtyY,
		QtyX:      qtyX,
		NotionalY: qtyY * pxY,
		NotionalX: qtyX * pxX,
	}, nil
}
