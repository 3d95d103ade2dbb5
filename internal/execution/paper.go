package execution

import (
	"context"
	"fmt"

	"alphafx/internal/model"
)

// PaperSubmitter simulates order execution without an external venue.
// Orders larger than MaxQuantity (when set) are rejected.
type PaperSubmitter struct {
	slippageBps float64 // basis points of slippage (e.g., 5 = 0.05%)
	maxQuantity float64
}

// NewPaperSubmitter creates a paper submitter.
// slippageBps controls simulated slippage in basis points; maxQuantity of 0
// disables the size check.
func NewPaperSubmitter(slippageBps, maxQuantity float64) *PaperSubmitter {
	return &PaperSubmitter{
		slippageBps: slippageBps,
		maxQuantity: maxQuantity,
	}
}

// Submit fills the order at its price adjusted for slippage.
func (p *PaperSubmitter) Submit(ctx context.Context, order model.Order) (model.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderResult{}, err
	}
	if p.maxQuantity > 0 && order.Quantity > p.maxQuantity {
		return model.OrderResult{
			Order:   order,
			Status:  model.StatusRejected,
			Message: fmt.Sprintf("quantity %v exceeds paper limit %v", order.Quantity, p.maxQuantity),
		}, nil
	}

	slippage := order.Price * p.slippageBps / 10000
	fillPrice := order.Price
	if order.Action == model.ActionBuy {
		fillPrice += slippage // buy higher
	} else {
		fillPrice -= slippage // sell lower
	}

	return model.OrderResult{
		Order:     order,
		Status:    model.StatusAccepted,
		Message:   fmt.Sprintf("paper filled at %.4f", fillPrice),
		FillPrice: fillPrice,
	}, nil
}
