package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the side of an order.
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionSell Action = "Sell"
)

// ParseAction accepts "buy"/"sell" in any case.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return ActionBuy, nil
	case "sell":
		return ActionSell, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// OrderSource tells whether an order came from the auto-trade loop or an operator.
type OrderSource string

const (
	SourceAuto   OrderSource = "auto"
	SourceManual OrderSource = "manual"
)

// Order is an immutable order intent handed to the submission collaborator.
type Order struct {
	ID           string      `json:"id"`
	Action       Action      `json:"action"`
	CurrencyPair string      `json:"currencyPair"`
	Quantity     float64     `json:"quantity"`
	Price        float64     `json:"price"`
	Timestamp    int64       `json:"timestamp"` // epoch ms
	Source       OrderSource `json:"source"`
}

// Notional returns quantity × price.
func (o *Order) Notional() float64 {
	return o.Quantity * o.Price
}

// JSON returns the JSON-encoded order.
func (o *Order) JSON() []byte {
	b, _ := json.Marshal(o)
	return b
}

// OrderStatus is the outcome reported by the submission collaborator.
type OrderStatus string

const (
	StatusAccepted OrderStatus = "ACCEPTED"
	StatusRejected OrderStatus = "REJECTED"
)

// OrderResult pairs an order with the collaborator's verdict.
type OrderResult struct {
	Order     Order       `json:"order"`
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message,omitempty"`
	FillPrice float64     `json:"fillPrice,omitempty"` // 0 when the collaborator did not report one
}

// Accepted reports whether the order was confirmed.
func (r OrderResult) Accepted() bool { return r.Status == StatusAccepted }
