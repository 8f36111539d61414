// Package receipt is the ingestion boundary for receipt data.
//
// Receipt JSON arrives from the vision assistant or from a browser client and
// cannot be trusted to be well typed: numbers may be quoted, carry currency
// symbols, be null or be missing entirely. Everything is normalized here, once,
// so the settlement calculator only ever sees finite numbers and unique item IDs.
package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/money"
)

// DefaultCurrency is used when a receipt has no currency symbol.
const DefaultCurrency = "$"

var (
	ErrInvalidJSON     = errors.New("invalid receipt JSON")
	ErrDuplicateItemID = errors.New("duplicate item id")
)

type rawItem struct {
	ID          any `json:"id"`
	Description any `json:"description"`
	Price       any `json:"price"`
	Quantity    any `json:"quantity"`
}

type rawReceipt struct {
	Items    []rawItem `json:"items"`
	Subtotal any       `json:"subtotal"`
	Tax      any       `json:"tax"`
	Tip      any       `json:"tip"`
	Total    any       `json:"total"`
	Currency any       `json:"currency"`
}

// Parse decodes loosely typed receipt JSON and normalizes it.
func Parse(data []byte) (*models.Receipt, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawReceipt
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	r := models.Receipt{
		Subtotal: number(raw.Subtotal),
		Tax:      number(raw.Tax),
		Tip:      number(raw.Tip),
		Total:    number(raw.Total),
		Currency: text(raw.Currency),
		Items:    make([]models.ReceiptItem, 0, len(raw.Items)),
	}
	for _, item := range raw.Items {
		r.Items = append(r.Items, models.ReceiptItem{
			ID:          text(item.ID),
			Description: text(item.Description),
			Price:       number(item.Price),
			Quantity:    int(number(item.Quantity)),
		})
	}
	return Normalize(r)
}

// Normalize returns a sanitized copy of r:
//   - non-finite numbers become 0
//   - subtotal, tax, tip and total are clamped to ≥ 0 (item prices may be negative)
//   - quantity is at least 1
//   - items without an ID get the next free "item_N"
//   - an empty currency becomes DefaultCurrency
//
// It fails with ErrDuplicateItemID if two items share an explicit ID.
func Normalize(r models.Receipt) (*models.Receipt, error) {
	out := &models.Receipt{
		Subtotal: nonNegative(r.Subtotal),
		Tax:      nonNegative(r.Tax),
		Tip:      nonNegative(r.Tip),
		Total:    nonNegative(r.Total),
		Currency: strings.TrimSpace(r.Currency),
		Items:    make([]models.ReceiptItem, 0, len(r.Items)),
	}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}

	taken := make(map[string]bool, len(r.Items))
	for _, item := range r.Items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		if taken[id] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItemID, id)
		}
		taken[id] = true
	}

	next := 0
	for _, item := range r.Items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			for taken[fmt.Sprintf("item_%d", next)] {
				next++
			}
			id = fmt.Sprintf("item_%d", next)
			taken[id] = true
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		out.Items = append(out.Items, models.ReceiptItem{
			ID:          id,
			Description: strings.TrimSpace(item.Description),
			Price:       money.Finite(item.Price),
			Quantity:    qty,
		})
	}
	return out, nil
}

// ItemsTotal returns the exact sum of item prices.
func ItemsTotal(r *models.Receipt) float64 {
	prices := make([]float64, len(r.Items))
	for i, item := range r.Items {
		prices[i] = item.Price
	}
	return money.Sum(prices...)
}

func nonNegative(v float64) float64 {
	v = money.Finite(v)
	if v < 0 {
		return 0
	}
	return v
}

// number coerces a decoded JSON value to a finite float, defaulting to 0.
func number(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return money.Finite(f)
	case float64:
		return money.Finite(n)
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimLeft(s, "$€£¥₹ ")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return money.Finite(f)
	default:
		return 0
	}
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
