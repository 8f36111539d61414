package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmynk/splitsmart/internal/models"
)

const receiptPrompt = `You are a world-class receipt parsing agent. Extract structured data from this receipt.

CONTEXT & EDGE CASES:
1. COMPLEX LAYOUTS: Item descriptions may span multiple lines. Prices are usually on the far right. Quantities may be on the left or in the middle.
2. DISCOUNTS: "Discount", "Coupon" or negative values are items with a negative price.
3. SERVICE CHARGE: A service charge separate from the tip is added to the 'tip' field, or listed as an item if it is substantial.
4. MULTIPLE TAXES: Sum all tax components (GST, PST, VAT) into the single 'tax' field.
5. NOISE: Ignore store addresses, phone numbers and marketing text.
6. HANDWRITTEN NOTES: Handwritten tips or totals win over printed ones when they look like final adjustments.
7. QUANTITY: If no quantity is listed, assume 1.

FIELDS:
- 'items[].id': a unique ID like "item_0", "item_1".
- 'items[].description': the full item name.
- 'items[].price': the line total (unit price times quantity).
- 'items[].quantity': the number of units.
- 'currency': the currency symbol ($, €, £, ...). Use "$" if none is shown.
- 'subtotal', 'tax', 'tip', 'total': numbers.

Check the math: the item prices should roughly sum to the subtotal, and total should equal subtotal + tax + tip.`

func commandPrompt(cmd Command) (string, error) {
	items, err := json.Marshal(cmd.Receipt.Items)
	if err != nil {
		return "", fmt.Errorf("encoding items: %w", err)
	}
	assignments := cmd.Assignments
	if assignments == nil {
		assignments = models.AssignmentMap{}
	}
	current, err := json.Marshal(assignments)
	if err != nil {
		return "", fmt.Errorf("encoding assignments: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a bill-splitting assistant.\n")
	if cmd.UserName != "" {
		fmt.Fprintf(&b, "The user is %q. \"I\", \"me\" and \"my\" refer to %q.\n", cmd.UserName, cmd.UserName)
	}
	fmt.Fprintf(&b, "\nRECEIPT: %s\nCURRENT ASSIGNMENTS: %s\nUSER COMMAND: %q\n", items, current, cmd.Message)
	b.WriteString(`
RULES:
- "X had Y": add X to Y's owners.
- "Split Y between A, B, C": set Y's owners to [A, B, C].
- "Everyone shared Y": set Y's owners to all known participants.
- "Remove X from Y": take X out of Y's owners.
- Match item names loosely.
- Return the FULL updated assignment map, including items the command did not touch.

Output JSON with "updatedAssignments" (array of {itemId, owners}) and "reply" (a short confirmation for the user).`)
	return b.String(), nil
}

// schema is the subset of the OpenAPI schema object the model API accepts.
type schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]schema `json:"properties,omitempty"`
	Items       *schema           `json:"items,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

var receiptSchema = schema{
	Type: "OBJECT",
	Properties: map[string]schema{
		"items": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]schema{
					"id":          {Type: "STRING", Description: "Unique identifier for the item."},
					"description": {Type: "STRING", Description: "Clear description of the item."},
					"price":       {Type: "NUMBER", Description: "The total price for this line item (qty * unit price)."},
					"quantity":    {Type: "NUMBER", Description: "Number of units purchased."},
				},
				Required: []string{"id", "description", "price", "quantity"},
			},
		},
		"subtotal": {Type: "NUMBER", Description: "Total before tax and tip."},
		"tax":      {Type: "NUMBER", Description: "Total tax amount."},
		"tip":      {Type: "NUMBER", Description: "Total tip or service charge."},
		"total":    {Type: "NUMBER", Description: "Grand total of the receipt."},
		"currency": {Type: "STRING", Description: "The currency symbol used."},
	},
	Required: []string{"items", "subtotal", "tax", "total", "currency"},
}

var commandSchema = schema{
	Type: "OBJECT",
	Properties: map[string]schema{
		"updatedAssignments": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]schema{
					"itemId": {Type: "STRING"},
					"owners": {Type: "ARRAY", Items: &schema{Type: "STRING"}},
				},
				Required: []string{"itemId", "owners"},
			},
		},
		"reply": {Type: "STRING"},
	},
	Required: []string{"updatedAssignments", "reply"},
}
