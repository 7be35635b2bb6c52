package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OrderItem is one line of an order.
type OrderItem struct {
	Name  string
	Qty   float64
	Price float64
}

// Order is the payload summarized into the {order} token.
type Order struct {
	ID           string
	CustomerName string
	Items        []OrderItem
	// Total is used as is when set, otherwise it is the sum of the lines.
	Total *float64
}

// OrderLabels are the headings written before each section.
type OrderLabels struct {
	OrderID  string
	Customer string
	Items    string
	Total    string
}

// Summary renders an order as plain text, one item per line:
//
//	- Widget x2 = 40
func (o Order) Summary(labels OrderLabels) string {
	var b strings.Builder
	if o.ID != "" {
		fmt.Fprintf(&b, "%s: %s\n", labels.OrderID, o.ID)
	}
	if o.CustomerName != "" {
		fmt.Fprintf(&b, "%s: %s\n", labels.Customer, o.CustomerName)
	}

	var sum float64
	if len(o.Items) > 0 {
		if labels.Items != "" {
			fmt.Fprintf(&b, "%s:\n", labels.Items)
		}
		for _, it := range o.Items {
			line := it.Price * it.Qty
			sum += line
			fmt.Fprintf(&b, "- %s x%s = %s\n", it.Name, formatNumber(it.Qty), formatNumber(line))
		}
	}

	total := sum
	if o.Total != nil {
		total = *o.Total
	}
	if o.Total != nil || len(o.Items) > 0 {
		fmt.Fprintf(&b, "%s: %s", labels.Total, formatNumber(total))
	}
	return strings.TrimSpace(b.String())
}

// formatNumber prints integral values without a fraction and others with at
// most two decimals.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
