package condition

import (
	"math"
	"strconv"
	"strings"

	"streamrelay/internal/event"
)

// Lookup resolves a placeholder name to its value function
type Lookup interface {
	Lookup(name string) (event.ValueFunc, bool)
}

// Condition is a parsed comparison between two operands
type Condition struct {
	Source   string
	Operator Operator
	Left     event.ValueFunc
	Right    event.ValueFunc
}

// Parse builds a condition from "<left><symbol><right>". The string is split
// on the first occurrence of the symbol; later occurrences stay in the right
// operand. Operands written {name} resolve through lookup, anything else is a
// literal.
func Parse(s string, lookup Lookup) (*Condition, bool) {
	op, ok := Find(s)
	if !ok {
		return nil, false
	}

	left, right, _ := strings.Cut(s, op.Symbol())
	return &Condition{
		Source:   s,
		Operator: op,
		Left:     operand(strings.TrimSpace(left), lookup),
		Right:    operand(strings.TrimSpace(right), lookup),
	}, true
}

func operand(text string, lookup Lookup) event.ValueFunc {
	if len(text) >= 3 && strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") && lookup != nil {
		if fn, ok := lookup.Lookup(text[1 : len(text)-1]); ok {
			return fn
		}
	}
	return func(event.Payload) string { return text }
}

// Evaluate compares the operands numerically when both parse as finite
// numbers and as strings otherwise.
func (c *Condition) Evaluate(p event.Payload) bool {
	left := c.Left(p)
	right := c.Right(p)

	a, okA := finite(left)
	b, okB := finite(right)
	if okA && okB {
		return c.Operator.Check(a, b)
	}
	return c.Operator.Check(left, right)
}

// finite parses s as a number. NaN and the infinities are text here, so a
// viewer called "NaN" or "inf" still compares by name.
func finite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseAll parses every string. Entries without an operator are kept as nil
// so callers can fail them.
func ParseAll(strs []string, lookup Lookup) []*Condition {
	out := make([]*Condition, len(strs))
	for i, s := range strs {
		if c, ok := Parse(s, lookup); ok {
			out[i] = c
		}
	}
	return out
}

// CheckAll reports whether every condition holds for the payload. Donation
// conditions only apply to variants carrying an amount. Empty or absent lists
// pass; an unparseable condition fails.
func CheckAll(v event.Variant, conditions, donationConditions []string, p event.Payload) bool {
	lookup := v.Placeholders()
	if !holds(conditions, lookup, p) {
		return false
	}
	if _, ok := v.(event.DonationVariant); ok {
		return holds(donationConditions, lookup, p)
	}
	return true
}

func holds(strs []string, lookup Lookup, p event.Payload) bool {
	for _, c := range ParseAll(strs, lookup) {
		if c == nil || !c.Evaluate(p) {
			return false
		}
	}
	return true
}
