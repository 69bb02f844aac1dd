package condition

import (
	"regexp"
	"strings"
	"sync"
)

// Operator is a named binary predicate. Operands are either both float64 or
// both string, see Condition.Evaluate.
type Operator interface {
	Symbol() string
	Check(left, right interface{}) bool
}

type equals struct{}

func (equals) Symbol() string { return "==" }

func (equals) Check(left, right interface{}) bool {
	return left == right
}

type notEquals struct{}

func (notEquals) Symbol() string { return "!=" }

func (notEquals) Check(left, right interface{}) bool {
	return left != right
}

// numeric compares two float64 operands. Anything else is false.
type numeric struct {
	symbol string
	cmp    func(a, b float64) bool
}

func (n numeric) Symbol() string { return n.symbol }

func (n numeric) Check(left, right interface{}) bool {
	a, ok := left.(float64)
	if !ok {
		return false
	}
	b, ok := right.(float64)
	if !ok {
		return false
	}
	return n.cmp(a, b)
}

type contains struct{}

func (contains) Symbol() string { return ".>" }

func (contains) Check(left, right interface{}) bool {
	a, ok := left.(string)
	if !ok {
		return false
	}
	b, ok := right.(string)
	if !ok {
		return false
	}
	return strings.Contains(a, b)
}

// matches tests the left operand against the right operand as a pattern
type matches struct{}

func (matches) Symbol() string { return "~=" }

func (matches) Check(left, right interface{}) bool {
	a, ok := left.(string)
	if !ok {
		return false
	}
	pattern, ok := right.(string)
	if !ok {
		return false
	}
	re, err := compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(a)
}

var regexCache sync.Map // pattern -> *regexp.Regexp

func compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// registry order is the lookup order of Find
var registry = []Operator{
	equals{},
	notEquals{},
	numeric{symbol: ">=", cmp: func(a, b float64) bool { return a >= b }},
	numeric{symbol: "<=", cmp: func(a, b float64) bool { return a <= b }},
	numeric{symbol: ">>", cmp: func(a, b float64) bool { return a > b }},
	numeric{symbol: "<<", cmp: func(a, b float64) bool { return a < b }},
	contains{},
	matches{},
}

// Operators returns the registered operators in lookup order
func Operators() []Operator {
	out := make([]Operator, len(registry))
	copy(out, registry)
	return out
}

// Find returns the first registered operator whose symbol occurs in s
func Find(s string) (Operator, bool) {
	for _, op := range registry {
		if strings.Contains(s, op.Symbol()) {
			return op, true
		}
	}
	return nil, false
}
