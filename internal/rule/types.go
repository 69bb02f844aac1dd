package rule

import (
	"fmt"
	"strings"

	"streamrelay/internal/condition"
	"streamrelay/internal/event"
)

const (
	// DefaultEventType is assigned to actions without an "action" key. No
	// variant uses it, so such actions never fire.
	DefaultEventType = "unknown"

	// PlayerToken expands into one command per recipient
	PlayerToken = "{player}"
)

// MessageTemplate is a broadcast line sent when an action fires
type MessageTemplate string

// Action is a configured rule bound to one event type. A nil condition list
// means the key was absent; both nil and empty lists pass.
type Action struct {
	Name               string
	EventType          string
	Enabled            bool
	Messages           []MessageTemplate
	Conditions         []string
	DonationConditions []string
	Commands           []string
}

// Check reports whether the action's conditions hold for the payload
func (a *Action) Check(v event.Variant, p event.Payload) bool {
	return condition.CheckAll(v, a.Conditions, a.DonationConditions, p)
}

// StateBasedValue is one candidate value of a custom placeholder
type StateBasedValue struct {
	Name               string
	Value              *string
	Conditions         []string
	DonationConditions []string
}

// CustomPlaceholder is a configured {id} whose value depends on the event
type CustomPlaceholder struct {
	ID           string
	DefaultValue *string
	States       []StateBasedValue
}

// Resolve returns the value of the first state whose conditions hold, else the
// default. Missing values resolve to "".
func (c *CustomPlaceholder) Resolve(v event.Variant, p event.Payload) string {
	for _, state := range c.States {
		if condition.CheckAll(v, state.Conditions, state.DonationConditions, p) {
			return deref(state.Value)
		}
	}
	return deref(c.DefaultValue)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RuleSet is an immutable snapshot of the configured actions and custom
// placeholders. Reloads build a new RuleSet instead of editing one.
type RuleSet struct {
	actions      []*Action
	byEvent      map[string][]*Action
	placeholders []*CustomPlaceholder
}

// NewRuleSet groups actions by event type keeping declaration order
func NewRuleSet(actions []*Action, placeholders []*CustomPlaceholder) *RuleSet {
	rs := &RuleSet{
		actions:      actions,
		byEvent:      make(map[string][]*Action),
		placeholders: placeholders,
	}
	for _, a := range actions {
		rs.byEvent[a.EventType] = append(rs.byEvent[a.EventType], a)
	}
	return rs
}

// ActionsFor returns the actions bound to a variant id in declaration order
func (rs *RuleSet) ActionsFor(eventType string) []*Action {
	return rs.byEvent[eventType]
}

func (rs *RuleSet) Actions() []*Action {
	return rs.actions
}

func (rs *RuleSet) CustomPlaceholders() []*CustomPlaceholder {
	return rs.placeholders
}

func (rs *RuleSet) ActionCount() int {
	return len(rs.actions)
}

// ResolvePlaceholders substitutes custom placeholders in template. A chosen
// value may itself reference event placeholders.
func (rs *RuleSet) ResolvePlaceholders(template string, v event.Variant, p event.Payload) string {
	if !strings.Contains(template, "{") {
		return template
	}
	for _, cp := range rs.placeholders {
		token := event.Token(cp.ID)
		if !strings.Contains(template, token) {
			continue
		}
		value := v.Placeholders().ResolveAll(cp.Resolve(v, p), p)
		template = strings.ReplaceAll(template, token, value)
	}
	return template
}

// RuleValidationError represents a rule validation error
type RuleValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
