package rule

import (
	"fmt"
	"regexp"
	"strings"

	"streamrelay/internal/condition"
	"streamrelay/internal/event"
)

// placeholder ids must be usable as a {token}
var validPlaceholderPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// validateAction rejects actions that cannot be used at all
func validateAction(action *Action) error {
	if action == nil {
		return &RuleValidationError{
			Field:   "action",
			Message: "action cannot be nil",
		}
	}

	field := actionsKey + "." + action.Name
	if strings.TrimSpace(action.EventType) == "" {
		return &RuleValidationError{
			Field:   field + ".action",
			Message: "event type cannot be empty",
		}
	}

	for i, cmd := range action.Commands {
		if strings.TrimSpace(cmd) == "" {
			return &RuleValidationError{
				Field:   fmt.Sprintf("%s.commands[%d]", field, i),
				Message: "command cannot be empty",
			}
		}
	}

	return nil
}

func validatePlaceholderID(field, id string) error {
	if !validPlaceholderPattern.MatchString(id) {
		return &RuleValidationError{
			Field:   field,
			Message: "placeholder id may only contain letters, digits and underscores",
		}
	}
	if event.Token(id) == PlayerToken {
		return &RuleValidationError{
			Field:   field,
			Message: "player is reserved for recipient expansion",
		}
	}
	return nil
}

// lintAction reports configuration that loads but will not behave as written
func lintAction(action *Action, registry *event.Registry) []error {
	field := actionsKey + "." + action.Name
	var warnings []error

	var variant event.Variant
	if registry != nil {
		v, ok := registry.Lookup(action.EventType)
		if !ok {
			warnings = append(warnings, &RuleValidationError{
				Field:   field + ".action",
				Message: fmt.Sprintf("unknown event type %q", action.EventType),
			})
		}
		variant = v
	}

	warnings = append(warnings, lintConditions(field+".conditions", action.Conditions)...)
	warnings = append(warnings, lintConditions(field+".donation_conditions", action.DonationConditions)...)

	if variant != nil && len(action.DonationConditions) > 0 {
		if _, ok := variant.(event.DonationVariant); !ok {
			warnings = append(warnings, &RuleValidationError{
				Field:   field + ".donation_conditions",
				Message: fmt.Sprintf("ignored for non-donation event %q", action.EventType),
			})
		}
	}

	return warnings
}

func lintPlaceholder(cp *CustomPlaceholder) []error {
	var warnings []error
	for _, state := range cp.States {
		field := placeholdersKey + "." + cp.ID + "." + state.Name
		warnings = append(warnings, lintConditions(field+".conditions", state.Conditions)...)
		warnings = append(warnings, lintConditions(field+".donation_conditions", state.DonationConditions)...)
	}
	return warnings
}

// lintConditions flags entries without a recognised operator. They always
// evaluate to false.
func lintConditions(field string, conditions []string) []error {
	var warnings []error
	for i, c := range conditions {
		if _, ok := condition.Find(c); !ok {
			msg := fmt.Sprintf("no operator in %q", c)
			if strings.Contains(c, "=") {
				msg += ", use == for equality"
			}
			warnings = append(warnings, &RuleValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: msg,
			})
		}
	}
	return warnings
}
