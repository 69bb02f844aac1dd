package rule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"streamrelay/internal/event"
	"streamrelay/internal/logger"
)

const (
	actionsKey      = "actions"
	placeholdersKey = "custom_placeholders"
	defaultValueKey = "default_value"
)

// Loader builds RuleSets from the YAML configuration document. Sections that
// cannot be parsed are logged and skipped; the rest of the document loads.
type Loader struct {
	logger   *logger.Logger
	registry *event.Registry
}

func NewLoader(log *logger.Logger, registry *event.Registry) *Loader {
	return &Loader{
		logger:   log,
		registry: registry,
	}
}

// LoadFile reads and loads a configuration file
func (l *Loader) LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return l.Load(data)
}

// Load parses the actions and custom_placeholders sections of data. Only a
// document that is not YAML at all is an error.
func (l *Loader) Load(data []byte) (*RuleSet, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules document: %w", err)
	}

	root := documentRoot(&doc)
	if root == nil {
		return NewRuleSet(nil, nil), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, &RuleValidationError{Field: "document", Message: "expected a mapping at the top level"}
	}

	actions := l.loadActions(lookupKey(root, actionsKey))
	placeholders := l.loadPlaceholders(lookupKey(root, placeholdersKey))

	l.logger.Info("rules loaded",
		"actions", len(actions),
		"customPlaceholders", len(placeholders))

	return NewRuleSet(actions, placeholders), nil
}

func (l *Loader) loadActions(section *yaml.Node) []*Action {
	if section == nil {
		return nil
	}
	if section.Kind != yaml.MappingNode {
		l.logger.Warn("ignoring actions section", "error", notMapping(actionsKey))
		return nil
	}

	var actions []*Action
	for i := 0; i+1 < len(section.Content); i += 2 {
		key := section.Content[i].Value
		action, err := parseAction(key, resolve(section.Content[i+1]))
		if err != nil {
			l.logger.Warn("skipping action", "action", key, "error", err)
			continue
		}
		for _, warning := range lintAction(action, l.registry) {
			l.logger.Warn("action may never fire as configured", "action", key, "warning", warning)
		}
		actions = append(actions, action)
	}
	return actions
}

func (l *Loader) loadPlaceholders(section *yaml.Node) []*CustomPlaceholder {
	if section == nil {
		return nil
	}
	if section.Kind != yaml.MappingNode {
		l.logger.Warn("ignoring custom placeholders section", "error", notMapping(placeholdersKey))
		return nil
	}

	var placeholders []*CustomPlaceholder
	seen := make(map[string]bool)
	for i := 0; i+1 < len(section.Content); i += 2 {
		id := section.Content[i].Value
		cp, err := parsePlaceholder(id, resolve(section.Content[i+1]))
		if err == nil && seen[id] {
			err = &RuleValidationError{Field: placeholdersKey + "." + id, Message: "duplicate placeholder"}
		}
		if err != nil {
			l.logger.Warn("skipping custom placeholder", "placeholder", id, "error", err)
			continue
		}
		for _, warning := range lintPlaceholder(cp) {
			l.logger.Warn("custom placeholder state may never match", "placeholder", id, "warning", warning)
		}
		seen[id] = true
		placeholders = append(placeholders, cp)
	}
	return placeholders
}

func parseAction(key string, node *yaml.Node) (*Action, error) {
	field := actionsKey + "." + key
	if node.Kind != yaml.MappingNode {
		return nil, notMapping(field)
	}

	action := &Action{
		Name:      key,
		EventType: DefaultEventType,
		Enabled:   true,
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		value := resolve(node.Content[i+1])
		var err error

		switch name {
		case "action":
			action.EventType, err = scalar(field+".action", value)
		case "enabled":
			err = decodeScalar(field+".enabled", value, &action.Enabled)
		case "messages":
			var messages []string
			messages, err = stringList(field+".messages", value)
			for _, m := range messages {
				action.Messages = append(action.Messages, MessageTemplate(m))
			}
		case "conditions":
			action.Conditions, err = stringList(field+".conditions", value)
		case "donation_conditions":
			action.DonationConditions, err = stringList(field+".donation_conditions", value)
		case "commands":
			action.Commands, err = stringList(field+".commands", value)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := validateAction(action); err != nil {
		return nil, err
	}
	return action, nil
}

func parsePlaceholder(id string, node *yaml.Node) (*CustomPlaceholder, error) {
	field := placeholdersKey + "." + id
	if err := validatePlaceholderID(field, id); err != nil {
		return nil, err
	}
	if node.Kind != yaml.MappingNode {
		return nil, notMapping(field)
	}

	cp := &CustomPlaceholder{ID: id}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		value := resolve(node.Content[i+1])

		if name == defaultValueKey {
			v, err := optionalScalar(field+"."+defaultValueKey, value)
			if err != nil {
				return nil, err
			}
			cp.DefaultValue = v
			continue
		}
		// anything that is not a section is not a state
		if value.Kind != yaml.MappingNode {
			continue
		}

		state, err := parseState(field+"."+name, name, value)
		if err != nil {
			return nil, err
		}
		cp.States = append(cp.States, state)
	}
	return cp, nil
}

func parseState(field, name string, node *yaml.Node) (StateBasedValue, error) {
	state := StateBasedValue{Name: name}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := resolve(node.Content[i+1])
		var err error

		switch key {
		case "value":
			state.Value, err = optionalScalar(field+".value", value)
		case "conditions":
			state.Conditions, err = stringList(field+".conditions", value)
		case "donation_conditions":
			state.DonationConditions, err = stringList(field+".donation_conditions", value)
		}
		if err != nil {
			return StateBasedValue{}, err
		}
	}
	return state, nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return resolve(doc.Content[0])
	}
	if doc.Kind == 0 {
		return nil
	}
	return doc
}

func lookupKey(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			value := resolve(mapping.Content[i+1])
			if isNull(value) {
				return nil
			}
			return value
		}
	}
	return nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func scalar(field string, n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || isNull(n) {
		return "", &RuleValidationError{Field: field, Message: "expected a string"}
	}
	return n.Value, nil
}

func optionalScalar(field string, n *yaml.Node) (*string, error) {
	if isNull(n) {
		return nil, nil
	}
	s, err := scalar(field, n)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeScalar(field string, n *yaml.Node, out interface{}) error {
	if n.Kind != yaml.ScalarNode {
		return &RuleValidationError{Field: field, Message: "expected a scalar"}
	}
	if err := n.Decode(out); err != nil {
		return &RuleValidationError{Field: field, Message: err.Error()}
	}
	return nil
}

// stringList returns nil for an absent or null key and a non-nil slice for a
// present list, even an empty one.
func stringList(field string, n *yaml.Node) ([]string, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, &RuleValidationError{Field: field, Message: "expected a list of strings"}
	}

	out := make([]string, 0, len(n.Content))
	for i, item := range n.Content {
		s, err := scalar(fmt.Sprintf("%s[%d]", field, i), resolve(item))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func notMapping(field string) error {
	return &RuleValidationError{Field: field, Message: "expected a mapping"}
}
