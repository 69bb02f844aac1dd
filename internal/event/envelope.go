package event

import (
	jsoniter "github.com/json-iterator/go"
)

// UseNumber keeps amounts in their original textual precision
var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Envelope is a decoded feed frame: [name, {type, for, message: [...]}]
type Envelope struct {
	Name     string
	Type     string
	Platform string // value of "for", empty when absent
	Root     map[string]interface{}
}

// DecodeEnvelope decodes one raw feed event
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var frame []interface{}
	if err := jsonAPI.Unmarshal(raw, &frame); err != nil {
		return nil, malformed("envelope", err.Error())
	}
	if len(frame) < 2 {
		return nil, malformed("envelope", "expected at least two elements")
	}

	root, ok := frame[1].(map[string]interface{})
	if !ok {
		return nil, malformed("envelope[1]", "expected an object")
	}

	eventType, ok := root["type"].(string)
	if !ok {
		return nil, malformed("type", "missing or not a string")
	}

	env := &Envelope{
		Type: eventType,
		Root: root,
	}
	env.Name, _ = frame[0].(string)
	if platform, ok := root["for"].(string); ok {
		env.Platform = platform
	}

	return env, nil
}

// Messages returns the nested message array of the envelope
func (e *Envelope) Messages() ([]interface{}, error) {
	raw, ok := e.Root["message"]
	if !ok || raw == nil {
		return nil, malformed("message", "missing")
	}
	messages, ok := raw.([]interface{})
	if !ok {
		return nil, malformed("message", "expected an array")
	}
	if len(messages) == 0 {
		return nil, malformed("message", "empty array")
	}
	return messages, nil
}
