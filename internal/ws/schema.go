package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Client→server event names.
const (
	eventJoin         = "join"
	eventSendMessage  = "sendMessage"
	eventSendLocation = "sendLocation"
	eventAck          = "ack"
)

// ErrInvalidPayload is returned when an event payload does not match its schema.
var ErrInvalidPayload = errors.New("invalid payload")

// payloadSchemas describe the shape of each inbound event. Value checks
// (empty names, coordinate ranges) belong to the chat layer; these only
// guarantee the payload decodes into the expected record.
var payloadSchemas = map[string]string{
	eventJoin: `{
		"type": "object",
		"properties": {
			"username": {"type": "string"},
			"room": {"type": "string"}
		},
		"required": ["username", "room"]
	}`,
	eventSendMessage: `{"type": "string"}`,
	eventSendLocation: `{
		"type": "object",
		"properties": {
			"latitude": {"type": "number"},
			"longitude": {"type": "number"}
		},
		"required": ["latitude", "longitude"]
	}`,
}

type payloadValidator struct {
	schemas map[string]*gojsonschema.Schema
}

var validator = mustPayloadValidator()

func mustPayloadValidator() *payloadValidator {
	v := &payloadValidator{schemas: make(map[string]*gojsonschema.Schema, len(payloadSchemas))}
	for event, src := range payloadSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic(fmt.Sprintf("ws: compile %s schema: %v", event, err))
		}
		v.schemas[event] = schema
	}
	return v
}

// known reports whether event is a client→server event.
func (v *payloadValidator) known(event string) bool {
	_, ok := v.schemas[event]
	return ok
}

// validate checks payload against the schema registered for event.
func (v *payloadValidator) validate(event string, payload json.RawMessage) error {
	schema, ok := v.schemas[event]
	if !ok {
		return fmt.Errorf("%w: unknown event %q", ErrInvalidPayload, event)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(details, "; "))
	}
	return nil
}
