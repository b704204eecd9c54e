package ws

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPayloadValidator(t *testing.T) {
	cases := []struct {
		event   string
		payload string
		valid   bool
	}{
		{eventJoin, `{"username":"a","room":"b"}`, true},
		{eventJoin, `{"username":"","room":""}`, true},
		{eventJoin, `{"username":"a"}`, false},
		{eventJoin, `{"username":1,"room":"b"}`, false},
		{eventJoin, `"a"`, false},
		{eventSendMessage, `"hello"`, true},
		{eventSendMessage, `{"text":"hello"}`, false},
		{eventSendMessage, ``, false},
		{eventSendLocation, `{"latitude":1.5,"longitude":-2}`, true},
		{eventSendLocation, `{"latitude":"1.5","longitude":-2}`, false},
		{eventSendLocation, `{"latitude":1.5}`, false},
	}
	for _, tc := range cases {
		err := validator.validate(tc.event, json.RawMessage(tc.payload))
		if tc.valid && err != nil {
			t.Errorf("%s %s: expected valid, got %v", tc.event, tc.payload, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("%s %s: expected ErrInvalidPayload, got %v", tc.event, tc.payload, err)
		}
	}
}

func TestPayloadValidatorUnknownEvent(t *testing.T) {
	if validator.known("dance") {
		t.Error("expected dance to be unknown")
	}
	if err := validator.validate("dance", nil); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}
