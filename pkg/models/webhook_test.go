package models

import (
	"encoding/json"
	"testing"
	"time"
)

const payload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [
          {"from": "15550001111", "id": "wamid.A", "timestamp": "1772355600", "type": "text", "text": {"body": " Hi there "}},
          {"from": "15550001111", "id": "wamid.B", "timestamp": "1772355601", "type": "interactive",
           "interactive": {"type": "button_reply", "button_reply": {"id": "yes", "title": "Yes please"}}},
          {"from": "15550001111", "id": "wamid.C", "timestamp": "1772355602", "type": "image", "image": {"id": "m1"}}
        ]
      }
    }]
  }]
}`

func TestPayloadMessages(t *testing.T) {
	var p WebhookPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	msgs := p.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}

	tests := []struct {
		id   string
		body string
	}{
		{"wamid.A", "Hi there"},
		{"wamid.B", "Yes please"},
		{"wamid.C", ""},
	}
	for i, tt := range tests {
		if msgs[i].ID != tt.id || msgs[i].Body() != tt.body {
			t.Errorf("message %d = %s %q, want %s %q", i, msgs[i].ID, msgs[i].Body(), tt.id, tt.body)
		}
	}
	if want := time.Unix(1772355600, 0).UTC(); !msgs[0].Time().Equal(want) {
		t.Errorf("time=%v want %v", msgs[0].Time(), want)
	}
}
