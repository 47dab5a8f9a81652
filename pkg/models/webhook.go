// Package models holds the WhatsApp Cloud API webhook payload types.
package models

import (
	"strconv"
	"strings"
	"time"
)

// WebhookPayload is the JSON body Meta posts to the webhook.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

type Value struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
		WaID string `json:"wa_id"`
	} `json:"contacts,omitempty"`
	Messages []WebhookMessage `json:"messages,omitempty"`
	Statuses []struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		RecipientID string `json:"recipient_id"`
	} `json:"statuses,omitempty"`
}

// WebhookMessage is one inbound user message.
type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *InteractiveMessage `json:"interactive,omitempty"`
	Button      *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button,omitempty"`
}

// InteractiveMessage is the answer to a button or list prompt.
type InteractiveMessage struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *ListReply   `json:"list_reply,omitempty"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Body returns the user-visible text of the message, or "" for types the bot
// cannot read (media, locations, reactions).
func (m WebhookMessage) Body() string {
	switch m.Type {
	case "text":
		if m.Text != nil {
			return strings.TrimSpace(m.Text.Body)
		}
	case "interactive":
		if m.Interactive == nil {
			return ""
		}
		if r := m.Interactive.ButtonReply; r != nil {
			return r.Title
		}
		if r := m.Interactive.ListReply; r != nil {
			return r.Title
		}
	case "button":
		if m.Button != nil {
			return m.Button.Text
		}
	}
	return ""
}

// Time parses the unix timestamp Meta sends as a string.
func (m WebhookMessage) Time() time.Time {
	secs, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// Messages flattens every message across entries and changes.
func (p WebhookPayload) Messages() []WebhookMessage {
	var out []WebhookMessage
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			out = append(out, c.Value.Messages...)
		}
	}
	return out
}
