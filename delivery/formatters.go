package delivery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-leads/core"
)

const placeholder = "-"

// Formatter maps an event to a wire payload. Formatters are pure: they do not
// mutate the event and return identical bytes for identical input.
type Formatter func(event core.DeliveryEvent) ([]byte, error)

var formatters = map[core.TargetKind]Formatter{
	core.TargetKindGeneric:      FormatGeneric,
	core.TargetKindChatVariantA: FormatChatVariantA,
	core.TargetKindChatVariantB: FormatChatVariantB,
}

func FormatterFor(kind core.TargetKind) (Formatter, bool) {
	formatter, ok := formatters[kind]
	return formatter, ok
}

func Format(kind core.TargetKind, event core.DeliveryEvent) ([]byte, error) {
	formatter, ok := FormatterFor(kind)
	if !ok {
		return nil, fmt.Errorf("delivery: no formatter for target kind %q", kind)
	}
	return formatter(event)
}

type genericLead struct {
	LeadID           string            `json:"lead_id"`
	Email            string            `json:"email"`
	Name             *string           `json:"name"`
	Company          *string           `json:"company"`
	Role             *string           `json:"role"`
	FreeText         *string           `json:"free_text"`
	ConsentPrivacy   bool              `json:"consent_privacy"`
	ConsentMarketing bool              `json:"consent_marketing"`
	SourceUTM        map[string]string `json:"source_utm"`
	FormLocation     string            `json:"form_location,omitempty"`
	CreatedAt        string            `json:"created_at"`
}

type genericEnvelope struct {
	Event     string      `json:"event"`
	Lead      genericLead `json:"lead"`
	ProjectID string      `json:"project_id"`
}

func FormatGeneric(event core.DeliveryEvent) ([]byte, error) {
	record := event.Submission
	return json.Marshal(genericEnvelope{
		Event: eventName(event),
		Lead: genericLead{
			LeadID:           record.ID,
			Email:            record.PrimaryContact,
			Name:             record.Attributes.Name,
			Company:          record.Attributes.Company,
			Role:             record.Attributes.Role,
			FreeText:         record.Attributes.FreeText,
			ConsentPrivacy:   record.Consents.Privacy,
			ConsentMarketing: record.Consents.Marketing,
			SourceUTM:        record.Attribution,
			FormLocation:     string(record.Origin.Surface),
			CreatedAt:        formatTime(record.CreatedAt),
		},
		ProjectID: record.ScopeID,
	})
}

type chatVariantAMessage struct {
	Text string `json:"text"`
}

// FormatChatVariantA renders a Slack-style incoming webhook message.
func FormatChatVariantA(event core.DeliveryEvent) ([]byte, error) {
	record := event.Submission
	var b strings.Builder
	b.WriteString(headline(event))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "*Email*: %s\n", orPlaceholder(record.PrimaryContact))
	fmt.Fprintf(&b, "*Name*: %s\n", orPlaceholder(core.StringValue(record.Attributes.Name)))
	fmt.Fprintf(&b, "*Company*: %s\n", orPlaceholder(core.StringValue(record.Attributes.Company)))
	fmt.Fprintf(&b, "*Role*: %s", orPlaceholder(core.StringValue(record.Attributes.Role)))
	return json.Marshal(chatVariantAMessage{Text: b.String()})
}

type chatVariantBField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type chatVariantBEmbed struct {
	Title     string              `json:"title"`
	Color     int                 `json:"color"`
	Fields    []chatVariantBField `json:"fields"`
	Timestamp string              `json:"timestamp"`
}

type chatVariantBMessage struct {
	Content string              `json:"content"`
	Embeds  []chatVariantBEmbed `json:"embeds"`
}

const chatVariantBColor = 0x5865F2

// FormatChatVariantB renders a Discord-style webhook message with one embed.
// Embed field values must be non-empty, hence the placeholder.
func FormatChatVariantB(event core.DeliveryEvent) ([]byte, error) {
	record := event.Submission
	title := "New lead"
	if name := strings.TrimSpace(event.ScopeName); name != "" {
		title = "New lead for " + name
	}
	return json.Marshal(chatVariantBMessage{
		Content: headline(event),
		Embeds: []chatVariantBEmbed{{
			Title: title,
			Color: chatVariantBColor,
			Fields: []chatVariantBField{
				{Name: "Email", Value: orPlaceholder(record.PrimaryContact), Inline: false},
				{Name: "Name", Value: orPlaceholder(core.StringValue(record.Attributes.Name)), Inline: true},
				{Name: "Company", Value: orPlaceholder(core.StringValue(record.Attributes.Company)), Inline: true},
				{Name: "Role", Value: orPlaceholder(core.StringValue(record.Attributes.Role)), Inline: true},
			},
			Timestamp: formatTime(record.CreatedAt),
		}},
	})
}

func headline(event core.DeliveryEvent) string {
	if eventName(event) == core.EventTest {
		return "🔔 Test notification: your webhook is connected"
	}
	return "🎉 New lead captured!"
}

func eventName(event core.DeliveryEvent) string {
	if name := strings.TrimSpace(event.Name); name != "" {
		return name
	}
	return core.EventLeadCreated
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
