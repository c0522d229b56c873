package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
)

// WebhookEvent is a gateway push reduced to what reconciliation needs.
type WebhookEvent struct {
	TransactionID string
	RawStatus     string
	Reported      model.ReportedStatus
	Value         int64
	Settlement    model.Settlement
}

// ParseWebhook decodes a callback body. JSON is tried first, then form encoding;
// anything else is ErrMalformedPayload. The content type is not trusted, gateways
// are inconsistent about it.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body: %w", domain.ErrMalformedPayload)
	}
	if !utf8.Valid(trimmed) {
		return nil, fmt.Errorf("body is not utf-8: %w", domain.ErrMalformedPayload)
	}

	fields, ok := decodeJSONFields(trimmed)
	if !ok {
		fields, ok = decodeFormFields(trimmed)
	}
	if !ok {
		return nil, fmt.Errorf("neither json nor form encoded: %w", domain.ErrMalformedPayload)
	}

	ev := &WebhookEvent{
		TransactionID: first(fields, "id", "transaction_id"),
		RawStatus:     first(fields, "status"),
		Settlement: model.Settlement{
			EndToEndID: first(fields, "end_to_end_id", "endToEndId"),
			PayerName:  first(fields, "payer_name"),
			PayerTaxID: first(fields, "payer_national_registration"),
		},
	}
	if ev.TransactionID == "" {
		return nil, fmt.Errorf("missing id: %w", domain.ErrMalformedPayload)
	}
	if ev.RawStatus == "" {
		return nil, fmt.Errorf("missing status: %w", domain.ErrMalformedPayload)
	}
	if v := first(fields, "value"); v != "" {
		n, err := parseAmount(v)
		if err != nil {
			return nil, fmt.Errorf("value: %v: %w", err, domain.ErrMalformedPayload)
		}
		ev.Value = n
	}
	ev.Reported = model.NormalizeReportedStatus(ev.RawStatus)
	return ev, nil
}

// decodeJSONFields flattens a JSON object into strings. A nested "data" or
// "transaction" object is used when the top level carries no id.
func decodeJSONFields(b []byte) (map[string]string, bool) {
	if b[0] != '{' {
		return nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, false
	}
	if _, hasID := raw["id"]; !hasID {
		for _, key := range []string{"data", "transaction"} {
			if inner, ok := raw[key]; ok {
				var nested map[string]json.RawMessage
				if err := json.Unmarshal(inner, &nested); err == nil {
					raw = nested
					break
				}
			}
		}
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = scalarString(v)
	}
	return out, true
}

func scalarString(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		return ""
	}
	if v[0] == '{' || v[0] == '[' {
		return ""
	}
	return string(v)
}

func decodeFormFields(b []byte) (map[string]string, bool) {
	s := string(b)
	if !strings.Contains(s, "=") || strings.ContainsAny(s, " \n\r\t{}<>") {
		return nil, false
	}
	values, err := url.ParseQuery(s)
	if err != nil || len(values) == 0 {
		return nil, false
	}
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out, true
}

func first(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(fields[k]); v != "" {
			return v
		}
	}
	return ""
}
