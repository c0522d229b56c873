package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wire format of the PIX provider. Amounts are integer cents; some deployments send
// them as strings, which flexAmount tolerates.

type splitRuleJSON struct {
	Value     int64  `json:"value"`
	AccountID string `json:"account_id"`
}

type createRequestJSON struct {
	Value      int64           `json:"value"`
	WebhookURL string          `json:"webhook_url,omitempty"`
	SplitRules []splitRuleJSON `json:"split_rules,omitempty"`
}

type createResponseJSON struct {
	ID           string     `json:"id"`
	QRCode       string     `json:"qr_code"`
	QRCodeBase64 string     `json:"qr_code_base64"`
	Status       string     `json:"status"`
	Value        flexAmount `json:"value"`
}

type transactionJSON struct {
	ID                        string     `json:"id"`
	Status                    string     `json:"status"`
	Value                     flexAmount `json:"value"`
	EndToEndID                string     `json:"end_to_end_id"`
	PayerName                 string     `json:"payer_name"`
	PayerNationalRegistration string     `json:"payer_national_registration"`
}

type errorResponseJSON struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// flexAmount accepts 1490, 1490.0 and "1490".
type flexAmount int64

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := parseAmount(s)
		if err != nil {
			return err
		}
		*a = flexAmount(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("amount %s: %w", string(b), err)
	}
	*a = flexAmount(math.Round(f))
	return nil
}

func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	return int64(math.Round(f)), nil
}

// gatewayReason extracts a human readable reason from an error body, falling back to
// the raw text.
func gatewayReason(body []byte) string {
	var e errorResponseJSON
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		case len(e.Errors) > 0 && string(e.Errors) != "null":
			return string(e.Errors)
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
