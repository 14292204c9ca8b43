package telephony

import (
	"net/http"
	"strings"
	"time"
)

// TwilioInboundForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/usage/webhooks/voice-webhooks
type TwilioInboundForm struct {
	AgentID string

	CallSid     string
	AccountSid  string
	From        string
	To          string
	Direction   string
	CallStatus  string
	CallerName  string
	FromCity    string
	FromState   string
	FromCountry string
}

// ParseTwilioInboundCall reads the voice webhook form. The agent is addressed
// by the agentId query parameter configured on the phone number.
func ParseTwilioInboundCall(r *http.Request) (TwilioInboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioInboundForm{}, err
	}
	f := TwilioInboundForm{
		AgentID:     strings.TrimSpace(r.URL.Query().Get("agentId")),
		CallSid:     r.PostFormValue("CallSid"),
		AccountSid:  r.PostFormValue("AccountSid"),
		From:        normalizePhone(r.PostFormValue("From")),
		To:          normalizePhone(r.PostFormValue("To")),
		Direction:   r.PostFormValue("Direction"),
		CallStatus:  r.PostFormValue("CallStatus"),
		CallerName:  r.PostFormValue("CallerName"),
		FromCity:    r.PostFormValue("FromCity"),
		FromState:   r.PostFormValue("FromState"),
		FromCountry: r.PostFormValue("FromCountry"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}

// Location joins the caller geo fields Twilio resolved, skipping blanks.
func (f TwilioInboundForm) Location() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{f.FromCity, f.FromState, f.FromCountry} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (f TwilioInboundForm) ToInboundCallRequest(occurredAt time.Time) InboundCallRequest {
	return InboundCallRequest{
		AgentID:        f.AgentID,
		ProviderCallID: f.CallSid,
		From:           f.From,
		To:             f.To,
		CallerLocation: f.Location(),
		OccurredAt:     occurredAt,
	}
}
