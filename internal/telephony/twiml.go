package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs used at the adapter boundary are modelled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlConnect struct {
	XMLName xml.Name          `xml:"Connect"`
	Relay   twimlConversation `xml:"ConversationRelay"`
}

type twimlConversation struct {
	URL string `xml:"url,attr"`
}

// RenderTwiML maps an InboundCallResult to TwiML.
func RenderTwiML(res InboundCallResult) (string, error) {
	var r twimlResponse

	switch res.Action {
	case InboundCallActionDecline:
		if res.Message != "" {
			r.Verbs = append(r.Verbs, twimlSay{Text: res.Message})
		}
		r.Verbs = append(r.Verbs, twimlHangup{})
	case InboundCallActionConnect:
		target := strings.TrimSpace(res.ConnectTo)
		if target == "" {
			return "", errors.New("telephony: connect_to required for connect action")
		}
		r.Verbs = append(r.Verbs, twimlConnect{Relay: twimlConversation{URL: target}})
	default:
		return "", errors.New("telephony: unknown inbound action")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// errorTwiML is served when routing or rendering fails. It is a constant so
// the error path cannot fail itself.
const errorTwiML = xml.Header + `<Response><Say>` + MessageError + `</Say><Hangup></Hangup></Response>`
