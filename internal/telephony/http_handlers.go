package telephony

import (
	"fmt"
	"net/http"
	"time"

	"voice-agent-platform/internal/metrics"
	"voice-agent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const twimlContentType = "text/xml"

// TwilioVoiceHandler converts the Twilio voice webhook to internal types,
// delegates routing, and writes TwiML.
//
// It never answers with a non-200 status: every failure, panics included,
// degrades to a spoken apology and a hang-up.
type TwilioVoiceHandler struct {
	Router Router

	// AuthToken enables X-Twilio-Signature validation when set.
	AuthToken     string
	PublicBaseURL string

	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (h TwilioVoiceHandler) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("twilio voice handler panic", "panic", fmt.Sprint(rec))
			h.Metrics.Webhook(metrics.ProviderTwilio, "error")
			writeTwiML(c, errorTwiML)
		}
	}()

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Router == nil {
		log.Error("twilio voice handler has no router")
		h.Metrics.Webhook(metrics.ProviderTwilio, "error")
		writeTwiML(c, errorTwiML)
		return
	}

	form, err := ParseTwilioInboundCall(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		h.Metrics.Webhook(metrics.ProviderTwilio, "error")
		writeTwiML(c, errorTwiML)
		return
	}

	if h.AuthToken != "" {
		fullURL := RequestURL(c.Request, h.PublicBaseURL)
		if !ValidTwilioSignature(h.AuthToken, fullURL, c.Request.PostForm, c.GetHeader(TwilioSignatureHeader)) {
			log.Warn("twilio signature rejected", "url", fullURL, "call_sid", form.CallSid)
			h.Metrics.Webhook(metrics.ProviderTwilio, "rejected_signature")
			h.render(c, Decline(MessageNotConfigured))
			return
		}
	}

	res, err := h.Router.RouteInboundCall(c.Request.Context(), form.ToInboundCallRequest(h.Now()))
	if err != nil {
		log.Error("inbound call routing failed", "agent_id", form.AgentID, "call_sid", form.CallSid, "err", err)
		h.Metrics.Webhook(metrics.ProviderTwilio, "error")
		writeTwiML(c, errorTwiML)
		return
	}

	outcome := "bridged"
	if res.Action == InboundCallActionDecline {
		outcome = "declined"
	}
	h.Metrics.Webhook(metrics.ProviderTwilio, outcome)
	h.render(c, res)
}

func (h TwilioVoiceHandler) render(c *gin.Context, res InboundCallResult) {
	twiml, err := RenderTwiML(res)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		writeTwiML(c, errorTwiML)
		return
	}
	writeTwiML(c, twiml)
}

func writeTwiML(c *gin.Context, body string) {
	c.Data(http.StatusOK, twimlContentType, []byte(body))
}
