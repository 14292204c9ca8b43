package elevenlabs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v0=<hex hmac-sha256>".
const SignatureHeader = "ElevenLabs-Signature"

// SignatureTolerance bounds how old a signed delivery may be.
const SignatureTolerance = 30 * time.Minute

var (
	ErrMissingSignature = errors.New("elevenlabs: missing signature")
	ErrInvalidSignature = errors.New("elevenlabs: invalid signature")
	ErrStaleSignature   = errors.New("elevenlabs: signature timestamp outside tolerance")
)

// Sign returns the header value for body signed at ts.
func Sign(secret string, ts time.Time, body []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v0=" + digest(secret, t, body)
}

// VerifySignature checks header against body with the shared secret.
func VerifySignature(secret, header string, body []byte, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}

	var t, v0 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			t = v
		case "v0":
			v0 = v
		}
	}
	if t == "" || v0 == "" {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return ErrStaleSignature
	}

	expected := digest(secret, t, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v0))) {
		return ErrInvalidSignature
	}
	return nil
}

func digest(secret, t string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
