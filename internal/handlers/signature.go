package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance rejects replayed webhook deliveries older than this.
const signatureTolerance = 5 * time.Minute

// verifyTelephonySignature checks the telephony provider's HMAC-SHA256
// over the request URL concatenated with the raw body.
func verifyTelephonySignature(url string, body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(url))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// verifyPaymentSignature checks a "t=timestamp,v1=signature" header where
// each v1 is HMAC-SHA256 over "timestamp.body". Any one valid v1 passes.
func verifyPaymentSignature(body []byte, header, secret string, now time.Time) bool {
	if header == "" || secret == "" {
		return false
	}
	var timestamp string
	var signatures []string
	for _, element := range strings.Split(header, ",") {
		parts := strings.SplitN(element, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			timestamp = parts[1]
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}
	timestampInt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if now.Unix()-timestampInt > int64(signatureTolerance.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, signature := range signatures {
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return true
		}
	}
	return false
}
