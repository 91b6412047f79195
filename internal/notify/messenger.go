package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Messenger delivers an outbound SMS. Send failures must never block
// billing; callers record the failure and proceed.
type Messenger interface {
	Send(ctx context.Context, from, to, body string) (string, error)
}

var ErrSendFailed = errors.New("message delivery failed")

// SMSGateway posts messages to a telephony provider's REST API.
type SMSGateway struct {
	baseURL   string
	accountID string
	authToken string
	client    *http.Client
	logger    *logrus.Logger
}

func NewSMSGateway(baseURL, accountID, authToken string, logger *logrus.Logger) *SMSGateway {
	return &SMSGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		authToken: authToken,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

func (g *SMSGateway) Send(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", g.baseURL, g.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.accountID, g.authToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"to":     to,
		}).Warn("SMS gateway rejected message")
		return "", fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return parsed.SID, nil
}
