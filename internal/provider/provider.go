package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnavailable = errors.New("provider: circuit open")
	// ErrRejected means the provider refused the message (bad number,
	// blocked destination). Not retryable.
	ErrRejected = errors.New("provider: message rejected")
)

// Provider sends a single SMS and returns the provider's message id.
type Provider interface {
	Name() string
	Ready() bool
	Send(ctx context.Context, to, body string) (string, error)
}

// TwilioProvider talks to a Twilio-compatible messaging REST API:
// form-encoded POST to /Accounts/{sid}/Messages.json with basic auth.
// A small circuit breaker sheds load while the upstream is down.
type TwilioProvider struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	br         *breaker
}

func NewTwilioProvider(baseURL, accountSID, authToken, from string, timeoutMs, failThreshold, openForMs int) *TwilioProvider {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	if failThreshold <= 0 {
		failThreshold = 3
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &TwilioProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:         newBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *TwilioProvider) Name() string { return "twilio" }
func (p *TwilioProvider) Ready() bool  { return p.br.Ready() }
func (p *TwilioProvider) From() string { return p.from }

type sendResponse struct {
	SID          string `json:"sid"`
	ErrorCode    int    `json:"code"`
	ErrorMessage string `json:"message"`
}

func (p *TwilioProvider) Send(ctx context.Context, to, body string) (string, error) {
	if !p.br.TryAcquire() {
		return "", ErrUnavailable
	}

	sid, err := p.post(ctx, to, body)
	if err != nil {
		// A rejection is the provider answering, not the provider
		// being down; only transport/5xx failures trip the breaker.
		if errors.Is(err, ErrRejected) {
			p.br.OnSuccess()
		} else {
			p.br.OnFailure()
		}
		return "", err
	}

	p.br.OnSuccess()

	return sid, nil
}

func (p *TwilioProvider) post(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

	res, err := p.client.Do(req)
	if err != nil {
		return "", err
	}

	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var out sendResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case res.StatusCode/100 == 2:
		if out.SID == "" {
			return "", fmt.Errorf("provider=twilio status=%d: missing sid", res.StatusCode)
		}
		return out.SID, nil
	case res.StatusCode/100 == 4:
		return "", fmt.Errorf("%w: status=%d code=%d %s", ErrRejected, res.StatusCode, out.ErrorCode, out.ErrorMessage)
	default:
		return "", fmt.Errorf("provider=twilio status=%d", res.StatusCode)
	}
}
