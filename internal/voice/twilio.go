// internal/voice/twilio.go
package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured marks a missing or incomplete Twilio configuration, as
// opposed to the provider rejecting a particular call.
var ErrNotConfigured = errors.New("twilio credentials are not configured")

type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	TwiMLURL   string
}

// Client places outbound calls through the Twilio REST API. The answered
// call fetches TwiML from TwiMLURL, which bridges it to the realtime voice
// agent.
type Client struct {
	api        *twilio.RestClient
	fromNumber string
	twimlURL   string
}

func NewClient(cfg Config) *Client {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		// Construction never fails; Dial reports the configuration error so
		// the workflow can refund the reserved credit.
		return &Client{fromNumber: cfg.FromNumber, twimlURL: cfg.TwiMLURL}
	}
	return &Client{
		api: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		fromNumber: cfg.FromNumber,
		twimlURL:   cfg.TwiMLURL,
	}
}

// Dial creates the outbound call and returns the provider call SID.
func (c *Client) Dial(ctx context.Context, destination string) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}

	params := &twilioapi.CreateCallParams{}
	params.SetTo(destination)
	params.SetFrom(c.fromNumber)
	params.SetUrl(c.twimlURL)

	call, err := c.api.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("failed to create call to %s: %w", destination, err)
	}
	if call.Sid == nil || *call.Sid == "" {
		return "", fmt.Errorf("provider returned no call sid for %s", destination)
	}
	return *call.Sid, nil
}
