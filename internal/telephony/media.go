package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxMediaBytes caps inbound media downloads.
const MaxMediaBytes = 16 << 20

// MediaFetcher downloads inbound message media, authenticating with the
// Twilio account credentials.
type MediaFetcher struct {
	Client     *http.Client
	AccountSID string
	AuthToken  string
}

// Fetch returns the media body at url.
func (m *MediaFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if m.AccountSID != "" {
		req.SetBasicAuth(m.AccountSID, m.AuthToken)
	}
	hc := m.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio: fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twilio: fetch media: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxMediaBytes {
		return nil, fmt.Errorf("twilio: media larger than %d bytes", MaxMediaBytes)
	}
	return body, nil
}
