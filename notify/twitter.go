package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dghubble/oauth1"
)

// DefaultTwitterEndpoint is the status update endpoint used when none is configured
const DefaultTwitterEndpoint = "https://api.twitter.com/1.1/statuses/update.json"

// Credentials are the OAuth1 application and user tokens
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// TwitterPublisher posts statuses with OAuth1 signed requests
type TwitterPublisher struct {
	client   *http.Client
	endpoint string
}

// NewTwitterPublisher creates a publisher for endpoint, or
// DefaultTwitterEndpoint when endpoint is empty.
func NewTwitterPublisher(creds Credentials, endpoint string) *TwitterPublisher {
	if endpoint == "" {
		endpoint = DefaultTwitterEndpoint
	}
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	return &TwitterPublisher{
		client:   config.Client(context.Background(), token),
		endpoint: endpoint,
	}
}

// Publish posts st as a form encoded status update
func (p *TwitterPublisher) Publish(ctx context.Context, st Status) error {
	form := url.Values{}
	form.Set("status", st.Text)
	if st.Coordinates != nil {
		form.Set("lat", strconv.FormatFloat(st.Coordinates.Latitude, 'f', -1, 64))
		form.Set("long", strconv.FormatFloat(st.Coordinates.Longitude, 'f', -1, 64))
		form.Set("display_coordinates", strconv.FormatBool(st.DisplayCoordinates))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, p.endpoint, strings.TrimSpace(string(body)))
	}
	return nil
}

// LogPublisher only logs statuses, for dry runs
type LogPublisher struct{}

// Publish logs st
func (LogPublisher) Publish(_ context.Context, st Status) error {
	attrs := []any{"text", st.Text}
	if st.Coordinates != nil {
		attrs = append(attrs, "lat", st.Coordinates.Latitude, "long", st.Coordinates.Longitude)
	}
	slog.Info("dry run status", attrs...)
	return nil
}
