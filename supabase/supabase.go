package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	supa "github.com/nedpals/supabase-go"
)

const (
	supabaseUploadTimeout = time.Second * 10
	pointsTable           = "solar_points"
)

// Point holds the json encoding schema for a telemetry value in supabase.
type Point struct {
	ID          uuid.UUID `json:"id"`
	Time        time.Time `json:"time"`
	Measurement string    `json:"measurement"`
	Device      string    `json:"device"`
	Field       string    `json:"field"`
	Value       float64   `json:"value"`
}

// Client provides an interface onto the Supabase platform.
// It hides the underlying open source supabase library and adds reconnection and timeout logic.
type Client struct {
	url     string
	anonKey string
	userKey string
	schema  string

	subClient       *supa.Client // the raw client of the underlying supabase library we are using
	shouldReconnect bool         // when true, the subClient is 'dirty' and will be re-created before the next upload
	logger          *slog.Logger
}

func New(url, anonKey, userKey, schema string) (*Client, error) {
	if url == "" {
		return nil, errors.New("no supabase url")
	}
	if anonKey == "" {
		return nil, errors.New("no supabase key")
	}

	client := &Client{
		url:             url,
		anonKey:         anonKey,
		userKey:         userKey,
		schema:          schema,
		shouldReconnect: true, // so that the client is created lazily on the first upload
		logger:          slog.Default().With("host", url),
	}

	return client, nil
}

// UploadPoints inserts the points into the supabase points table.
func (c *Client) UploadPoints(ctx context.Context, points []Point) error {

	c.reconnectIfNeccesary()
	subClient := c.subClient

	// The supabase client library doesn't support contexts, so here we wrap the call in a timeout
	errCh := make(chan error, 1)
	go func() {
		errCh <- subClient.DB.From(pointsTable).Insert(points).Execute(nil)
	}()

	timeout := time.NewTimer(supabaseUploadTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		c.setShouldReconnect()
		return ctx.Err()
	case <-timeout.C:
		c.setShouldReconnect()
		return errors.New("timed out")
	case err := <-errCh:
		if err != nil {
			c.setShouldReconnect()
			return fmt.Errorf("insert into %s: %w", pointsTable, err)
		}
		return nil
	}
}

// createSubClient creates the open-source supabase library client.
func (c *Client) createSubClient() {

	subClient := supa.CreateClient(c.url, c.anonKey)

	// The supabase client library doesn't have a fully featured interface, here we specify options directly by
	// adding headers to the postgrest requests.
	if c.schema != "" {
		subClient.DB.AddHeader("Accept-Profile", c.schema)
		subClient.DB.AddHeader("Content-Profile", c.schema)
	}

	// Use a user JWT:
	if c.userKey != "" {
		subClient.DB.AddHeader("Authorization", fmt.Sprintf("Bearer %s", c.userKey))
	}

	c.subClient = subClient
}

// setShouldReconnect is called when there has been an error that should trigger the client to be re-created.
func (c *Client) setShouldReconnect() {
	c.shouldReconnect = true
}

// reconnectIfNeccesary re-creates the client if there have been problems with the previous one.
func (c *Client) reconnectIfNeccesary() {
	if !c.shouldReconnect {
		return
	}

	c.createSubClient()
	c.shouldReconnect = false

	c.logger.Info("Created supabase client")
}
