package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient wraps the official client with the org and bucket of one
// end-to-end run.
type InfluxClient struct {
	org    string
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient creates a client for an already reachable server.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{org: org, bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Setup runs the initial onboarding so the org, bucket and token exist.
func (c *InfluxClient) Setup(ctx context.Context, user, password, token string) error {
	_, err := c.client.SetupWithToken(ctx, user, password, c.org, c.bucket, 0, token)
	if err != nil {
		return fmt.Errorf("influx onboarding: %w", err)
	}
	return nil
}

// CountPoints returns how many rows of measurement carry tag=value within
// the last window.
func (c *InfluxClient) CountPoints(ctx context.Context, measurement, tag, value, window string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-%s) |> filter(fn:(r) => r._measurement == %q and r.%s == %q)`,
		c.bucket, window, measurement, tag, value)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
