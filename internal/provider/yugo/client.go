package yugo

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"student-rooms/internal/logger"
	"student-rooms/internal/provider"
	"student-rooms/internal/retry"
)

// Client talks to the Yugo JSON API.
type Client struct {
	http  *resty.Client
	retry retry.Config
}

func newClient(cfg Config, log logger.Logger) (*Client, error) {
	httpClient, err := provider.NewHTTPClient(provider.ClientOptions{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Concurrency,
		Cookies:           true,
		Headers:           map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}

	rc := retry.Config{
		MaxAttempts:  cfg.Retries,
		InitialDelay: cfg.RetryBackoff,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		IsRetryable:  provider.IsRetryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Warn("Yugo request failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err))
		},
	}
	return &Client{http: httpClient, retry: rc}, nil
}

// do runs one request with retries and returns the raw body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, params, form map[string]string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req := c.http.R().SetContext(ctx).SetQueryParams(params)
		if form != nil {
			req.SetFormData(form)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return provider.Unavailable("%s %s: %v", method, path, err)
		}
		if err := provider.StatusError(resp.StatusCode(), method+" "+path); err != nil {
			return err
		}
		body = resp.Body()
		return nil
	})
	return body, err
}

// getList fetches path and decodes the array under key into out.
func (c *Client) getList(ctx context.Context, path string, params map[string]string, key string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return provider.ShapeChanged("%s: decode: %v", path, err)
	}
	raw, ok := envelope[key]
	if !ok {
		return provider.ShapeChanged("%s: missing %q", path, key)
	}
	if string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return provider.ShapeChanged("%s: decode %q: %v", path, key, err)
	}
	return nil
}

func (c *Client) getObject(ctx context.Context, method, path string, params, form map[string]string, out any) error {
	body, err := c.do(ctx, method, path, params, form)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return provider.ShapeChanged("%s: decode: %v", path, err)
	}
	return nil
}

// Countries lists the countries Yugo operates in.
func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	var out []Country
	if err := c.getList(ctx, "countries", nil, "countries", &out); err != nil {
		return out, err
	}
	return out, nil
}

// Cities lists the cities of a country.
func (c *Client) Cities(ctx context.Context, countryID string) ([]City, error) {
	var out []City
	if err := c.getList(ctx, "cities", map[string]string{"countryId": countryID}, "cities", &out); err != nil {
		return out, err
	}
	return out, nil
}

// Residences lists the residences of a city.
func (c *Client) Residences(ctx context.Context, cityID string) ([]Residence, error) {
	var out []Residence
	if err := c.getList(ctx, "residences", map[string]string{"cityId": cityID}, "residences", &out); err != nil {
		return out, err
	}
	return out, nil
}

// Rooms lists the room types of a residence.
func (c *Client) Rooms(ctx context.Context, residenceID string) ([]Room, error) {
	var out []Room
	if err := c.getList(ctx, "rooms", map[string]string{"residenceId": residenceID}, "rooms", &out); err != nil {
		return out, err
	}
	return out, nil
}

// TenancyOptions lists the tenancy groups of a room.
func (c *Client) TenancyOptions(ctx context.Context, residenceID, residenceContentID, roomID string) ([]TenancyGroup, error) {
	var out []TenancyGroup
	params := map[string]string{
		"residenceId":        residenceID,
		"residenceContentId": residenceContentID,
		"roomId":             roomID,
	}
	if err := c.getList(ctx, "tenancyOptionsBySSId", params, "tenancy-options", &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) warmBookingFlow(ctx context.Context, residenceContentID string) error {
	_, err := c.do(ctx, http.MethodGet, "booking-flow-page", map[string]string{"residenceContentId": residenceContentID}, nil)
	return err
}

func (c *Client) residenceProperty(ctx context.Context, residenceID string) (residenceProperty, error) {
	var out residenceProperty
	if err := c.getObject(ctx, http.MethodGet, "residence-property", map[string]string{"residenceId": residenceID}, nil, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) availableBeds(ctx context.Context, params map[string]string) (map[string]any, error) {
	var out map[string]any
	if err := c.getObject(ctx, http.MethodGet, "available-beds", params, nil, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) flatsWithBeds(ctx context.Context, params map[string]string) (flatsWithBeds, error) {
	var out flatsWithBeds
	if err := c.getObject(ctx, http.MethodGet, "flats-with-beds", params, nil, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) skipRoomSelection(ctx context.Context, params map[string]string) (redirectLink, error) {
	var out redirectLink
	if err := c.getObject(ctx, http.MethodGet, "skip-room-selection", params, nil, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) studentPortalRedirect(ctx context.Context, form map[string]string) (redirectLink, error) {
	var out redirectLink
	if err := c.getObject(ctx, http.MethodPost, "student-portal-redirect", nil, form, &out); err != nil {
		return out, err
	}
	return out, nil
}
