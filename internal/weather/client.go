package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/model"
)

// Client fetches multi-day forecasts from an OpenWeather-style provider.
// Every call is bounded by the configured timeout; a non-2xx status or a
// malformed body is an error for that location only.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.WeatherConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	} `json:"list"`
}

func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]model.ForecastPeriod, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)
	endpoint := c.baseURL + "/forecast?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("forecast request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("forecast read: %w", err)
	}
	var decoded forecastResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("forecast decode: %w", err)
	}
	if len(decoded.List) == 0 {
		return nil, fmt.Errorf("forecast decode: empty period list")
	}

	out := make([]model.ForecastPeriod, 0, len(decoded.List))
	for _, p := range decoded.List {
		period := model.ForecastPeriod{
			Timestamp:       time.Unix(p.Dt, 0).UTC(),
			TemperatureC:    p.Main.Temp,
			HumidityPercent: p.Main.Humidity,
		}
		if len(p.Weather) > 0 {
			period.Condition = strings.ToLower(p.Weather[0].Main)
		}
		out = append(out, period)
	}
	return out, nil
}
