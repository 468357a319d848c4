package dbapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jack-barr3tt/db-engine/src/common/config"
	"github.com/jack-barr3tt/db-engine/src/common/types"
)

var ErrMissingWeatherKey = errors.New("WEATHER_API_KEY is not set")

// WeatherClient reads current conditions from weatherapi.com.
type WeatherClient struct {
	client *http.Client
	base   string
	key    string
}

func NewWeatherClient(cfg *config.Config) (*WeatherClient, error) {
	if cfg.WeatherAPIKey == "" {
		return nil, ErrMissingWeatherKey
	}

	return &WeatherClient{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		base:   strings.TrimRight(cfg.WeatherAPI, "/"),
		key:    cfg.WeatherAPIKey,
	}, nil
}

func (w *WeatherClient) Current(ctx context.Context, coords types.Coordinates) (types.WeatherAPICurrent, error) {
	query := url.Values{}
	query.Set("key", w.key)
	query.Set("q", fmt.Sprintf("%g,%g", coords.Latitude, coords.Longitude))
	query.Set("lang", "en")

	body, err := fetch(ctx, w.client, "weather", w.base+"/current.json?"+query.Encode(), "application/json")
	if err != nil {
		return types.WeatherAPICurrent{}, err
	}

	var response types.WeatherAPIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return types.WeatherAPICurrent{}, fmt.Errorf("%w: decode weather: %v", ErrFeedUnavailable, err)
	}

	return response.Current, nil
}
