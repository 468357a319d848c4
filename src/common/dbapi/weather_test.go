package dbapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherClient_Current(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/current.json", r.URL.Path)
		assert.Equal(t, "weather-key", r.URL.Query().Get("key"))
		assert.Equal(t, "53.55,10.006", r.URL.Query().Get("q"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		_, _ = w.Write([]byte(`{"current": {"temp_c": 4.5, "humidity": 81, "wind_kph": 14.4, "vis_km": 10.0,
			"condition": {"text": "Light rain", "code": 1183}, "last_updated": "2025-01-15 09:00"}}`))
	}))
	defer server.Close()

	client, err := NewWeatherClient(testConfig(server.URL))
	require.NoError(t, err)

	current, err := client.Current(context.Background(), types.Coordinates{Latitude: 53.55, Longitude: 10.006})
	require.NoError(t, err)
	assert.Equal(t, 4.5, current.TempC)
	assert.Equal(t, 81, current.Humidity)
	assert.Equal(t, "Light rain", current.Condition.Text)
}

func TestWeatherClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewWeatherClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Current(context.Background(), types.Coordinates{})
	assert.ErrorIs(t, err, ErrFeedUnavailable)

	cfg := testConfig(server.URL)
	cfg.WeatherAPIKey = ""
	_, err = NewWeatherClient(cfg)
	assert.ErrorIs(t, err, ErrMissingWeatherKey)

}
