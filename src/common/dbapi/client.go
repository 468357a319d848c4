package dbapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jack-barr3tt/db-engine/src/common/config"
	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jack-barr3tt/db-engine/src/common/utils"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrFeedUnavailable = errors.New("feed unavailable")

var (
	fetchCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dbapi_fetch_count",
		Help: "Number of requests made to the DB APIs",
	}, []string{"feed", "outcome"})
	fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbapi_fetch_duration_seconds",
		Help:    "Time taken by requests to the DB APIs",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})
)

func init() {
	prometheus.MustRegister(fetchCount, fetchDuration)
}

// Client talks to the DB Timetables and StaDa APIs.
type Client struct {
	client         *http.Client
	timetableBase  string
	stationDataAPI string
	location       *time.Location
	now            func() time.Time
}

func NewClient(cfg *config.Config) *Client {
	location, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		utils.GetLogger().Warnw("falling back to UTC for plan requests", "error", err)
		location = time.UTC
	}

	return &Client{
		client: &http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: newTransport(cfg.ClientID, cfg.ClientSecret),
		},
		timetableBase:  strings.TrimRight(cfg.TimetableAPI, "/"),
		stationDataAPI: strings.TrimRight(cfg.StationDataAPI, "/"),
		location:       location,
		now:            time.Now,
	}
}

// Fetch returns the raw XML of the requested feed for a station. Planned
// timetables are requested for the current hour in German local time.
func (c *Client) Fetch(ctx context.Context, mode types.FeedMode, evaNumber int64) (string, error) {
	switch mode {
	case types.FeedPlanned:
		return c.FetchPlanned(ctx, evaNumber, c.now().In(c.location))
	case types.FeedChanges:
		return c.FetchChanges(ctx, evaNumber)
	default:
		return "", fmt.Errorf("unknown feed mode %q", mode)
	}
}

func (c *Client) FetchPlanned(ctx context.Context, evaNumber int64, at time.Time) (string, error) {
	url := fmt.Sprintf("%s/plan/%d/%s/%s", c.timetableBase, evaNumber, utils.FeedDate(at), utils.FeedHour(at))
	body, err := fetch(ctx, c.client, "plan", url, "application/xml")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) FetchChanges(ctx context.Context, evaNumber int64) (string, error) {
	url := fmt.Sprintf("%s/rchg/%d", c.timetableBase, evaNumber)
	body, err := fetch(ctx, c.client, "rchg", url, "application/xml")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchStations lists every station known to StaDa. Stations without an eva
// number cannot carry timetables and are left out.
func (c *Client) FetchStations(ctx context.Context) ([]types.Station, error) {
	body, err := fetch(ctx, c.client, "stations", c.stationDataAPI+"/stations", "application/json")
	if err != nil {
		return nil, err
	}

	var response types.StationDataResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: decode stations: %v", ErrFeedUnavailable, err)
	}

	stations := make([]types.Station, 0, len(response.Result))
	for _, s := range response.Result {
		eva, ok := mainEva(s.EvaNumbers)
		if !ok {
			continue
		}

		station := types.Station{
			Number:       s.Number,
			Name:         s.Name,
			City:         s.MailingAddress.City,
			Zipcode:      s.MailingAddress.Zipcode,
			FederalState: s.FederalState,
			EvaNumber:    eva.Number,
		}
		if point := eva.GeographicCoordinates; point != nil && len(point.Coordinates) == 2 {
			station.Longitude = utils.Ptr(point.Coordinates[0])
			station.Latitude = utils.Ptr(point.Coordinates[1])
		}
		stations = append(stations, station)
	}

	return stations, nil
}

func mainEva(evas []types.StationEva) (types.StationEva, bool) {
	for _, eva := range evas {
		if eva.IsMain {
			return eva, true
		}
	}
	if len(evas) > 0 {
		return evas[0], true
	}
	return types.StationEva{}, false
}

func fetch(ctx context.Context, client *http.Client, feed, url, accept string) ([]byte, error) {
	timer := prometheus.NewTimer(fetchDuration.WithLabelValues(feed))
	defer timer.ObserveDuration()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", accept)

	response, err := client.Do(request)
	if err != nil {
		return retError(feed, fmt.Errorf("%w: %v", ErrFeedUnavailable, err))
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return retError(feed, fmt.Errorf("%w: %s returned HTTP %d", ErrFeedUnavailable, feed, response.StatusCode))
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return retError(feed, fmt.Errorf("%w: read %s body: %v", ErrFeedUnavailable, feed, err))
	}

	fetchCount.With(prometheus.Labels{"feed": feed, "outcome": "ok"}).Inc()
	return body, nil
}

func retError(feed string, err error) ([]byte, error) {
	fetchCount.With(prometheus.Labels{"feed": feed, "outcome": "error"}).Inc()
	return nil, err
}

type apiTransport struct {
	ClientID string
	APIKey   string
	base     http.RoundTripper
}

func (t *apiTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	request = request.Clone(request.Context())
	request.Header.Set("DB-Client-ID", t.ClientID)
	request.Header.Set("DB-Api-Key", t.APIKey)

	return t.base.RoundTrip(request)
}

func newTransport(clientID, apiKey string) http.RoundTripper {
	return &apiTransport{
		ClientID: clientID,
		APIKey:   apiKey,
		base:     http.DefaultTransport,
	}
}
