package types

import "time"

type WeatherAPIResponse struct {
	Current WeatherAPICurrent `json:"current"`
}

type WeatherAPICurrent struct {
	TempC      float64          `json:"temp_c"`
	Humidity   int              `json:"humidity"`
	WindKph    float64          `json:"wind_kph"`
	VisKm      float64          `json:"vis_km"`
	Condition  WeatherCondition `json:"condition"`
	LastUpdate string           `json:"last_updated"`
}

type WeatherCondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

// WeatherObservation is a row of raw_weather.
type WeatherObservation struct {
	StationName string    `json:"station_name"`
	Hour        int       `json:"hour"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Wind        float64   `json:"wind"`
	Condition   string    `json:"condition"`
	Visibility  float64   `json:"visibility"`
	RecordTime  time.Time `json:"record_time"`
}
