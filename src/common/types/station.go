package types

// StationDataResponse is the StaDa /stations payload.
type StationDataResponse struct {
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
	Total  int           `json:"total"`
	Result []StationData `json:"result"`
}

type StationData struct {
	Number         int            `json:"number"`
	Name           string         `json:"name"`
	FederalState   string         `json:"federalState"`
	MailingAddress MailingAddress `json:"mailingAddress"`
	EvaNumbers     []StationEva   `json:"evaNumbers"`
}

type MailingAddress struct {
	City    string `json:"city"`
	Zipcode string `json:"zipcode"`
	Street  string `json:"street"`
}

type StationEva struct {
	Number                int64         `json:"number"`
	IsMain                bool          `json:"isMain"`
	GeographicCoordinates *GeoJSONPoint `json:"geographicCoordinates"`
}

// GeoJSONPoint coordinates are [lon, lat].
type GeoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Station is a row of raw_stations.
type Station struct {
	Number       int      `json:"number"`
	Name         string   `json:"name"`
	City         string   `json:"city"`
	Zipcode      string   `json:"zipcode"`
	FederalState string   `json:"federal_state"`
	EvaNumber    int64    `json:"eva_number"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
