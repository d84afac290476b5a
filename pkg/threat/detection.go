package threat

import "time"

// TimestampLayout is ISO-8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Default coordinates reported when a sensor sends none.
const (
	DefaultLatitude  = -1.2921
	DefaultLongitude = 36.8219
)

// Detection is the immutable result of one successful pipeline run.
type Detection struct {
	ID             string             `json:"id" msgpack:"id"`
	PredictedClass string             `json:"predicted_class" msgpack:"predicted_class"`
	Confidence     float64            `json:"confidence" msgpack:"confidence"`
	Timestamp      string             `json:"timestamp" msgpack:"timestamp"`
	Latitude       float64            `json:"latitude" msgpack:"latitude"`
	Longitude      float64            `json:"longitude" msgpack:"longitude"`
	Status         Status             `json:"status" msgpack:"status"`
	Priority       Priority           `json:"priority" msgpack:"priority"`
	AllPredictions map[string]float64 `json:"all_predictions" msgpack:"all_predictions"`
}

// Time parses Timestamp.
func (d *Detection) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, d.Timestamp)
}
