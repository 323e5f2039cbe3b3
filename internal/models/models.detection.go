// FilePath: internal/models/models.detection.go
package models

import "time"

// Detection is a normalized camera event. It is never mutated after it is
// stored.
type Detection struct {
	Description          string   `json:"description"`
	DescriptionSecondary string   `json:"description_kz"`
	Objects              []string `json:"objects"`
	Confidence           *float64 `json:"confidence,omitempty"`
	// Timestamp is device-supplied when present; device clocks may be skewed
	// relative to ReceivedAt.
	Timestamp  int64 `json:"timestamp"`
	ReceivedAt int64 `json:"receivedAt"`
}

// CurrentDetection is the read model served for the latest detection.
type CurrentDetection struct {
	Detecting            bool     `json:"detecting"`
	Count                int      `json:"count"`
	Description          string   `json:"description"`
	DescriptionSecondary string   `json:"description_kz,omitempty"`
	Objects              []string `json:"objects"`
	Confidence           *float64 `json:"confidence,omitempty"`
	Timestamp            string   `json:"timestamp"`
	SecondsAgo           *int64   `json:"secondsAgo,omitempty"`
}

// HistoryPage is a most-recent-first slice of the detection history.
type HistoryPage struct {
	Total      int         `json:"total"`
	Returned   int         `json:"returned"`
	Detections []Detection `json:"detections"`
}

// MillisOf converts t to epoch milliseconds.
func MillisOf(t time.Time) int64 {
	return t.UnixMilli()
}
