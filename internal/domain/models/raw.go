package models

// RawCandle is a provider payload row before normalization. Numeric fields
// stay as wire strings so parsing failures are explicit rather than silent
// zeros; the timestamp unit (seconds or milliseconds) is reconciled by the
// normalizer.
type RawCandle struct {
	Ts     int64
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}
