package model

import (
	"encoding/hex"
	"time"
)

// MeasurementRow is one persisted measurement.
// A row is created only for a query that completed successfully.
type MeasurementRow struct {
	// Cycle is the crawl cycle the query was dispatched in.
	Cycle int

	// NodeID is the measured node.
	NodeID NodeID

	// Endpoint is "ip:port", empty when the record has no address.
	Endpoint string

	// Stats are the node's transport statistics after the query.
	Stats NodeStats

	// Attributes are the node's declared attributes.
	Attributes Attributes

	// QueryDuration is how long the discovery query took.
	QueryDuration time.Duration

	// MeasuredAt is when the query completed.
	MeasuredAt time.Time
}

// NewMeasurementRow builds the row for a completed query of node.
func NewMeasurementRow(cycle int, node Node, stats NodeStats, elapsed time.Duration, at time.Time) MeasurementRow {
	return MeasurementRow{
		Cycle:         cycle,
		NodeID:        node.ID,
		Endpoint:      node.Endpoint(),
		Stats:         stats,
		Attributes:    ExtractAttributes(node.Record),
		QueryDuration: elapsed,
		MeasuredAt:    at,
	}
}

// PublicKeyHex returns the public key as hex.
func (r MeasurementRow) PublicKeyHex() string {
	return hex.EncodeToString(r.Attributes.PublicKey)
}

// ForkDigestHex returns the 4-byte fork digest as hex.
func (r MeasurementRow) ForkDigestHex() string {
	return hex.EncodeToString(r.Attributes.ForkDigest[:])
}

// AttnetsHex returns the attestation subnet bitfield as hex.
func (r MeasurementRow) AttnetsHex() string {
	return hex.EncodeToString(r.Attributes.Attnets)
}

// RTTMinMillis returns the minimum round-trip time in milliseconds.
func (r MeasurementRow) RTTMinMillis() float64 {
	return durationMillis(r.Stats.RTTMin)
}

// RTTAvgMillis returns the average round-trip time in milliseconds.
func (r MeasurementRow) RTTAvgMillis() float64 {
	return durationMillis(r.Stats.RTTAvg)
}

// QueryMillis returns the query duration in milliseconds.
func (r MeasurementRow) QueryMillis() float64 {
	return durationMillis(r.QueryDuration)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
