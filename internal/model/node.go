package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strings"
	"time"
)

// NodeIDLength is the size of a discovery v5 node identity in bytes.
const NodeIDLength = 32

// ErrInvalidNodeID is returned when a node ID string cannot be decoded.
var ErrInvalidNodeID = errors.New("invalid node ID: expected 64 hex characters")

// NodeID identifies a peer in the discovery network.
// It is also the key the DHT distance metric is computed on.
type NodeID [NodeIDLength]byte

// ParseNodeID decodes a hex node ID. A leading "0x" is accepted.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID

	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != hex.EncodedLen(NodeIDLength) {
		return id, ErrInvalidNodeID
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidNodeID, err)
	}
	return id, nil
}

// String returns the full lowercase hex form of the ID.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// TerminalString returns a shortened ID for log output.
func (id NodeID) TerminalString() string {
	return hex.EncodeToString(id[:8])
}

// LogDistance returns the logarithmic XOR distance between two IDs,
// i.e. the bit length of a XOR b. Equal IDs are at distance 0.
func LogDistance(a, b NodeID) int {
	for i := range a {
		x := a[i] ^ b[i]
		if x == 0 {
			continue
		}
		lz := 0
		for mask := byte(0x80); mask != 0 && x&mask == 0; mask >>= 1 {
			lz++
		}
		return (NodeIDLength-i)*8 - lz
	}
	return 0
}

// Record gives access to the self-declared attributes of a node.
// Implementations look up a single ENR key and report whether it is present.
// Only the handful of keys the crawler reads are ever requested; no complete
// schema is assumed.
type Record interface {
	Attribute(key string) ([]byte, bool)
}

// AttributeMap is a map-backed Record.
type AttributeMap map[string][]byte

// Attribute implements Record.
func (m AttributeMap) Attribute(key string) ([]byte, bool) {
	v, ok := m[key]
	return v, ok
}

// Node is a peer as seen by the crawler: its identity, the UDP endpoint it
// declares (zero when absent) and its signed record.
type Node struct {
	// ID is the discovery identity of the node.
	ID NodeID

	// Addr is the UDP endpoint from the record. The zero value means the
	// record carries no usable address.
	Addr netip.AddrPort

	// Record exposes the node's declared attributes. May be nil.
	Record Record
}

// Attribute looks up a declared attribute, tolerating a nil record.
func (n Node) Attribute(key string) ([]byte, bool) {
	if n.Record == nil {
		return nil, false
	}
	return n.Record.Attribute(key)
}

// Endpoint returns "ip:port", or an empty string when no address is known.
func (n Node) Endpoint() string {
	if !n.Addr.IsValid() {
		return ""
	}
	return n.Addr.String()
}

// NodeStats holds the live transport statistics of a queried node.
// Bandwidth figures are in bytes per second.
type NodeStats struct {
	RTTMin time.Duration
	RTTAvg time.Duration
	BWMax  float64
	BWAvg  float64
}

// BWMaxMbps returns the maximum bandwidth in Mbps rounded to 3 decimals.
func (s NodeStats) BWMaxMbps() float64 {
	return toMbps(s.BWMax)
}

// BWAvgMbps returns the average bandwidth in Mbps rounded to 3 decimals.
func (s NodeStats) BWAvgMbps() float64 {
	return toMbps(s.BWAvg)
}

// toMbps converts bytes/sec to megabits/sec rounded to 3 decimals.
func toMbps(bytesPerSec float64) float64 {
	mbps := bytesPerSec * 8 / 1e6
	return math.Round(mbps*1000) / 1000
}
