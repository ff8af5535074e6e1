package model

import "math/bits"

// ENR keys read by the crawler.
const (
	// KeyPublicKey is the compressed secp256k1 public key of the "v4" scheme.
	KeyPublicKey = "secp256k1"

	// KeyEth2 holds the SSZ-encoded ENRForkID; its first 4 bytes are the
	// current fork digest.
	KeyEth2 = "eth2"

	// KeyAttnets is the attestation subnet bitvector.
	KeyAttnets = "attnets"

	// KeyClient is the client identification entry.
	KeyClient = "client"
)

// ForkDigestLength is the size of a fork digest in bytes.
const ForkDigestLength = 4

// Attributes is the fixed set of self-declared values extracted from a record.
// Every field has a well-defined empty value so extraction never fails.
type Attributes struct {
	// PublicKey is the raw public key, empty when absent.
	PublicKey []byte

	// ForkDigest is the first 4 bytes of the eth2 entry, or 4 zero bytes.
	ForkDigest [ForkDigestLength]byte

	// Attnets is the subnet bitfield, empty when absent.
	Attnets []byte

	// AttnetsCount is the number of set bits across Attnets.
	AttnetsCount int

	// Client is the declared client name, empty when absent.
	Client string
}

// ExtractAttributes pulls the recorded attributes out of a node record.
// Missing or short entries fall back to their empty values.
func ExtractAttributes(r Record) Attributes {
	var attrs Attributes
	if r == nil {
		return attrs
	}

	if pk, ok := r.Attribute(KeyPublicKey); ok {
		attrs.PublicKey = pk
	}

	if eth2, ok := r.Attribute(KeyEth2); ok && len(eth2) >= ForkDigestLength {
		copy(attrs.ForkDigest[:], eth2[:ForkDigestLength])
	}

	if attnets, ok := r.Attribute(KeyAttnets); ok {
		attrs.Attnets = attnets
		attrs.AttnetsCount = PopCount(attnets)
	}

	if client, ok := r.Attribute(KeyClient); ok {
		attrs.Client = string(client)
	}

	return attrs
}

// PopCount returns the total number of set bits in b.
func PopCount(b []byte) int {
	n := 0
	for _, v := range b {
		n += bits.OnesCount8(v)
	}
	return n
}
