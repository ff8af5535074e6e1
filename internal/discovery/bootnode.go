package discovery

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
)

// ParseBootnodes parses enr: and enode:// URLs. Blank entries and
// duplicates are skipped; any malformed entry fails the whole list.
func ParseBootnodes(urls []string) ([]*enode.Node, error) {
	nodes := make([]*enode.Node, 0, len(urls))
	seen := make(map[enode.ID]bool, len(urls))

	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}

		n, err := enode.Parse(enode.ValidSchemes, u)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidBootnode, u, err)
		}
		if seen[n.ID()] {
			continue
		}
		seen[n.ID()] = true
		nodes = append(nodes, n)
	}

	return nodes, nil
}

// LoadNodeKey reads a hex secp256k1 key from path. An empty path generates
// an ephemeral key.
func LoadNodeKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate node key: %w", err)
		}
		return key, nil
	}

	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load node key: %w", err)
	}
	return key, nil
}
