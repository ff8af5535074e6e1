package discovery

import (
	"net/netip"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/nao1215/discvscan/internal/model"
)

// Record exposes the entries of a signed ENR by key.
// It implements model.Record.
type Record struct {
	node *enode.Node
}

// Attribute returns the content of the entry stored under key.
// RLP strings yield their bytes; for a list, the first string element is
// returned, which covers entries such as client = [name, version].
func (r *Record) Attribute(key string) ([]byte, bool) {
	if r == nil || r.node == nil {
		return nil, false
	}

	var raw rlp.RawValue
	if err := r.node.Load(enr.WithEntry(key, &raw)); err != nil {
		return nil, false
	}
	return decodeEntry(raw)
}

func decodeEntry(raw []byte) ([]byte, bool) {
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return nil, false
	}

	switch kind {
	case rlp.Byte, rlp.String:
		return content, true
	case rlp.List:
		if len(content) == 0 {
			return nil, false
		}
		k, first, _, err := rlp.Split(content)
		if err != nil || k == rlp.List {
			return nil, false
		}
		return first, true
	default:
		return nil, false
	}
}

// ToModel converts an enode to the crawler's node type.
func ToModel(n *enode.Node) model.Node {
	node := model.Node{
		ID:     model.NodeID(n.ID()),
		Record: &Record{node: n},
	}
	if addr, ok := netip.AddrFromSlice(n.IP()); ok && n.UDP() != 0 {
		node.Addr = netip.AddrPortFrom(addr.Unmap(), uint16(n.UDP())) //nolint:gosec // UDP ports fit in uint16
	}
	return node
}

// fromModel recovers the enode behind a crawler node.
func fromModel(n model.Node) (*enode.Node, error) {
	r, ok := n.Record.(*Record)
	if !ok || r == nil || r.node == nil {
		return nil, ErrUnknownNode
	}
	return r.node, nil
}

// encodedSize returns the size of the record on the wire.
func encodedSize(n *enode.Node) int {
	b, err := rlp.EncodeToBytes(n.Record())
	if err != nil {
		return 0
	}
	return len(b)
}
