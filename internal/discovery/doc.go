// Package discovery adapts go-ethereum's discovery v5 implementation to the
// crawler.
//
// Listener owns the UDP socket and the discv5 protocol instance. It exposes
// the four operations the crawler needs: the local identity, a FINDNODE
// query against a node, the live transport statistics of a node, and a sample
// of locally known nodes to seed the crawl.
//
// The wire protocol itself (handshakes, session keys, packet timeouts) is
// entirely go-ethereum's. This package only converts between enode and the
// crawler's model types and measures the exchanges it issues.
package discovery
