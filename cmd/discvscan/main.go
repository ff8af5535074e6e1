// Package main provides the entry point for the discvscan CLI.
//
// discvscan crawls the Ethereum discovery v5 network. Starting from bootnodes
// it measures every reachable node, writes one CSV row per measurement and
// re-measures the discovered population in cycles until interrupted.
//
// Usage:
//
//	discvscan crawl --bootnode enr:-... --output crawl.csv
//	discvscan report
//	discvscan compare --from 0 --to 1
//
// See --help for all available options.
package main

// main is the entry point for discvscan.
func main() {
	Execute()
}
