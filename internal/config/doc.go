// Package config provides configuration structures and utilities for
// discvscan. It defines the crawl tunables, the discovery listener settings
// and the output locations, plus the optional YAML configuration file.
package config
