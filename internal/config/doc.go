// Package config provides configuration structures and utilities for
// backlinkscan. It defines crawl and fetch settings, API server and batch
// settings, the optional .backlinkscan YAML file (plan overrides, per-site
// crawl settings, schedules) and secrets read from the environment.
package config
