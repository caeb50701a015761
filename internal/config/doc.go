// Package config defines the crawl configuration, its defaults and
// validation, and the YAML file that can override the defaults.
//
// Values are resolved in three layers: NewConfig defaults, then the YAML
// file (File.Apply), then CLI flags. The resolved Config is stored with the
// session so that a resumed crawl reuses it.
package config
