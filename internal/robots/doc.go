// Package robots caches robots.txt policies per host.
//
// Rules are parsed with github.com/temoto/robotstxt. Concurrent first
// queries for the same host share a single fetch.
package robots
