// Package main provides the mapscraper CLI.
//
// mapscraper collects business listings from the map site's search results,
// either as an HTTP service managing concurrent sessions or as a one-shot run.
//
// Usage:
//
//	mapscraper serve
//	mapscraper scrape --keywords "coffee" --location "Lisbon" --max 50
//
// See --help for all available options.
package main

func main() {
	Execute()
}
