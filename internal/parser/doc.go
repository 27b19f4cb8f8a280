// Package parser extracts artist, album, track and quality information from
// release titles and file paths.
package parser
