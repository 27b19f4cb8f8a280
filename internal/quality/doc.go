// Package quality defines the audio quality catalogue, revisions, quality
// profiles and bitrate definitions used to rank releases and files.
//
// Qualities are identified by stable ids. Profiles list allowed qualities
// from least to most preferred; a quality's index in that list is its rank.
// Titles and file extensions are mapped to qualities by ParseTitle and
// FromExtension.
package quality
