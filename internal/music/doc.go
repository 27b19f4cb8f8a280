// Package music holds the library catalog model (artists, albums, releases,
// tracks, track files) and the local scan model (LocalTrack and
// LocalAlbumRelease) shared by the decision and import pipelines.
package music
