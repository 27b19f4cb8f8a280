// Package fileops performs the filesystem side of imports: moving or copying
// files into the library with verification, replacing and recycling
// superseded files, and the host checks the reconciler and import
// specifications rely on (path shape, free space, read-only sources).
package fileops
