// Command needle is the command-line front end for the needle library: it
// writes and checks configuration, seeds the catalog, ranks releases, imports
// folders by hand, lists history and wanted albums, imports a single download
// on demand, and runs the daemon in the foreground.
package main
