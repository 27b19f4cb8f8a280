// Package decision turns indexer releases into accept/reject decisions and
// ranks the accepted ones.
//
// A Maker parses each release, maps it onto the library through a Catalog,
// scores custom formats and runs every registered Specification, collecting
// all rejections. Specification failures are contained: an error or panic in
// one specification becomes a rejection named after it, and a failure while
// evaluating one release becomes "Unexpected error processing release" for
// that release only.
//
// A Comparator orders remote albums through a fixed list of partial
// comparisons (quality, custom format score, preferred protocol, indexer
// priority, torrent peers, album count, usenet age, size) and Prioritize uses
// it to order each artist's decisions best first.
package decision
