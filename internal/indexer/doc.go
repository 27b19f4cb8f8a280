// Package indexer defines the uniform Release record, the Indexer interface
// release sources implement, and a static JSON feed adapter.
//
// The feed format is:
//
//	{"releases": [{"title": "...", "link": "album.torrent", "size": 123,
//	  "publish_date": "2024-01-02T03:04:05Z", "protocol": "torrent",
//	  "seeders": 10, "peers": 2}]}
package indexer
