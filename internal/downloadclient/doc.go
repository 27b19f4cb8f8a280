// Package downloadclient defines the uniform view of external download
// clients and ships the blackhole folder client.
//
// Clients report their items as Item values with one of the fixed statuses and
// accept add and remove calls. Everything protocol specific stays behind the
// Client interface.
package downloadclient
