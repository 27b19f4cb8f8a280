package specs

import (
	"context"

	"needle/internal/decision"
	"needle/internal/indexer"
)

// MonitoredAlbum ignores unmonitored artists and albums outside user searches.
type MonitoredAlbum struct{}

func (MonitoredAlbum) Name() string { return "MonitoredAlbum" }

func (MonitoredAlbum) Evaluate(_ context.Context, remote *decision.RemoteAlbum, criteria *indexer.SearchCriteria) (decision.Result, error) {
	if criteria != nil && criteria.UserInvoked {
		return decision.Accept(), nil
	}
	if remote.Artist != nil && !remote.Artist.Monitored {
		return decision.Reject("Artist is not monitored"), nil
	}
	monitored := 0
	for _, album := range remote.Albums {
		if album.Monitored {
			monitored++
		}
	}
	switch {
	case monitored == 0:
		return decision.Reject("Album is not monitored"), nil
	case monitored < len(remote.Albums) && (remote.ParsedInfo == nil || !remote.ParsedInfo.Discography):
		return decision.Reject("One or more albums is not monitored"), nil
	}
	return decision.Accept(), nil
}

// Discography rejects discographies that claim albums not yet released.
type Discography struct{ deps Dependencies }

func (Discography) Name() string { return "Discography" }

func (s Discography) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	if remote.ParsedInfo == nil || !remote.ParsedInfo.Discography {
		return decision.Accept(), nil
	}
	now := s.deps.now()
	for _, album := range remote.Albums {
		if !album.ReleaseDate.IsZero() && album.ReleaseDate.After(now) {
			return decision.Reject("Discography has one or more albums that have not released"), nil
		}
	}
	return decision.Accept(), nil
}
