package download

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"needle/internal/decision"
	"needle/internal/downloadclient"
	"needle/internal/events"
	"needle/internal/indexer"
	"needle/internal/logging"
	"needle/internal/services"
)

var errClientUnavailable = errors.New("download client unavailable")

// Processed sorts the decisions of one grab run by what happened to them.
type Processed struct {
	Grabbed  []*decision.ReleaseDecision
	Pending  []*decision.ReleaseDecision
	Rejected []*decision.ReleaseDecision
}

// GrabberOptions wires a Grabber.
type GrabberOptions struct {
	Clients  []downloadclient.Client
	Indexers []indexer.Indexer
	Bus      *events.Bus
	Now      func() time.Time
	Logger   *slog.Logger
}

// Grabber sends approved releases to download clients.
type Grabber struct {
	clients  []downloadclient.Client
	indexers map[string]indexer.Indexer
	bus      *events.Bus
	now      func() time.Time
	logger   *slog.Logger
}

// NewGrabber returns a grabber. Clients are tried in priority order, lowest
// number first.
func NewGrabber(opts GrabberOptions) *Grabber {
	clients := slices.Clone(opts.Clients)
	slices.SortStableFunc(clients, func(a, b downloadclient.Client) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	indexers := make(map[string]indexer.Indexer, len(opts.Indexers))
	for _, idx := range opts.Indexers {
		indexers[idx.Name()] = idx
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Grabber{
		clients:  clients,
		indexers: indexers,
		bus:      opts.Bus,
		now:      now,
		logger:   logging.NewComponentLogger(opts.Logger, "grabber"),
	}
}

// Process grabs prioritized decisions in order. An album is grabbed at most
// once per run, temporarily rejected releases are held as pending, and a
// protocol whose client failed is not tried again in the same run.
func (g *Grabber) Process(ctx context.Context, prioritized []*decision.ReleaseDecision) Processed {
	var out Processed
	grabbedAlbums := make(map[int64]bool)
	downProtocols := make(map[indexer.Protocol]bool)

	for _, d := range prioritized {
		if ctx.Err() != nil {
			out.Pending = append(out.Pending, d)
			continue
		}
		remote := d.Subject
		if !d.Accepted() {
			if d.TemporarilyRejected() {
				out.Pending = append(out.Pending, d)
			} else {
				out.Rejected = append(out.Rejected, d)
			}
			continue
		}
		if slices.ContainsFunc(remote.AlbumIDs(), func(id int64) bool { return grabbedAlbums[id] }) {
			continue
		}
		protocol := remote.Release.Protocol
		if downProtocols[protocol] {
			out.Pending = append(out.Pending, d)
			continue
		}

		err := g.grab(ctx, remote)
		switch {
		case err == nil:
			out.Grabbed = append(out.Grabbed, d)
			for _, id := range remote.AlbumIDs() {
				grabbedAlbums[id] = true
			}
		case errors.Is(err, errClientUnavailable) && services.IsTransient(err):
			downProtocols[protocol] = true
			out.Pending = append(out.Pending, d)
			logging.WarnWithContext(logging.WithContext(ctx, g.logger), "download client unavailable", "grab_client_unavailable",
				logging.String(logging.FieldRelease, remote.Release.Title),
				logging.String("protocol", string(protocol)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the download client is reachable"),
				logging.String(logging.FieldImpact, "releases of this protocol wait for the next run"))
		default:
			logging.WarnWithContext(logging.WithContext(ctx, g.logger), "release could not be grabbed", "grab_failed",
				logging.String(logging.FieldRelease, remote.Release.Title),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next candidate for the album is tried"))
		}
	}
	return out
}

func (g *Grabber) grab(ctx context.Context, remote *decision.RemoteAlbum) error {
	release := remote.Release
	client := g.clientFor(release.Protocol)
	if client == nil {
		return services.Wrap(services.ErrConfiguration, "grab", "pick client", "no enabled download client for protocol "+string(release.Protocol), nil)
	}

	req, err := g.downloadRequest(ctx, release)
	if err != nil {
		return err
	}
	id, err := client.Add(ctx, remote, req)
	if err != nil {
		return fmt.Errorf("%w: %w", errClientUnavailable, services.Wrap(services.ErrTransient, "grab", "add", client.Name(), err))
	}
	if id == "" && release.Protocol == indexer.ProtocolTorrent {
		id = downloadclient.InfoHash(req)
		if id == "" {
			id = strings.ToLower(release.InfoHash)
		}
	}

	g.bus.Publish(ctx, events.AlbumGrabbed{
		Remote:     remote,
		Client:     client.Name(),
		Category:   client.Category(),
		DownloadID: id,
		Date:       g.now(),
	})
	g.logger.Info("release grabbed",
		logging.String(logging.FieldRelease, release.Title),
		logging.String(logging.FieldIndexer, release.Indexer),
		logging.String(logging.FieldClient, client.Name()),
		logging.String(logging.FieldDownloadID, id),
		logging.String("size", humanize.IBytes(uint64(max(release.Size, 0)))),
	)
	return nil
}

func (g *Grabber) clientFor(protocol indexer.Protocol) downloadclient.Client {
	for _, client := range g.clients {
		if client.Protocol() == protocol {
			return client
		}
	}
	return nil
}

// downloadRequest asks the release's indexer for the payload and falls back
// to the links the release carries.
func (g *Grabber) downloadRequest(ctx context.Context, release *indexer.Release) (indexer.DownloadRequest, error) {
	if idx, ok := g.indexers[release.Indexer]; ok {
		req, err := idx.GetDownloadRequest(ctx, release)
		if err != nil {
			return indexer.DownloadRequest{}, services.Wrap(services.ErrTransient, "grab", "download request", release.Indexer, err)
		}
		return req, nil
	}
	if release.DownloadURL == "" && release.MagnetURL == "" {
		return indexer.DownloadRequest{}, services.Wrap(services.ErrValidation, "grab", "download request", "release has no link", nil)
	}
	return indexer.DownloadRequest{Link: release.DownloadURL, Magnet: release.MagnetURL}, nil
}
