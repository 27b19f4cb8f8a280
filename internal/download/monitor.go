package download

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"needle/internal/downloadclient"
	"needle/internal/logging"
	"needle/internal/services"
)

const defaultPollWorkers = 4

// MonitorOptions wires a Monitor.
type MonitorOptions struct {
	Clients    []downloadclient.Client
	Reconciler *Reconciler
	// RemoveCompleted removes imported downloads from their client.
	RemoveCompleted bool
	Workers         int
	Logger          *slog.Logger
}

// Monitor polls download clients and reconciles what they report.
type Monitor struct {
	clients         []downloadclient.Client
	reconciler      *Reconciler
	removeCompleted bool
	workers         int
	logger          *slog.Logger
}

// NewMonitor returns a monitor over the given clients.
func NewMonitor(opts MonitorOptions) *Monitor {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultPollWorkers
	}
	return &Monitor{
		clients:         opts.Clients,
		reconciler:      opts.Reconciler,
		removeCompleted: opts.RemoveCompleted,
		workers:         workers,
		logger:          logging.NewComponentLogger(opts.Logger, "download_monitor"),
	}
}

// Poll reconciles every item of every client once. A client that cannot be
// reached is skipped and its error returned after the others were handled;
// item failures are logged and never stop the poll.
func (m *Monitor) Poll(ctx context.Context) ([]*TrackedDownload, error) {
	tracker := m.reconciler.Tracker()
	var clientErrs []error
	for _, client := range m.clients {
		if err := ctx.Err(); err != nil {
			return tracker.All(), err
		}
		if err := m.pollClient(ctx, client); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, m.logger), "download client poll failed", "download_client_unavailable",
				logging.String(logging.FieldClient, client.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the download client is running"),
				logging.String(logging.FieldImpact, "downloads of this client are reconciled on a later poll"))
			clientErrs = append(clientErrs, err)
		}
	}
	return tracker.All(), errors.Join(clientErrs...)
}

func (m *Monitor) pollClient(ctx context.Context, client downloadclient.Client) error {
	items, err := client.GetItems(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "downloads", "get items", client.Name(), err)
	}
	tracker := m.reconciler.Tracker()
	seq := tracker.Next()

	present := make(map[Key]bool, len(items))
	for i := range items {
		if items[i].Client == "" {
			items[i].Client = client.Name()
		}
		present[KeyOf(items[i])] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for _, item := range items {
		g.Go(func() error {
			td, err := m.reconciler.Reconcile(gctx, item, ReconcileOptions{Sequence: seq})
			if err != nil {
				logging.WarnWithContext(logging.WithContext(gctx, m.logger), "reconcile failed", "reconcile_failed",
					logging.String(logging.FieldDownloadID, item.DownloadID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "the download is retried on the next poll"))
				return nil
			}
			if m.removeCompleted && td.State == StateImported {
				m.remove(gctx, client, td)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, key := range tracker.Prune(client.Name(), present) {
		m.logger.Debug("download left the client", logging.String(logging.FieldDownloadID, key.DownloadID))
	}
	return nil
}

// ImportDownload reconciles one download on demand. An empty clientName
// searches every client. IgnoreWarnings lets a user push a download that is
// held in the warning state into the library.
func (m *Monitor) ImportDownload(ctx context.Context, clientName, downloadID string, opts ReconcileOptions) (*TrackedDownload, error) {
	for _, client := range m.clients {
		if clientName != "" && client.Name() != clientName {
			continue
		}
		items, err := client.GetItems(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "downloads", "get items", client.Name(), err)
		}
		for _, item := range items {
			if item.DownloadID != downloadID {
				continue
			}
			if item.Client == "" {
				item.Client = client.Name()
			}
			td, err := m.reconciler.Reconcile(ctx, item, opts)
			if err != nil {
				return td, err
			}
			if m.removeCompleted && td.State == StateImported {
				m.remove(ctx, client, td)
				if current := m.reconciler.Tracker().Get(td.Key); current != nil {
					td = current
				}
			}
			return td, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "downloads", "import", downloadID, nil)
}

func (m *Monitor) remove(ctx context.Context, client downloadclient.Client, td *TrackedDownload) {
	if td.Removed || !td.Item.CanBeRemoved {
		return
	}
	if err := client.Remove(ctx, td.Item.DownloadID, true); err != nil {
		logging.WarnWithContext(m.logger, "removing imported download failed", "download_remove_failed",
			logging.String(logging.FieldDownloadID, td.Item.DownloadID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the download stays in the client"))
		return
	}
	m.reconciler.Tracker().markRemoved(td.Key)
	m.logger.Info("imported download removed from client", logging.String(logging.FieldDownloadID, td.Item.DownloadID))
}
