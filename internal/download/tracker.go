package download

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"needle/internal/decision"
	"needle/internal/decision/specs"
	"needle/internal/downloadclient"
)

// Key identifies a download within its client.
type Key struct {
	Client     string
	DownloadID string
}

func (k Key) String() string { return k.Client + "/" + k.DownloadID }

// KeyOf returns the key of a client item.
func KeyOf(item downloadclient.Item) Key {
	return Key{Client: item.Client, DownloadID: item.DownloadID}
}

// StatusMessage groups the messages reported for one title or file.
type StatusMessage struct {
	Title    string
	Messages []string
}

// TrackedDownload is one client item followed from grab to import.
type TrackedDownload struct {
	Key      Key
	Item     downloadclient.Item
	Remote   *decision.RemoteAlbum
	State    State
	Messages []StatusMessage
	// Sequence is the observation that produced the current state.
	Sequence uint64
	Updated  time.Time
	// Removed is set once the item was removed from its client.
	Removed bool

	lastNotice string
}

func (td *TrackedDownload) clone() *TrackedDownload {
	out := *td
	out.Messages = make([]StatusMessage, len(td.Messages))
	for i, msg := range td.Messages {
		out.Messages[i] = StatusMessage{Title: msg.Title, Messages: slices.Clone(msg.Messages)}
	}
	return &out
}

// setMessage replaces the status messages with one message for the download.
func (td *TrackedDownload) setMessage(message string) {
	td.Messages = []StatusMessage{{Title: td.Item.Title, Messages: []string{message}}}
}

// Tracker holds every tracked download keyed by client and download id.
// Passes over one key are serialized; different keys never block each other.
type Tracker struct {
	mu      sync.Mutex
	seq     uint64
	entries map[Key]*slot
}

type slot struct {
	mu       sync.Mutex
	download *TrackedDownload
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[Key]*slot)}
}

// Next returns a new observation sequence number. A pass should take its
// number before it waits for the key lock.
func (t *Tracker) Next() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	return t.seq
}

// acquire locks the slot for key, creating it on first use.
func (t *Tracker) acquire(key Key) (*slot, func()) {
	t.mu.Lock()
	s, ok := t.entries[key]
	if !ok {
		s = &slot{}
		t.entries[key] = s
	}
	t.mu.Unlock()
	s.mu.Lock()
	return s, s.mu.Unlock
}

// Get returns a copy of the tracked download, or nil.
func (t *Tracker) Get(key Key) *TrackedDownload {
	t.mu.Lock()
	s, ok := t.entries[key]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.download == nil {
		return nil
	}
	return s.download.clone()
}

// All returns copies of every tracked download ordered by key.
func (t *Tracker) All() []*TrackedDownload {
	t.mu.Lock()
	slots := make([]*slot, 0, len(t.entries))
	for _, s := range t.entries {
		slots = append(slots, s)
	}
	t.mu.Unlock()

	out := make([]*TrackedDownload, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		if s.download != nil {
			out = append(out, s.download.clone())
		}
		s.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b *TrackedDownload) int {
		return cmp.Or(cmp.Compare(a.Key.Client, b.Key.Client), cmp.Compare(a.Key.DownloadID, b.Key.DownloadID))
	})
	return out
}

// Prune forgets the downloads of client that are no longer in present.
// Terminal downloads are kept until their item leaves the client so a later
// poll cannot import them again.
func (t *Tracker) Prune(client string, present map[Key]bool) []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []Key
	for key := range t.entries {
		if key.Client == client && !present[key] {
			delete(t.entries, key)
			removed = append(removed, key)
		}
	}
	slices.SortFunc(removed, func(a, b Key) int { return cmp.Compare(a.DownloadID, b.DownloadID) })
	return removed
}

// QueuedAlbums lists the grabs still on their way to the library.
func (t *Tracker) QueuedAlbums(context.Context) ([]specs.QueueEntry, error) {
	var entries []specs.QueueEntry
	for _, td := range t.All() {
		if td.State.Terminal() || td.Remote == nil {
			continue
		}
		entries = append(entries, specs.QueueEntry{Title: td.Item.Title, Remote: td.Remote})
	}
	return entries, nil
}

func (t *Tracker) markRemoved(key Key) {
	s, unlock := t.acquire(key)
	defer unlock()
	if s.download != nil {
		s.download.Removed = true
	}
}
