package history

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps history in memory. The CLI uses it for dry runs.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	records []*Record
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) InsertHistory(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	record.ID = m.nextID
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

func (m *MemoryRepository) HistoryByDownloadID(_ context.Context, downloadID string) ([]*Record, error) {
	return m.filter(func(r *Record) bool { return downloadID != "" && strings.EqualFold(r.DownloadID, downloadID) }), nil
}

func (m *MemoryRepository) HistoryByAlbum(_ context.Context, albumID int64) ([]*Record, error) {
	return m.filter(func(r *Record) bool { return r.AlbumID == albumID }), nil
}

func (m *MemoryRepository) HistoryBySourceTitle(_ context.Context, sourceTitle string) ([]*Record, error) {
	return m.filter(func(r *Record) bool { return r.SourceTitle == sourceTitle }), nil
}

func (m *MemoryRepository) HistorySince(_ context.Context, since time.Time, eventType EventType) ([]*Record, error) {
	return m.filter(func(r *Record) bool {
		return !r.Date.Before(since) && (eventType == "" || r.EventType == eventType)
	}), nil
}

func (m *MemoryRepository) filter(keep func(*Record) bool) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, r := range m.records {
		if keep(r) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}
