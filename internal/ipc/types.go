package ipc

import (
	"path/filepath"
	"time"

	"needle/internal/config"
)

// SocketPath is where the daemon for cfg listens.
func SocketPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "needled.sock")
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// LoopStatus mirrors workflow.TaskStatus on the wire.
type LoopStatus struct {
	Name                string    `json:"name"`
	IntervalSeconds     int       `json:"interval_seconds"`
	Runs                int       `json:"runs"`
	Failures            int       `json:"failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastRun             time.Time `json:"last_run"`
	LastError           string    `json:"last_error"`
	NextRun             time.Time `json:"next_run"`
}

// DownloadStatus is one tracked download.
type DownloadStatus struct {
	Client     string    `json:"client"`
	DownloadID string    `json:"download_id"`
	Title      string    `json:"title"`
	State      string    `json:"state"`
	Messages   []string  `json:"messages"`
	TotalSize  int64     `json:"total_size"`
	Remaining  int64     `json:"remaining"`
	Updated    time.Time `json:"updated"`
}

// StatusResponse represents combined daemon and workflow status.
type StatusResponse struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	DatabasePath string           `json:"database_path"`
	LockPath     string           `json:"lock_path"`
	Loops        []LoopStatus     `json:"loops"`
	Downloads    []DownloadStatus `json:"downloads"`
}

// RunLoopRequest triggers one loop outside its schedule.
type RunLoopRequest struct {
	Name string `json:"name"`
}

// RunLoopResponse reports the outcome of the run.
type RunLoopResponse struct {
	Error string `json:"error"`
}

// ImportDownloadRequest reconciles one download now. An empty Client searches
// every download client.
type ImportDownloadRequest struct {
	Client         string `json:"client"`
	DownloadID     string `json:"download_id"`
	IgnoreWarnings bool   `json:"ignore_warnings"`
}

// ImportDownloadResponse carries the download after the pass.
type ImportDownloadResponse struct {
	Download DownloadStatus `json:"download"`
	Error    string         `json:"error"`
}
