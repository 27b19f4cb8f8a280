package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"needle/internal/daemon"
	"needle/internal/download"
	"needle/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer listens on path. A stale socket file is replaced.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Needle", &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the server is closed.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "CLI clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			}()
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale socket file stays in the data directory"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = os.Getpid()
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	for _, task := range status.Workflow.Tasks {
		resp.Loops = append(resp.Loops, LoopStatus{
			Name:                task.Name,
			IntervalSeconds:     int(task.Interval.Seconds()),
			Runs:                task.Runs,
			Failures:            task.Failures,
			ConsecutiveFailures: task.ConsecutiveFailures,
			LastRun:             task.LastRun,
			LastError:           task.LastError,
			NextRun:             task.NextRun,
		})
	}
	for _, td := range status.Downloads {
		resp.Downloads = append(resp.Downloads, downloadStatus(td))
	}
	return nil
}

// ImportDownload reports reconcile failures in the response, like RunLoop.
func (s *service) ImportDownload(req ImportDownloadRequest, resp *ImportDownloadResponse) error {
	if strings.TrimSpace(req.DownloadID) == "" {
		resp.Error = "download id is required"
		return nil
	}
	td, err := s.daemon.ImportDownload(s.ctx, req.Client, req.DownloadID, req.IgnoreWarnings)
	if td != nil {
		resp.Download = downloadStatus(td)
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return nil
}

func downloadStatus(td *download.TrackedDownload) DownloadStatus {
	var messages []string
	for _, msg := range td.Messages {
		messages = append(messages, msg.Messages...)
	}
	return DownloadStatus{
		Client:     td.Key.Client,
		DownloadID: td.Key.DownloadID,
		Title:      td.Item.Title,
		State:      string(td.State),
		Messages:   messages,
		TotalSize:  td.Item.TotalSize,
		Remaining:  td.Item.RemainingSize,
		Updated:    td.Updated,
	}
}

// RunLoop reports loop failures in the response so the client can tell them
// apart from transport errors.
func (s *service) RunLoop(req RunLoopRequest, resp *RunLoopResponse) error {
	s.logger.Info("loop run requested", logging.String("loop", req.Name))
	if err := s.daemon.RunTask(s.ctx, req.Name); err != nil {
		resp.Error = err.Error()
	}
	return nil
}
