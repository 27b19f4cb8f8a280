package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"needle/internal/config"
	"needle/internal/ipc"
)

// ErrDaemonNotRunning indicates neither the socket nor the pid file point at a live daemon.
var ErrDaemonNotRunning = errors.New("daemon not running")

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// PIDPath is the file the daemon records its process id in.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "needled.pid")
}

// Launch starts a detached `needle run` process using executablePath.
func Launch(executablePath, configPath string) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"run"}
	if cfg := strings.TrimSpace(configPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for the IPC socket and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its socket already answers.
func EnsureStarted(cfg *config.Config, executablePath, configPath string, waitTimeout time.Duration) (StartResult, error) {
	socket := ipc.SocketPath(cfg)
	state := StartStateAlreadyRunning
	client, err := ipc.Dial(socket)
	if err != nil {
		if launchErr := Launch(executablePath, configPath); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socket, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		state = StartStateStarted
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return StartResult{}, fmt.Errorf("query daemon status: %w", err)
	}
	return StartResult{State: state, PID: status.PID}, nil
}

// Stop sends SIGTERM to the daemon and kills it if it is still alive after gracePeriod.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPID(PIDPath(cfg))
	if err != nil {
		return StopResult{}, err
	}
	if pid == 0 {
		pid = pidFromSocket(ipc.SocketPath(cfg))
	}
	if pid == 0 || !alive(pid) {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(pid, gracePeriod) {
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	result.ForcedKill = true
	_ = os.Remove(PIDPath(cfg))
	_ = os.Remove(ipc.SocketPath(cfg))
	return result, nil
}

// ReadPID returns the pid recorded at path, or 0 when the file does not exist.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(value)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q holds %q", path, value)
	}
	return pid, nil
}

func pidFromSocket(socket string) int {
	client, err := ipc.Dial(socket)
	if err != nil {
		return 0
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return 0
	}
	return status.PID
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
