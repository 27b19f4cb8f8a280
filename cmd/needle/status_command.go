package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"needle/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's loops and downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Daemon running: %s (pid %d)\n", yesNo(status.Running), status.PID)
				fmt.Fprintf(out, "Database: %s\n\n", status.DatabasePath)

				loops := make([][]string, 0, len(status.Loops))
				for _, loop := range status.Loops {
					loops = append(loops, []string{
						loop.Name,
						(time.Duration(loop.IntervalSeconds) * time.Second).String(),
						strconv.Itoa(loop.Runs),
						strconv.Itoa(loop.Failures),
						relativeTime(loop.LastRun),
						relativeTime(loop.NextRun),
						loop.LastError,
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Loop", "Every", "Runs", "Failures", "Last run", "Next run", "Last error"},
					loops,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))

				if len(status.Downloads) == 0 {
					fmt.Fprintln(out, "\nNo tracked downloads")
					return nil
				}
				downloads := make([][]string, 0, len(status.Downloads))
				for _, d := range status.Downloads {
					progress := ""
					if d.TotalSize > 0 {
						progress = humanize.IBytes(uint64(d.TotalSize-d.Remaining)) + " / " + humanize.IBytes(uint64(d.TotalSize))
					}
					message := ""
					if len(d.Messages) > 0 {
						message = d.Messages[len(d.Messages)-1]
					}
					downloads = append(downloads, []string{d.Client, d.Title, d.State, progress, message})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(out,
					[]string{"Client", "Title", "State", "Progress", "Message"},
					downloads,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

func (c *commandContext) socketPath() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return ipc.SocketPath(cfg), nil
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket, err := c.socketPath()
	if err != nil {
		return err
	}
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `needle start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}
