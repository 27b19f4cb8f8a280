package ipc

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Needle.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunLoop runs the named loop inside the daemon and waits for it to finish.
func (c *Client) RunLoop(name string) error {
	var resp RunLoopResponse
	if err := c.client.Call("Needle.RunLoop", RunLoopRequest{Name: name}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

// ImportDownload reconciles one download inside the daemon. The download is
// returned even when the pass failed, when the daemon found it.
func (c *Client) ImportDownload(req ImportDownloadRequest) (*DownloadStatus, error) {
	var resp ImportDownloadResponse
	if err := c.client.Call("Needle.ImportDownload", req, &resp); err != nil {
		return nil, err
	}
	var status *DownloadStatus
	if resp.Download.DownloadID != "" {
		status = &resp.Download
	}
	if resp.Error != "" {
		return status, errors.New(resp.Error)
	}
	return status, nil
}
