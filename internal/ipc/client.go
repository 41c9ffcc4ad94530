package ipc

import (
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
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Requests returns up to limit journal entries, newest first.
func (c *Client) Requests(limit int) (*RequestListResponse, error) {
	return call[RequestListRequest, RequestListResponse](c, "Requests", RequestListRequest{Limit: limit})
}

// RequestDescribe returns one journal entry.
func (c *Client) RequestDescribe(requestID string) (*RequestDescribeResponse, error) {
	return call[RequestDescribeRequest, RequestDescribeResponse](c, "RequestDescribe", RequestDescribeRequest{RequestID: requestID})
}

// LogTail returns log lines from the daemon log file.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailRequest, LogTailResponse](c, "LogTail", req)
}
