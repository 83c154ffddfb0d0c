package rpc

import (
	"net/rpc"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shenjiangwei/tilerAllocator/reserve"
)

// Client represents a tiler reservation client
type Client struct {
	id        int
	client    *rpc.Client
	allocated map[uint64]struct{} // live buffer handles
	mu        sync.Mutex
}

// NewClient creates a new client connected to address
func NewClient(id int, address string) (*Client, error) {
	client, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to server")
	}

	return &Client{
		id:        id,
		client:    client,
		allocated: make(map[uint64]struct{}),
	}, nil
}

func (c *Client) call(method string, req, resp interface{}) error {
	if err := c.client.Call("Server."+method, req, resp); err != nil {
		return errors.Wrapf(err, "client %d: RPC call %s failed", c.id, method)
	}
	return nil
}

// ReserveNV12 reserves areas for NV12 buffers through the server
func (c *Client) ReserveNV12(req reserve.Request) (reserve.Result, error) {
	return c.reserve("ReserveNV12", req)
}

// Reserve reserves areas for 2D buffers through the server
func (c *Client) Reserve(req reserve.Request) (reserve.Result, error) {
	return c.reserve("Reserve", req)
}

func (c *Client) reserve(method string, req reserve.Request) (reserve.Result, error) {
	resp := &ReserveResponse{}
	if err := c.call(method, &ReserveRequest{Request: req}, resp); err != nil {
		return reserve.Result{Requested: req.Count}, err
	}
	if resp.Error != "" {
		return resp.Result, decodeError(resp.Kind, resp.Error)
	}
	return resp.Result, nil
}

// Unreserve drops the reservations of a group and returns how many areas
// were released
func (c *Client) Unreserve(pid reserve.ProcessID, gid uint32) (int, error) {
	resp := &UnreserveResponse{}
	if err := c.call("Unreserve", &UnreserveRequest{Process: pid, Group: gid}, resp); err != nil {
		return 0, err
	}
	return resp.Released, nil
}

// Plan returns the packing decision the server would take for an NV12 request
func (c *Client) Plan(req reserve.Request) (reserve.Plan, error) {
	resp := &PlanResponse{}
	if err := c.call("Plan", &ReserveRequest{Request: req}, resp); err != nil {
		return reserve.Plan{}, err
	}
	if resp.Error != "" {
		return reserve.Plan{}, decodeError(resp.Kind, resp.Error)
	}
	return resp.Plan, nil
}

// Alloc allocates a buffer through the server
func (c *Client) Alloc(req AllocRequest) (AllocResponse, error) {
	resp := &AllocResponse{}
	if err := c.call("Alloc", &req, resp); err != nil {
		return AllocResponse{}, err
	}
	if resp.Error != "" {
		return AllocResponse{}, decodeError(resp.Kind, resp.Error)
	}

	c.mu.Lock()
	c.allocated[resp.Handle] = struct{}{}
	c.mu.Unlock()

	return *resp, nil
}

// Free frees a buffer through the server
func (c *Client) Free(handle uint64) error {
	resp := &FreeResponse{}
	if err := c.call("Free", &FreeRequest{Handle: handle}, resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return decodeError(resp.Kind, resp.Error)
	}

	c.mu.Lock()
	delete(c.allocated, handle)
	c.mu.Unlock()

	return nil
}

// Allocated returns the number of buffers the client holds
func (c *Client) Allocated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.allocated)
}

// Stats returns server statistics and the reservations of one group
func (c *Client) Stats(pid reserve.ProcessID, gid uint32) (StatsResponse, error) {
	resp := &StatsResponse{}
	if err := c.call("Stats", &StatsRequest{Process: pid, Group: gid}, resp); err != nil {
		return StatsResponse{}, err
	}
	return *resp, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
