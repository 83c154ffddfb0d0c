package rpc

import (
	"net"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shenjiangwei/tilerAllocator/container"
	"github.com/shenjiangwei/tilerAllocator/reserve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	server, err := NewServer(container.DefaultConfig())
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- server.Serve(listener) }()
	t.Cleanup(func() {
		listener.Close()
		assert.NoError(t, <-done)
	})
	return listener.Addr().String()
}

func newTestClient(t *testing.T, id int, address string) *Client {
	t.Helper()
	client, err := NewClient(id, address)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func nv12Request() reserve.Request {
	return reserve.Request{
		Count:    9,
		Width:    256,
		Height:   128,
		Align:    256,
		Offset:   128,
		Group:    2,
		Process:  1,
		Together: true,
	}
}

func TestRPC_ReserveAndAlloc(t *testing.T) {
	client := newTestClient(t, 0, startServer(t))

	plan, err := client.Plan(nv12Request())
	require.NoError(t, err)
	assert.False(t, plan.Separate)
	assert.Equal(t, reserve.PatternTable, plan.Together.Pattern)
	assert.Equal(t, 9, plan.Together.Count())

	res, err := client.ReserveNV12(nv12Request())
	require.NoError(t, err)
	assert.Equal(t, 9, res.Reserved)

	stats, err := client.Stats(1, 2)
	require.NoError(t, err)
	assert.Len(t, stats.Areas, 1)
	assert.Equal(t, 128, stats.Used)
	assert.Equal(t, 256*128, stats.Total)
	assert.Equal(t, uint64(1), stats.Reserver.TogetherCommits)

	buf, err := client.Alloc(AllocRequest{NV12: true, Width: 256, Height: 128, Align: 256, Offset: 128, Process: 1, Group: 2})
	require.NoError(t, err)
	assert.True(t, buf.Pooled)
	assert.Equal(t, Placement{X: 2, Y: 0, Width: 4, Height: 2}, buf.Luma)
	assert.Equal(t, Placement{X: 33, Y: 0, Width: 2, Height: 2}, buf.Chroma)
	assert.Equal(t, 1, client.Allocated())

	require.NoError(t, client.Free(buf.Handle))
	assert.Zero(t, client.Allocated())

	released, err := client.Unreserve(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	stats, err = client.Stats(1, 2)
	require.NoError(t, err)
	assert.Zero(t, stats.Used)
	assert.Zero(t, stats.Groups)
	assert.Empty(t, stats.Areas)
	assert.Equal(t, uint64(1), stats.Pool.PoolHits)
}

func TestRPC_Reserve2D(t *testing.T) {
	client := newTestClient(t, 0, startServer(t))

	req := reserve.Request{Count: 10, Format: reserve.Format8Bit, Width: 256, Height: 64, Align: 256, Process: 1, Group: 1}
	res, err := client.Reserve(req)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Reserved)

	// wide buffers are left to direct placement
	req.Width = 2048
	res, err = client.Reserve(req)
	require.NoError(t, err)
	assert.Zero(t, res.Reserved)

	stats, err := client.Stats(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Reserver.Declined)
	require.Len(t, stats.Areas, 1)
	assert.Equal(t, 10, stats.Areas[0].Count)
}

func TestRPC_Errors(t *testing.T) {
	client := newTestClient(t, 0, startServer(t))

	req := nv12Request()
	req.Offset = 3
	_, err := client.ReserveNV12(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, reserve.ErrInvalidRequest), "got %v", err)

	_, err = client.Plan(req)
	assert.True(t, errors.Is(err, reserve.ErrInvalidRequest), "got %v", err)

	err = client.Free(999)
	assert.True(t, errors.Is(err, container.ErrNotAllocated), "got %v", err)

	_, err = client.Alloc(AllocRequest{Format: reserve.Format8Bit, Width: 64 * 300, Height: 64, Process: 1, Group: 1})
	assert.True(t, errors.Is(err, container.ErrBadSize), "got %v", err)
	assert.Zero(t, client.Allocated())
}

func TestRPCClientServer(t *testing.T) {
	address := startServer(t)

	numClients := 5
	var wg sync.WaitGroup
	for i := 0; i < numClients; i++ {
		client := newTestClient(t, i, address)
		wg.Add(1)
		go func(id int, c *Client) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				buf, err := c.Alloc(AllocRequest{
					Format:  reserve.Format16Bit,
					Width:   128,
					Height:  64,
					Process: reserve.ProcessID(id),
					Group:   1,
				})
				if !assert.NoError(t, err, "client %d allocation failed", id) {
					return
				}
				assert.NoError(t, c.Free(buf.Handle), "client %d free failed", id)
			}
			assert.Zero(t, c.Allocated())
		}(i, client)
	}
	wg.Wait()
}
