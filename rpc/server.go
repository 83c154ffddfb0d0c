package rpc

import (
	"net"
	"net/rpc"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shenjiangwei/tilerAllocator/container"
	"github.com/shenjiangwei/tilerAllocator/reserve"
)

// Server represents the tiler reservation server
type Server struct {
	container *container.Container
	reserver  *reserve.Reserver
	rpc       *rpc.Server

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	nextID   uint64
	buffers  map[uint64]container.NV12Buffer // 2D buffers have no chroma
}

// ReserveRequest represents a reservation request
type ReserveRequest struct {
	Request reserve.Request
}

// ReserveResponse represents a reservation response
type ReserveResponse struct {
	Result reserve.Result
	Error  string
	Kind   string
}

// UnreserveRequest represents a request to drop a group's reservations
type UnreserveRequest struct {
	Process reserve.ProcessID
	Group   uint32
}

// UnreserveResponse represents an unreserve response
type UnreserveResponse struct {
	Released int // areas
}

// AllocRequest represents a buffer allocation request
type AllocRequest struct {
	NV12    bool
	Format  reserve.Format // ignored for NV12
	Width   int
	Height  int
	Align   int
	Offset  int
	Process reserve.ProcessID
	Group   uint32
}

// Placement is the slot rectangle of one plane
type Placement struct {
	X, Y   int
	Width  int
	Height int
}

// AllocResponse represents a buffer allocation response
type AllocResponse struct {
	Handle uint64
	Luma   Placement
	Chroma Placement // NV12 only
	Pooled bool
	Error  string
	Kind   string
}

// FreeRequest represents a buffer free request
type FreeRequest struct {
	Handle uint64
}

// FreeResponse represents a buffer free response
type FreeResponse struct {
	Error string
	Kind  string
}

// PlanResponse represents the packing decision for a reservation request
type PlanResponse struct {
	Plan  reserve.Plan
	Error string
	Kind  string
}

// StatsRequest selects the group whose reservations are reported
type StatsRequest struct {
	Process reserve.ProcessID
	Group   uint32
}

// StatsResponse represents server statistics
type StatsResponse struct {
	Reserver reserve.Stats
	Pool     container.PoolStats
	Used     int // slots
	Total    int // slots
	Groups   int
	Areas    []reserve.Area
}

// NewServer creates a new server on an empty container
func NewServer(cfg container.Config) (*Server, error) {
	c, err := container.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create container")
	}
	r, err := reserve.NewReserver(c, reserve.Config{PageSize: cfg.PageSize})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reserver")
	}

	s := &Server{
		container: c,
		reserver:  r,
		rpc:       rpc.NewServer(),
		buffers:   make(map[uint64]container.NV12Buffer),
	}
	if err := s.rpc.RegisterName("Server", s); err != nil {
		return nil, errors.Wrap(err, "failed to register server")
	}
	return s, nil
}

// Start starts the server on the specified address
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to start server")
	}
	reserve.Info("Server listening on %s", listener.Addr())
	return s.Serve(listener)
}

// Serve accepts connections on listener until it is closed
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return listener.Close()
	}
	s.listener = listener
	s.mu.Unlock()
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			reserve.Error("Failed to accept connection: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Close stops accepting connections
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) ReserveNV12(req *ReserveRequest, resp *ReserveResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.reserver.ReserveNV12(req.Request)
	resp.Result = res
	if err != nil {
		resp.Kind, resp.Error = encodeError(err)
	}
	return nil
}

func (s *Server) Reserve(req *ReserveRequest, resp *ReserveResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.reserver.Reserve(req.Request)
	resp.Result = res
	if err != nil {
		resp.Kind, resp.Error = encodeError(err)
	}
	return nil
}

func (s *Server) Unreserve(req *UnreserveRequest, resp *UnreserveResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp.Released = len(s.container.Reservations(req.Process, req.Group))
	s.reserver.Unreserve(req.Process, req.Group)
	return nil
}

func (s *Server) Plan(req *ReserveRequest, resp *PlanResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.reserver.PlanNV12(req.Request)
	if err != nil {
		resp.Kind, resp.Error = encodeError(err)
		return nil
	}
	resp.Plan = p
	return nil
}

func (s *Server) Alloc(req *AllocRequest, resp *AllocResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nb container.NV12Buffer
	var err error
	if req.NV12 {
		nb, err = s.container.AllocNV12(req.Process, req.Group, req.Width, req.Height, req.Align, req.Offset)
	} else {
		nb.Luma, err = s.container.Alloc(req.Process, req.Group, req.Format, req.Width, req.Height, req.Align, req.Offset)
	}
	if err != nil {
		resp.Kind, resp.Error = encodeError(err)
		return nil
	}

	s.nextID++
	s.buffers[s.nextID] = nb
	resp.Handle = s.nextID
	resp.Luma = placement(nb.Luma)
	resp.Chroma = placement(nb.Chroma)
	resp.Pooled = nb.Luma.Pooled()
	return nil
}

func (s *Server) Free(req *FreeRequest, resp *FreeResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb, ok := s.buffers[req.Handle]
	if !ok {
		resp.Kind, resp.Error = encodeError(errors.Wrapf(container.ErrNotAllocated, "handle %d", req.Handle))
		return nil
	}
	delete(s.buffers, req.Handle)

	var err error
	if nb.Chroma == nil {
		err = s.container.Free(nb.Luma)
	} else {
		err = s.container.FreeNV12(nb)
	}
	if err != nil {
		resp.Kind, resp.Error = encodeError(err)
	}
	return nil
}

func (s *Server) Stats(req *StatsRequest, resp *StatsResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp.Reserver = s.reserver.Stats()
	resp.Pool = s.container.PoolStats()
	resp.Used = s.container.Used()
	resp.Total = s.container.Width() * s.container.Height()
	resp.Groups = s.container.Groups()
	resp.Areas = s.container.Reservations(req.Process, req.Group)
	return nil
}

func placement(b *container.Buffer) Placement {
	if b == nil {
		return Placement{}
	}
	return Placement{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}
