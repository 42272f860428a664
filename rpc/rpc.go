package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/room"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	server   *rpc.Server
}

// NewServer listens on addr and registers the given services on a private rpc.Server.
func NewServer(addr string, services ...interface{}) (*Server, error) {
	srv := rpc.NewServer()
	for _, svc := range services {
		if err := srv.Register(svc); err != nil {
			return nil, err
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		server:   srv,
	}, nil
}

func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Stats is a point-in-time view of the process.
type Stats struct {
	Rooms         int
	Players       int
	Spectators    int
	Connections   int
	PendingTimers int
	Commands      int64
	UptimeSeconds float64
}

// StatsProvider is implemented by the game server.
type StatsProvider interface {
	Stats() Stats
	RoomSnapshot(code string) (room.SerializedRoom, bool)
}

// StatsService exposes read-only operational data over net/rpc.
type StatsService struct {
	provider StatsProvider
}

func NewStatsService(provider StatsProvider) *StatsService {
	return &StatsService{provider: provider}
}

type StatsArgs struct{}

type StatsReply struct {
	Stats Stats
}

func (s *StatsService) GetStats(args *StatsArgs, reply *StatsReply) error {
	reply.Stats = s.provider.Stats()
	return nil
}

type RoomArgs struct {
	Code string
}

type RoomReply struct {
	Room room.SerializedRoom
}

var ErrRoomNotFound = errors.New("room not found")

func (s *StatsService) GetRoom(args *RoomArgs, reply *RoomReply) error {
	snapshot, ok := s.provider.RoomSnapshot(args.Code)
	if !ok {
		return ErrRoomNotFound
	}
	reply.Room = snapshot
	return nil
}
