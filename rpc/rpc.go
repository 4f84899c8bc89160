package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/models"
	"github.com/wfunc/bopserver/room"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	server   *rpc.Server
	address  string
}

// NewServer listens on addr and serves admin under the name "Admin".
func NewServer(addr string, admin *AdminService) (*Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Admin", admin); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		server:   server,
		address:  listener.Addr().String(),
	}, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.address
}

// Start accepts connections until Stop is called.
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

// RoomLister is satisfied by room.Manager.
type RoomLister interface {
	Rooms() []room.Summary
}

// GameHistory is satisfied by services.ResultService.
type GameHistory interface {
	Recent(ctx context.Context, limit int) ([]models.GameRecord, error)
}

// AdminService exposes read-only operator queries.
type AdminService struct {
	rooms   RoomLister
	history GameHistory
	now     func() time.Time
}

func NewAdminService(rooms RoomLister, history GameHistory) *AdminService {
	return &AdminService{rooms: rooms, history: history, now: time.Now}
}

// ListRoomsArgs filters by phase; an empty Phase lists every room.
type ListRoomsArgs struct {
	Phase string
}

type RoomInfo struct {
	Code         string
	Phase        string
	Host         string
	Players      int
	Connections  int
	VoiceEnabled bool
	IdleSeconds  float64
}

type ListRoomsReply struct {
	Rooms []RoomInfo
}

// ListRooms describes every live room. It must follow the net/rpc signature:
// exported method, pointer reply, error result.
func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	now := a.now()
	reply.Rooms = []RoomInfo{}
	for _, s := range a.rooms.Rooms() {
		if args.Phase != "" && string(s.Phase) != args.Phase {
			continue
		}
		reply.Rooms = append(reply.Rooms, RoomInfo{
			Code:         s.Code,
			Phase:        string(s.Phase),
			Host:         s.Host,
			Players:      s.Players,
			Connections:  s.Connections,
			VoiceEnabled: s.VoiceEnabled,
			IdleSeconds:  now.Sub(s.LastActivity).Seconds(),
		})
	}
	return nil
}

type RecentGamesArgs struct {
	Limit int
}

type RecentGamesReply struct {
	Games []models.GameRecord
}

// RecentGames returns finished games, newest first.
func (a *AdminService) RecentGames(args *RecentGamesArgs, reply *RecentGamesReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	games, err := a.history.Recent(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Games = games
	return nil
}
