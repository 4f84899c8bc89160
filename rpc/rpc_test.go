package rpc

import (
	"context"
	"net/rpc"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/bopserver/models"
	"github.com/wfunc/bopserver/room"
	"github.com/wfunc/bopserver/state"
)

type fakeRooms []room.Summary

func (f fakeRooms) Rooms() []room.Summary { return f }

type fakeHistory struct {
	mu    sync.Mutex
	limit int
	games []models.GameRecord
	err   error
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]models.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.games, f.err
}

func startServer(t *testing.T, admin *AdminService) *rpc.Client {
	t.Helper()
	server, err := NewServer("127.0.0.1:0", admin)
	require.NoError(t, err)
	go server.Start()
	t.Cleanup(server.Stop)

	client, err := rpc.Dial("tcp", server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAdmin_ListRooms(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	admin := NewAdminService(fakeRooms{{
		Code: "ABCD", Phase: state.PhasePlaying, Host: "h", Players: 4, Connections: 3,
		LastActivity: now.Add(-90 * time.Second),
	}}, &fakeHistory{})
	admin.now = func() time.Time { return now }
	client := startServer(t, admin)

	var reply ListRoomsReply
	require.NoError(t, client.Call("Admin.ListRooms", &ListRoomsArgs{}, &reply))
	require.Len(t, reply.Rooms, 1)
	assert.Equal(t, RoomInfo{
		Code: "ABCD", Phase: "playing", Host: "h", Players: 4, Connections: 3, IdleSeconds: 90,
	}, reply.Rooms[0])

	var filtered ListRoomsReply
	require.NoError(t, client.Call("Admin.ListRooms", &ListRoomsArgs{Phase: "lobby"}, &filtered))
	assert.Empty(t, filtered.Rooms)
}

func TestAdmin_RecentGames(t *testing.T) {
	history := &fakeHistory{games: []models.GameRecord{{RoomCode: "WXYZ", Winner: 1}}}
	client := startServer(t, NewAdminService(fakeRooms{}, history))

	var reply RecentGamesReply
	require.NoError(t, client.Call("Admin.RecentGames", &RecentGamesArgs{Limit: 3}, &reply))
	require.Len(t, reply.Games, 1)
	assert.Equal(t, "WXYZ", reply.Games[0].RoomCode)

	history.mu.Lock()
	assert.Equal(t, 3, history.limit)
	history.err = assert.AnError
	history.mu.Unlock()
	err := client.Call("Admin.RecentGames", &RecentGamesArgs{Limit: 3}, &reply)
	assert.EqualError(t, err, assert.AnError.Error())
}
