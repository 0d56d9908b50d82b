package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()

		resp, err := s.CreateRoom(ctx, &CreateRoomParams{
			Name:       "movie night",
			Visibility: "private",
			CreatorId:  "alice",
		})
		require.NoError(t, err)
		assert.Len(t, resp.Room.Id, roomIdLength)
		assert.Equal(t, "alice", resp.Room.HostId)

		r, err := s.GetRoom(ctx, resp.Room.Id)
		require.NoError(t, err)
		assert.Equal(t, resp.Room, r)

		_, err = s.GetRoom(ctx, "missing1")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestCreateRoom_Invalid(t *testing.T) {
	s := newTestService(t, "inmemory", testConfig())

	_, err := s.CreateRoom(context.Background(), &CreateRoomParams{
		Name:       "",
		Visibility: "secret",
		CreatorId:  "alice",
	})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestCreateRoom_RacingCollision(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		gen := &seqGenerator{ids: []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}}
		s := newTestService(t, backend, testConfig(), WithGenerator(gen))
		ctx := context.Background()

		var wg sync.WaitGroup
		ids := make([]string, 2)
		for i, creator := range []string{"alice", "bob"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := s.CreateRoom(ctx, &CreateRoomParams{
					Name:       creator + "'s room",
					Visibility: "public",
					CreatorId:  creator,
				})
				assert.NoError(t, err)
				ids[i] = resp.Room.Id
			}()
		}
		wg.Wait()

		assert.ElementsMatch(t, []string{"AAAAAAAA", "BBBBBBBB"}, ids)

		for i, creator := range []string{"alice", "bob"} {
			r, err := s.GetRoom(ctx, ids[i])
			require.NoError(t, err)
			assert.Equal(t, creator, r.HostId)
			assert.Equal(t, creator+"'s room", r.Name)
		}
	})
}

func TestCreateRoom_GivesUpAfterCollisions(t *testing.T) {
	gen := &seqGenerator{ids: []string{"AAAAAAAA"}}
	s := newTestService(t, "inmemory", testConfig(), WithGenerator(gen))
	ctx := context.Background()

	createRoom(t, s, "alice")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Name: "again", Visibility: "public", CreatorId: "bob"})
	assert.Error(t, err)
}

func TestListRooms(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()

		public := createRoom(t, s, "alice")
		join(t, s, public, "alice")
		join(t, s, public, "bob")

		_, err := s.CreateRoom(ctx, &CreateRoomParams{Name: "secret", Visibility: "private", CreatorId: "carol"})
		require.NoError(t, err)

		var all []RoomSummary
		for summary, err := range s.ListRooms(ctx, ListRoomsFilter{}) {
			require.NoError(t, err)
			all = append(all, summary)
		}
		assert.Len(t, all, 2)

		var lobby []RoomSummary
		for summary, err := range s.ListRooms(ctx, ListRoomsFilter{PublicOnly: true}) {
			require.NoError(t, err)
			lobby = append(lobby, summary)
		}
		require.Len(t, lobby, 1)
		assert.Equal(t, public, lobby[0].Id)
		assert.Equal(t, 2, lobby[0].MemberCount)
		assert.Nil(t, lobby[0].Media)

		n := 0
		for range s.ListRooms(ctx, ListRoomsFilter{Limit: 1}) {
			n++
		}
		assert.Equal(t, 1, n)

		seq := s.ListRooms(ctx, ListRoomsFilter{PublicOnly: true})
		createRoom(t, s, "dave")
		n = 0
		for range seq {
			n++
		}
		assert.Equal(t, 2, n, "each iteration re-reads the rooms")
	})
}

func TestDestroyRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()

		roomId := createRoom(t, s, "alice")
		_, aliceConn := join(t, s, roomId, "alice")
		_, bobConn := join(t, s, roomId, "bob")

		_, err := s.DestroyRoom(ctx, &DestroyRoomParams{RoomId: roomId, SenderId: "bob"})
		assert.ErrorIs(t, err, ErrPermissionDenied)

		_, err = s.DestroyRoom(ctx, &DestroyRoomParams{RoomId: roomId, SenderId: "mallory"})
		assert.ErrorIs(t, err, ErrNotMember)

		resp, err := s.DestroyRoom(ctx, &DestroyRoomParams{RoomId: roomId, SenderId: "alice"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []Conn{aliceConn, bobConn}, resp.Conns)

		_, err = s.GetRoom(ctx, roomId)
		assert.ErrorIs(t, err, ErrRoomNotFound)

		_, err = s.GetMembership(bobConn)
		assert.Error(t, err)

		_, err = s.DestroyRoom(ctx, &DestroyRoomParams{RoomId: roomId, SenderId: "alice"})
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestEmptyRoomExpires(t *testing.T) {
	cfg := testConfig()
	cfg.EmptyRoomTTL = 20 * time.Millisecond
	s := newTestService(t, "inmemory", cfg)
	ctx := context.Background()

	expired := make(chan string, 1)
	s.SetHooks(Hooks{RoomExpired: func(_ context.Context, roomId string) { expired <- roomId }})

	abandoned := createRoom(t, s, "alice")
	joined := createRoom(t, s, "bob")
	join(t, s, joined, "bob")

	select {
	case roomId := <-expired:
		assert.Equal(t, abandoned, roomId)
	case <-time.After(2 * time.Second):
		t.Fatal("room did not expire")
	}

	_, err := s.GetRoom(ctx, abandoned)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = s.GetRoom(ctx, joined)
	assert.NoError(t, err)
}
