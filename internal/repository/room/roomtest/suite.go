// Package roomtest is a behavioural test suite shared by the room repository implementations.
package roomtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/syncroom/internal/repository/room"
)

// Run executes the suite. newRepo must return an empty repository on every call.
func Run(t *testing.T, newRepo func(t *testing.T) room.Repository) {
	t.Run("CreateRoom", func(t *testing.T) { testCreateRoom(t, newRepo(t)) })
	t.Run("CreateRoomConcurrent", func(t *testing.T) { testCreateRoomConcurrent(t, newRepo(t)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newRepo(t)) })
	t.Run("Player", func(t *testing.T) { testPlayer(t, newRepo(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newRepo(t)) })
	t.Run("Summary", func(t *testing.T) { testSummary(t, newRepo(t)) })
	t.Run("RemoveRoom", func(t *testing.T) { testRemoveRoom(t, newRepo(t)) })
}

func createRoom(t *testing.T, r room.Repository, roomId string) {
	t.Helper()

	require.NoError(t, r.CreateRoom(context.Background(), &room.CreateRoomParams{
		RoomId:     roomId,
		Name:       "movie night",
		Visibility: room.VisibilityPublic,
		HostId:     "alice",
		CreatedAt:  1700000000000,
	}))
}

func addMember(t *testing.T, r room.Repository, roomId, memberId string, joinedAt int64) {
	t.Helper()

	require.NoError(t, r.SetMember(context.Background(), &room.SetMemberParams{
		RoomId:    roomId,
		MemberId:  memberId,
		Name:      memberId,
		AvatarUrl: "https://example.com/" + memberId + ".png",
		Status:    room.StatusConnected,
		JoinedAt:  joinedAt,
	}))
}

func testCreateRoom(t *testing.T, r room.Repository) {
	ctx := context.Background()

	_, err := r.GetRoom(ctx, "abc")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	createRoom(t, r, "abc")

	rm, err := r.GetRoom(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, room.Room{
		Name:       "movie night",
		Visibility: room.VisibilityPublic,
		HostId:     "alice",
		CreatedAt:  1700000000000,
	}, rm)

	err = r.CreateRoom(ctx, &room.CreateRoomParams{RoomId: "abc", Name: "other", CreatedAt: 1})
	assert.ErrorIs(t, err, room.ErrRoomAlreadyExists)

	rm, err = r.GetRoom(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "movie night", rm.Name)

	require.NoError(t, r.SetRoomHost(ctx, "abc", ""))
	rm, err = r.GetRoom(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "", rm.HostId)

	assert.ErrorIs(t, r.SetRoomHost(ctx, "missing", "bob"), room.ErrRoomNotFound)

	ids, err := r.GetRoomIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, ids)
}

func testCreateRoomConcurrent(t *testing.T, r room.Repository) {
	ctx := context.Background()

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.CreateRoom(ctx, &room.CreateRoomParams{
				RoomId:    "same",
				Name:      fmt.Sprintf("room %d", i),
				HostId:    fmt.Sprintf("creator-%d", i),
				CreatedAt: int64(i + 1),
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, room.ErrRoomAlreadyExists)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func testMembers(t *testing.T, r room.Repository) {
	ctx := context.Background()
	createRoom(t, r, "abc")

	addMember(t, r, "abc", "alice", 1)
	addMember(t, r, "abc", "bob", 2)
	addMember(t, r, "abc", "carol", 3)

	ids, err := r.GetMemberIds(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)

	m, err := r.GetMember(ctx, "abc", "bob")
	require.NoError(t, err)
	assert.Equal(t, room.Member{
		Name:      "bob",
		AvatarUrl: "https://example.com/bob.png",
		Status:    room.StatusConnected,
		JoinedAt:  2,
	}, m)

	require.NoError(t, r.UpdateMemberStatus(ctx, &room.UpdateMemberStatusParams{
		RoomId:   "abc",
		MemberId: "bob",
		Status:   room.StatusDisconnected,
	}))
	m, err = r.GetMember(ctx, "abc", "bob")
	require.NoError(t, err)
	assert.Equal(t, room.StatusDisconnected, m.Status)

	require.NoError(t, r.RemoveMember(ctx, "abc", "alice"))
	assert.ErrorIs(t, r.RemoveMember(ctx, "abc", "alice"), room.ErrMemberNotFound)

	_, err = r.GetMember(ctx, "abc", "alice")
	assert.ErrorIs(t, err, room.ErrMemberNotFound)

	assert.ErrorIs(t, r.UpdateMemberStatus(ctx, &room.UpdateMemberStatusParams{
		RoomId:   "abc",
		MemberId: "alice",
		Status:   room.StatusConnected,
	}), room.ErrMemberNotFound)

	addMember(t, r, "abc", "alice", 4)
	ids, err = r.GetMemberIds(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "alice"}, ids)

	ids, err = r.GetMemberIds(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testPlayer(t *testing.T, r room.Repository) {
	ctx := context.Background()
	createRoom(t, r, "abc")

	_, err := r.GetPlayer(ctx, "abc")
	assert.ErrorIs(t, err, room.ErrPlayerNotFound)

	p := room.Player{
		MovieId:   "dune",
		EpisodeId: "1",
		Status:    "playing",
		Position:  12.5,
		UpdatedAt: 1700000000123,
		Epoch:     2,
		Seq:       7,
	}
	require.NoError(t, r.SetPlayer(ctx, &room.SetPlayerParams{RoomId: "abc", Player: p}))

	got, err := r.GetPlayer(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.Status = "paused"
	p.Seq = 8
	require.NoError(t, r.SetPlayer(ctx, &room.SetPlayerParams{RoomId: "abc", Player: p}))

	got, err = r.GetPlayer(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func message(id, text string, createdAt int64) room.Message {
	return room.Message{
		Id:           id,
		AuthorId:     "alice",
		AuthorName:   "Alice",
		AuthorIsHost: true,
		Text:         text,
		CreatedAt:    createdAt,
	}
}

func testMessages(t *testing.T, r room.Repository) {
	ctx := context.Background()
	createRoom(t, r, "abc")

	for i, text := range []string{"one", "two", "three"} {
		added, err := r.AddMessage(ctx, &room.AddMessageParams{
			RoomId:  "abc",
			Message: message(fmt.Sprintf("m%d", i+1), text, int64(i+1)),
			Limit:   2,
		})
		require.NoError(t, err)
		assert.True(t, added)
	}

	messages, err := r.GetMessages(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, message("m2", "two", 2), messages[0])
	assert.Equal(t, message("m3", "three", 3), messages[1])

	_, err = r.GetMessage(ctx, "abc", "m1")
	assert.ErrorIs(t, err, room.ErrMessageNotFound)

	added, err := r.AddMessage(ctx, &room.AddMessageParams{
		RoomId:  "abc",
		Message: message("m3", "resent", 4),
		Limit:   2,
	})
	require.NoError(t, err)
	assert.False(t, added)

	m, err := r.GetMessage(ctx, "abc", "m3")
	require.NoError(t, err)
	assert.Equal(t, "three", m.Text)

	require.NoError(t, r.MarkMessageDeleted(ctx, "abc", "m3"))
	m, err = r.GetMessage(ctx, "abc", "m3")
	require.NoError(t, err)
	assert.True(t, m.Deleted)

	assert.ErrorIs(t, r.MarkMessageDeleted(ctx, "abc", "nope"), room.ErrMessageNotFound)
}

func testSummary(t *testing.T, r room.Repository) {
	ctx := context.Background()

	_, err := r.GetSummary(ctx, "abc")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	createRoom(t, r, "abc")
	addMember(t, r, "abc", "alice", 1)
	addMember(t, r, "abc", "bob", 2)
	require.NoError(t, r.SetPlayer(ctx, &room.SetPlayerParams{
		RoomId: "abc",
		Player: room.Player{MovieId: "dune", EpisodeId: "1", Status: "loading", Epoch: 1},
	}))

	s, err := r.GetSummary(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", s.Id)
	assert.Equal(t, "movie night", s.Room.Name)
	assert.Equal(t, 2, s.MemberCount)
	assert.Equal(t, "dune", s.Player.MovieId)
}

func testRemoveRoom(t *testing.T, r room.Repository) {
	ctx := context.Background()
	createRoom(t, r, "abc")
	addMember(t, r, "abc", "alice", 1)
	_, err := r.AddMessage(ctx, &room.AddMessageParams{RoomId: "abc", Message: message("m1", "hi", 1)})
	require.NoError(t, err)

	require.NoError(t, r.RemoveRoom(ctx, "abc"))
	assert.ErrorIs(t, r.RemoveRoom(ctx, "abc"), room.ErrRoomNotFound)

	_, err = r.GetRoom(ctx, "abc")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = r.GetMember(ctx, "abc", "alice")
	assert.ErrorIs(t, err, room.ErrMemberNotFound)

	_, err = r.GetMessage(ctx, "abc", "m1")
	assert.ErrorIs(t, err, room.ErrMessageNotFound)

	ids, err := r.GetRoomIds(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	createRoom(t, r, "abc")
	ids, err = r.GetMemberIds(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
