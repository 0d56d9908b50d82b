package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/syncroom/internal/repository/connection"
)

type repo struct {
	mu       sync.RWMutex
	conns    map[connection.Binding]connection.Conn
	bindings map[connection.Conn]connection.Binding
	lobby    map[connection.Conn]struct{}
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		conns:    make(map[connection.Binding]connection.Conn),
		bindings: make(map[connection.Conn]connection.Binding),
		lobby:    make(map[connection.Conn]struct{}),
		logger:   logger,
	}
}

// Add binds conn to the member. A connection previously bound to the same member is returned
// so the caller can close it.
func (r *repo) Add(ctx context.Context, roomId, memberId string, conn connection.Conn) connection.Conn {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "member_id", memberId)
	r.mu.Lock()
	defer r.mu.Unlock()

	b := connection.Binding{RoomId: roomId, MemberId: memberId}
	if old, ok := r.bindings[conn]; ok && old != b {
		delete(r.conns, old)
	}

	replaced := r.conns[b]
	if replaced == conn {
		replaced = nil
	}
	if replaced != nil {
		delete(r.bindings, replaced)
	}

	r.conns[b] = conn
	r.bindings[conn] = b

	return replaced
}

// Remove unbinds the member only if it is still served by conn.
func (r *repo) Remove(ctx context.Context, roomId, memberId string, conn connection.Conn) bool {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "member_id", memberId)
	r.mu.Lock()
	defer r.mu.Unlock()

	b := connection.Binding{RoomId: roomId, MemberId: memberId}
	if r.conns[b] != conn {
		return false
	}

	delete(r.conns, b)
	delete(r.bindings, conn)

	return true
}

// RemoveMember unbinds the member whatever connection serves it and returns that connection.
func (r *repo) RemoveMember(ctx context.Context, roomId, memberId string) (connection.Conn, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "member_id", memberId)
	r.mu.Lock()
	defer r.mu.Unlock()

	b := connection.Binding{RoomId: roomId, MemberId: memberId}
	conn, ok := r.conns[b]
	if !ok {
		return nil, connection.ErrNotFound
	}

	delete(r.conns, b)
	delete(r.bindings, conn)

	return conn, nil
}

func (r *repo) GetConn(roomId, memberId string) (connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connection.Binding{RoomId: roomId, MemberId: memberId}]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetBinding(conn connection.Conn) (connection.Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[conn]
	if !ok {
		return connection.Binding{}, connection.ErrNotFound
	}

	return b, nil
}

func (r *repo) SubscribeLobby(conn connection.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lobby[conn] = struct{}{}
}

func (r *repo) UnsubscribeLobby(conn connection.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.lobby, conn)
}

func (r *repo) LobbyConns() []connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]connection.Conn, 0, len(r.lobby))
	for conn := range r.lobby {
		conns = append(conns, conn)
	}

	return conns
}
