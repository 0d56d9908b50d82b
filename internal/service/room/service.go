package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/repository/catalog"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/repository/room"
	"github.com/sharetube/syncroom/pkg/randstr"
	"github.com/sharetube/syncroom/pkg/shardlock"
)

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotMember           = errors.New("not a member of the room")
	ErrMembersLimitReached = errors.New("members limit reached")
	ErrMessageNotFound     = errors.New("message not found")
	ErrInvalidParams       = errors.New("invalid params")
)

const (
	roomIdLength      = 8
	maxCreateAttempts = 5
)

type iRoomRepo interface {
	// room
	CreateRoom(context.Context, *room.CreateRoomParams) error
	GetRoom(ctx context.Context, roomId string) (room.Room, error)
	GetRoomIds(context.Context) ([]string, error)
	SetRoomHost(ctx context.Context, roomId, hostId string) error
	GetSummary(ctx context.Context, roomId string) (room.Summary, error)
	RemoveRoom(ctx context.Context, roomId string) error
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	GetMember(ctx context.Context, roomId, memberId string) (room.Member, error)
	GetMemberIds(ctx context.Context, roomId string) ([]string, error)
	UpdateMemberStatus(context.Context, *room.UpdateMemberStatusParams) error
	RemoveMember(ctx context.Context, roomId, memberId string) error
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) error
	GetPlayer(ctx context.Context, roomId string) (room.Player, error)
	// chat
	AddMessage(context.Context, *room.AddMessageParams) (bool, error)
	GetMessage(ctx context.Context, roomId, messageId string) (room.Message, error)
	GetMessages(ctx context.Context, roomId string) ([]room.Message, error)
	MarkMessageDeleted(ctx context.Context, roomId, messageId string) error
}

type iConnRepo interface {
	Add(ctx context.Context, roomId, memberId string, conn connection.Conn) connection.Conn
	Remove(ctx context.Context, roomId, memberId string, conn connection.Conn) bool
	RemoveMember(ctx context.Context, roomId, memberId string) (connection.Conn, error)
	GetConn(roomId, memberId string) (connection.Conn, error)
	GetBinding(conn connection.Conn) (connection.Binding, error)
	SubscribeLobby(conn connection.Conn)
	UnsubscribeLobby(conn connection.Conn)
	LobbyConns() []connection.Conn
}

type iCatalog interface {
	Movie(ctx context.Context, slug string) (catalog.Movie, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	MembersLimit     int
	GracePeriod      time.Duration
	EmptyRoomTTL     time.Duration
	ChatHistoryLimit int
}

// Hooks are invoked from timers, outside of any client request.
type Hooks struct {
	MemberExpired func(ctx context.Context, resp LeaveRoomResponse)
	RoomExpired   func(ctx context.Context, roomId string)
}

type service struct {
	roomRepo  iRoomRepo
	connRepo  iConnRepo
	catalog   iCatalog
	generator iGenerator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	locks     *shardlock.Map
	cfg       Config
	now       func() time.Time

	hooksMu sync.RWMutex
	hooks   Hooks

	timersMu    sync.Mutex
	graceTimers map[connection.Binding]*timer
	roomTimers  map[string]*timer
}

type Option func(*service)

func WithGenerator(g iGenerator) Option {
	return func(s *service) {
		s.generator = g
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

func NewService(
	roomRepo iRoomRepo,
	connRepo iConnRepo,
	catalog iCatalog,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
	opts ...Option,
) *service {
	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	s := &service{
		roomRepo:    roomRepo,
		connRepo:    connRepo,
		catalog:     catalog,
		generator:   randstr.New(letterBytes),
		metrics:     m,
		logger:      logger,
		locks:       shardlock.New(0),
		cfg:         cfg,
		now:         time.Now,
		graceTimers: make(map[connection.Binding]*timer),
		roomTimers:  make(map[string]*timer),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) SetHooks(h Hooks) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()

	s.hooks = h
}

func (s *service) getHooks() Hooks {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()

	return s.hooks
}

// Close stops all pending timers.
func (s *service) Close() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	for b, e := range s.graceTimers {
		e.t.Stop()
		delete(s.graceTimers, b)
	}
	for id, e := range s.roomTimers {
		e.t.Stop()
		delete(s.roomTimers, id)
	}
}
