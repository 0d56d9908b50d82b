package controller

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/validator"
	"github.com/sharetube/syncroom/pkg/wsconn"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	ListRooms(context.Context, room.ListRoomsFilter) iter.Seq2[room.RoomSummary, error]
	DestroyRoom(context.Context, *room.DestroyRoomParams) (room.DestroyRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	UpdatePlayer(context.Context, *room.UpdatePlayerParams) (room.UpdatePlayerResponse, error)
	RequestSync(context.Context, *room.RequestSyncParams) (room.RequestSyncResponse, error)
	SendMessage(context.Context, *room.SendMessageParams) (room.SendMessageResponse, error)
	DeleteMessage(context.Context, *room.DeleteMessageParams) (room.DeleteMessageResponse, error)
	SyncTargets(context.Context) ([]room.SyncTarget, error)
	GetMembership(room.Conn) (connection.Binding, error)
	SubscribeLobby(room.Conn)
	UnsubscribeLobby(room.Conn)
	LobbyConns() []room.Conn
	SetHooks(room.Hooks)
}

type Config struct {
	SendQueueSize int
	DropPolicy    wsconn.DropPolicy
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	PongTimeout   time.Duration
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	metrics     *metrics.Metrics
	logger      *slog.Logger
	connOpts    wsconn.Options
}

func NewController(roomService iRoomService, m *metrics.Metrics, logger *slog.Logger, cfg Config) *controller {
	c := controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		metrics:     m,
		logger:      logger,
		connOpts: wsconn.Options{
			QueueSize:    cfg.SendQueueSize,
			Policy:       cfg.DropPolicy,
			WriteTimeout: cfg.WriteTimeout,
			PingInterval: cfg.PingInterval,
			PongTimeout:  cfg.PongTimeout,
			OnDrop:       m.DroppedFrames.Inc,
		},
	}
	c.wsmux = c.getWSRouter()

	roomService.SetHooks(room.Hooks{
		MemberExpired: c.onMemberExpired,
		RoomExpired:   c.onRoomExpired,
	})

	return &c
}

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
