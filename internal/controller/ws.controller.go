package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/wsconn"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	conn := wsconn.New(ws, c.connOpts)
	c.metrics.Connections.Inc()
	defer c.metrics.Connections.Dec()

	ctx := r.Context()
	defer c.disconnect(context.WithoutCancel(ctx), conn)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}

// disconnect starts the grace period of the membership the connection served, if any.
func (c controller) disconnect(ctx context.Context, conn *wsconn.Conn) {
	conn.Close(websocket.CloseNormalClosure, "")
	c.roomService.UnsubscribeLobby(conn)

	b, err := c.roomService.GetMembership(conn)
	if err != nil {
		return
	}

	disconnectMemberResp, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		RoomId:   b.RoomId,
		MemberId: b.MemberId,
		Conn:     conn,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "room_id", b.RoomId, "member_id", b.MemberId, "error", err)
		return
	}

	c.broadcastViewers(ctx, disconnectMemberResp.Conns, disconnectMemberResp.Members)
}

func (c controller) onMemberExpired(ctx context.Context, resp room.LeaveRoomResponse) {
	c.broadcastLeft(ctx, &resp)
}

func (c controller) onRoomExpired(ctx context.Context, _ string) {
	c.broadcastRoomList(ctx)
}

// RunHeartbeat periodically asks the host of every playing room to re-emit its state until ctx is done.
func (c controller) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			targets, err := c.roomService.SyncTargets(ctx)
			if err != nil {
				c.logger.WarnContext(ctx, "failed to get sync targets", "error", err)
				continue
			}

			for _, target := range targets {
				if err := c.writeToConn(ctx, target.HostConn, newRequestSyncOutput(target.RoomId)); err != nil {
					c.logger.DebugContext(ctx, "failed to request sync", "room_id", target.RoomId, "error", err)
				}
			}
		}
	}
}
