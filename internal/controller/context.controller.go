package controller

import (
	"context"

	"github.com/sharetube/syncroom/internal/service/room"
)

type contextKey int

const (
	roomIdCtxKey contextKey = iota
	memberIdCtxKey
)

func (c controller) getRoomIdFromCtx(ctx context.Context) string {
	roomId, ok := ctx.Value(roomIdCtxKey).(string)
	if !ok {
		return ""
	}

	return roomId
}

func (c controller) getMemberIdFromCtx(ctx context.Context) string {
	memberId, ok := ctx.Value(memberIdCtxKey).(string)
	if !ok {
		return ""
	}

	return memberId
}

// getMembershipFromCtx returns the room and member the connection was bound to when the message arrived.
func (c controller) getMembershipFromCtx(ctx context.Context) (string, string, error) {
	roomId, memberId := c.getRoomIdFromCtx(ctx), c.getMemberIdFromCtx(ctx)
	if roomId == "" || memberId == "" {
		return "", "", room.ErrNotMember
	}

	return roomId, memberId, nil
}
