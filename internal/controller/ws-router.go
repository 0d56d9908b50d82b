package controller

import (
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.metricsWSMw(), c.membershipWSMw())
	mux.SetValidator(c.validate.Struct)
	mux.SetErrorHandler(c.handleError)

	// lobby
	wsrouter.Handle(mux, "create_room", c.handleCreateRoom)
	wsrouter.Handle(mux, "get_rooms", c.handleGetRooms)

	// member
	wsrouter.Handle(mux, "join_room", c.handleJoinRoom)
	wsrouter.Handle(mux, "leave_room", c.handleLeaveRoom)
	wsrouter.Handle(mux, "end_room", c.handleEndRoom)

	// player
	wsrouter.Handle(mux, "video_action", c.handleVideoAction)

	// chat
	wsrouter.Handle(mux, "send_message", c.handleSendMessage)
	wsrouter.Handle(mux, "delete_message", c.handleDeleteMessage)

	return mux
}
