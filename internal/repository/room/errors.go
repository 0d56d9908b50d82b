package room

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrMemberNotFound    = errors.New("member not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrMessageNotFound   = errors.New("message not found")
)
