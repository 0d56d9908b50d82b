package controller

import (
	"errors"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/repository/catalog"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/validator"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

const (
	codeRoomNotFound        = "room_not_found"
	codeUnauthorized        = "unauthorized"
	codeValidationError     = "validation_error"
	codeMembersLimitReached = "members_limit_reached"
	codeNotFound            = "not_found"
	codeInternal            = "internal"
)

func errorCode(err error) string {
	var validationErrors validator.Errors
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return codeRoomNotFound
	case errors.Is(err, room.ErrPermissionDenied), errors.Is(err, room.ErrNotMember):
		return codeUnauthorized
	case errors.Is(err, room.ErrMembersLimitReached):
		return codeMembersLimitReached
	case errors.Is(err, room.ErrMessageNotFound),
		errors.Is(err, catalog.ErrMovieNotFound),
		errors.Is(err, catalog.ErrEpisodeNotFound):
		return codeNotFound
	case errors.Is(err, room.ErrInvalidParams),
		errors.Is(err, playback.ErrNoMedia),
		errors.Is(err, playback.ErrUnknownAction),
		errors.Is(err, wsrouter.ErrInvalidPayload),
		errors.Is(err, wsrouter.ErrUnknownMessageType),
		errors.As(err, &validationErrors):
		return codeValidationError
	default:
		return codeInternal
	}
}

func newErrorOutput(err error) ErrorOutput {
	code := errorCode(err)

	var message string
	switch code {
	case codeRoomNotFound:
		message = "room not found"
	case codeUnauthorized:
		message = "not allowed"
	case codeMembersLimitReached:
		message = "room is full"
	case codeInternal:
		message = "internal error"
	default:
		message = err.Error()
	}

	return ErrorOutput{Message: message, Code: code}
}
