package room

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/repository/room"
)

var roomIdRule = []validation.Rule{
	validation.Required,
	validation.Match(regexp.MustCompile("^[a-zA-Z0-9]{8}$")),
}

var memberIdRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, 64),
}

var memberNameRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, 32),
}

var avatarUrlRule = []validation.Rule{
	is.URL,
}

var roomNameRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, 64),
}

var visibilityRule = []validation.Rule{
	validation.Required,
	validation.In(room.VisibilityPublic, room.VisibilityPrivate),
}

var positionRule = []validation.Rule{
	validation.Min(0.0),
}

var actionRule = []validation.Rule{
	validation.Required,
	validation.In(
		playback.ActionPlay,
		playback.ActionPause,
		playback.ActionSeek,
		playback.ActionChangeMovie,
		playback.ActionChangeEpisode,
		playback.ActionSyncCurrentState,
	),
}

var messageIdRule = []validation.Rule{
	validation.Required,
	is.UUID,
}

var messageTextRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, 500),
}
