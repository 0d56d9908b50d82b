package room

import (
	"time"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/repository/catalog"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/repository/room"
)

const (
	VisibilityPublic  = room.VisibilityPublic
	VisibilityPrivate = room.VisibilityPrivate
)

type Conn = connection.Conn

type Room struct {
	Id         string
	Name       string
	Visibility string
	HostId     string
	CreatedAt  time.Time
}

type Member struct {
	Id        string
	Name      string
	AvatarUrl string
	IsHost    bool
	Status    string
	JoinedAt  time.Time
}

type Author struct {
	Id        string
	Name      string
	AvatarUrl string
	IsHost    bool
}

type Message struct {
	Id        string
	RoomId    string
	Author    Author
	Text      string
	CreatedAt time.Time
	Deleted   bool
}

type RoomSummary struct {
	Id          string
	Name        string
	Visibility  string
	MemberCount int
	Media       *playback.Media
	CreatedAt   time.Time
}

type ListRoomsFilter struct {
	PublicOnly bool
	Limit      int
}

// Snapshot is everything a participant needs to render the room.
type Snapshot struct {
	Room     Room
	State    playback.State
	Movie    *catalog.Movie
	Members  []Member
	Messages []Message
}
