package controller

import (
	"time"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/repository/catalog"
	"github.com/sharetube/syncroom/internal/service/room"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type ErrorOutput struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ViewerOutput struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	IsHost bool   `json:"isHost"`
	Status string `json:"status"`
}

func newViewersOutput(members []room.Member) []ViewerOutput {
	viewers := make([]ViewerOutput, 0, len(members))
	for _, m := range members {
		viewers = append(viewers, ViewerOutput{
			Id:     m.Id,
			Name:   m.Name,
			Avatar: m.AvatarUrl,
			IsHost: m.IsHost,
			Status: m.Status,
		})
	}

	return viewers
}

// VideoActionOutput carries the authoritative playback state: Time is the position at Timestamp (unix ms).
type VideoActionOutput struct {
	RoomId    string         `json:"roomId"`
	Action    string         `json:"action"`
	Time      float64        `json:"time"`
	Slug      string         `json:"slug,omitempty"`
	Episode   string         `json:"episode,omitempty"`
	Status    string         `json:"status"`
	IsPlaying bool           `json:"isPlaying"`
	Epoch     int            `json:"epoch"`
	Seq       int            `json:"seq"`
	Timestamp int64          `json:"timestamp"`
	Movie     *catalog.Movie `json:"movie,omitempty"`
}

func newVideoActionOutput(roomId string, action playback.Action, state playback.State, movie *catalog.Movie) VideoActionOutput {
	out := VideoActionOutput{
		RoomId:    roomId,
		Action:    string(action),
		Time:      state.Position,
		Status:    string(state.Status),
		IsPlaying: state.IsPlaying(),
		Epoch:     state.Epoch,
		Seq:       state.Seq,
		Timestamp: state.UpdatedAt.UnixMilli(),
		Movie:     movie,
	}
	if state.Media != nil {
		out.Slug = state.Media.MovieId
		out.Episode = state.Media.EpisodeId
	}

	return out
}

type UserOutput struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	IsHost bool   `json:"isHost"`
}

type MessageOutput struct {
	Id        string     `json:"id"`
	RoomId    string     `json:"roomId"`
	Text      string     `json:"text"`
	User      UserOutput `json:"user"`
	CreatedAt int64      `json:"createdAt"`
	Deleted   bool       `json:"deleted,omitempty"`
}

func newMessageOutput(m room.Message) MessageOutput {
	return MessageOutput{
		Id:     m.Id,
		RoomId: m.RoomId,
		Text:   m.Text,
		User: UserOutput{
			Id:     m.Author.Id,
			Name:   m.Author.Name,
			Avatar: m.Author.AvatarUrl,
			IsHost: m.Author.IsHost,
		},
		CreatedAt: m.CreatedAt.UnixMilli(),
		Deleted:   m.Deleted,
	}
}

func newMessagesOutput(messages []room.Message) []MessageOutput {
	out := make([]MessageOutput, 0, len(messages))
	for _, m := range messages {
		out = append(out, newMessageOutput(m))
	}

	return out
}

type JoinedOutput struct {
	RoomId   string            `json:"roomId"`
	RoomName string            `json:"roomName"`
	IsHost   bool              `json:"isHost"`
	Movie    *catalog.Movie    `json:"movie,omitempty"`
	State    VideoActionOutput `json:"state"`
	Viewers  []ViewerOutput    `json:"viewers"`
	Messages []MessageOutput   `json:"messages"`
}

func newJoinedOutput(resp *room.JoinRoomResponse) *Output {
	return &Output{
		Type: "joined_success",
		Payload: JoinedOutput{
			RoomId:   resp.Room.Id,
			RoomName: resp.Room.Name,
			IsHost:   resp.JoinedMember.IsHost,
			Movie:    resp.Movie,
			State:    newVideoActionOutput(resp.Room.Id, playback.ActionSyncCurrentState, resp.State, resp.Movie),
			Viewers:  newViewersOutput(resp.Members),
			Messages: newMessagesOutput(resp.Messages),
		},
	}
}

type RoomOutput struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	IsPublic    bool      `json:"isPublic"`
	MemberCount int       `json:"memberCount"`
	Slug        string    `json:"slug,omitempty"`
	Episode     string    `json:"episode,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newRoomOutput(s room.RoomSummary) RoomOutput {
	out := RoomOutput{
		Id:          s.Id,
		Name:        s.Name,
		IsPublic:    s.Visibility == room.VisibilityPublic,
		MemberCount: s.MemberCount,
		CreatedAt:   s.CreatedAt,
	}
	if s.Media != nil {
		out.Slug = s.Media.MovieId
		out.Episode = s.Media.EpisodeId
	}

	return out
}
