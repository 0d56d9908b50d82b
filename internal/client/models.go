package client

import (
	"encoding/json"
	"time"

	"github.com/sharetube/syncroom/internal/playback"
)

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomInput struct {
	RoomName string `json:"roomName"`
	IsPublic bool   `json:"isPublic"`
	UserId   string `json:"userId"`
}

type userInfoInput struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type joinRoomInput struct {
	RoomId   string        `json:"roomId"`
	UserId   string        `json:"userId"`
	UserInfo userInfoInput `json:"userInfo"`
}

type videoActionInput struct {
	Action    playback.Action `json:"action"`
	Time      float64         `json:"time"`
	Slug      string          `json:"slug,omitempty"`
	Episode   string          `json:"episode,omitempty"`
	IsPlaying bool            `json:"isPlaying"`
}

type sendMessageInput struct {
	Id   string `json:"id"`
	Text string `json:"text"`
}

type deleteMessageInput struct {
	MessageId string `json:"messageId"`
}

type videoAction struct {
	RoomId    string  `json:"roomId"`
	Action    string  `json:"action"`
	Time      float64 `json:"time"`
	Slug      string  `json:"slug"`
	Episode   string  `json:"episode"`
	Status    string  `json:"status"`
	IsPlaying bool    `json:"isPlaying"`
	Epoch     int     `json:"epoch"`
	Seq       int     `json:"seq"`
	Timestamp int64   `json:"timestamp"`
}

func (v videoAction) state() playback.State {
	s := playback.State{
		Status:    playback.Status(v.Status),
		Position:  v.Time,
		UpdatedAt: time.UnixMilli(v.Timestamp),
		Epoch:     v.Epoch,
		Seq:       v.Seq,
	}
	if v.Slug != "" {
		s.Media = &playback.Media{MovieId: v.Slug, EpisodeId: v.Episode}
	}

	return s
}

type Viewer struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	IsHost bool   `json:"isHost"`
	Status string `json:"status"`
}

type user struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

type message struct {
	Id        string `json:"id"`
	Text      string `json:"text"`
	User      user   `json:"user"`
	CreatedAt int64  `json:"createdAt"`
	Deleted   bool   `json:"deleted"`
}

func (m message) entry() ChatEntry {
	return ChatEntry{
		Id:           m.Id,
		AuthorId:     m.User.Id,
		AuthorName:   m.User.Name,
		AuthorIsHost: m.User.IsHost,
		Text:         m.Text,
		CreatedAt:    time.UnixMilli(m.CreatedAt),
	}
}

type joined struct {
	RoomId   string      `json:"roomId"`
	RoomName string      `json:"roomName"`
	IsHost   bool        `json:"isHost"`
	State    videoAction `json:"state"`
	Viewers  []Viewer    `json:"viewers"`
	Messages []message   `json:"messages"`
}

type roleUpdate struct {
	IsHost bool `json:"isHost"`
}

type viewersUpdate struct {
	Viewers []Viewer `json:"viewers"`
}

type messageDeleted struct {
	MessageId string `json:"messageId"`
}

type roomCreated struct {
	RoomId string `json:"roomId"`
}

type roomDestroyed struct {
	RoomId string `json:"roomId"`
	Reason string `json:"reason"`
}

// ServerError is an error frame sent by the server in reply to a request.
type ServerError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ServerError) Error() string {
	return e.Code + ": " + e.Message
}
