package room

type CreateRoomParams struct {
	RoomId     string
	Name       string
	Visibility string
	HostId     string
	CreatedAt  int64
}

type SetMemberParams struct {
	RoomId    string
	MemberId  string
	Name      string
	AvatarUrl string
	Status    string
	JoinedAt  int64
}

type UpdateMemberStatusParams struct {
	RoomId   string
	MemberId string
	Status   string
}

type SetPlayerParams struct {
	RoomId string
	Player Player
}

type AddMessageParams struct {
	RoomId  string
	Message Message
	// Limit bounds the stored history; the oldest messages are evicted first.
	Limit int
}
