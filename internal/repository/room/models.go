package room

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

type Room struct {
	Name       string `redis:"name"`
	Visibility string `redis:"visibility"`
	HostId     string `redis:"host_id"`
	CreatedAt  int64  `redis:"created_at"`
}

type Member struct {
	Name      string `redis:"name"`
	AvatarUrl string `redis:"avatar_url"`
	Status    string `redis:"status"`
	JoinedAt  int64  `redis:"joined_at"`
}

type Player struct {
	MovieId   string  `redis:"movie_id"`
	EpisodeId string  `redis:"episode_id"`
	Status    string  `redis:"status"`
	Position  float64 `redis:"position"`
	UpdatedAt int64   `redis:"updated_at"`
	Epoch     int     `redis:"epoch"`
	Seq       int     `redis:"seq"`
}

type Message struct {
	Id           string `redis:"id"`
	AuthorId     string `redis:"author_id"`
	AuthorName   string `redis:"author_name"`
	AuthorAvatar string `redis:"author_avatar"`
	AuthorIsHost bool   `redis:"author_is_host"`
	Text         string `redis:"text"`
	CreatedAt    int64  `redis:"created_at"`
	Deleted      bool   `redis:"deleted"`
}

// Summary is a consistent snapshot of a room for listings.
type Summary struct {
	Id          string
	Room        Room
	Player      Player
	MemberCount int
}
