// Package client is a headless room participant. As a guest it keeps a local player in step
// with the room through a drift corrector; as host it answers sync requests with its player state.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sharetube/syncroom/internal/drift"
	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
)

var (
	ErrWaitingForHost = errors.New("waiting for host")
	ErrNotHost        = errors.New("not the room host")
	ErrRoomDestroyed  = errors.New("room destroyed")

	errSyncTimeout = errors.New("sync timeout")
)

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost/api/v1/ws.
	ServerURL string
	UserId    string
	Name      string
	Avatar    string
	Drift     drift.Config
	// TickInterval is how often drift is recomputed while no broadcast arrives.
	TickInterval time.Duration
	SyncTimeout  time.Duration
	SyncRetries  int
	// HeartbeatInterval is how often a host re-emits its state, 0 to disable.
	HeartbeatInterval time.Duration
}

func (cfg *Config) setDefaults() {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 5 * time.Second
	}
	if cfg.SyncRetries < 0 {
		cfg.SyncRetries = 0
	}
}

type waiter struct {
	types []string
	ch    chan inbound
}

type Follower struct {
	cfg       Config
	logger    *slog.Logger
	ws        *websocket.Conn
	writeMu   sync.Mutex
	player    drift.Player
	corrector *drift.Corrector
	chat      *ChatLog

	mu      sync.Mutex
	roomId  string
	isHost  bool
	media   *playback.Media
	viewers []Viewer
	last    drift.Result
	waiters []*waiter

	done    chan struct{}
	doneErr error
}

// Dial connects to the server. Run must be started before any request is made.
func Dial(ctx context.Context, cfg Config, player drift.Player, logger *slog.Logger) (*Follower, error) {
	cfg.setDefaults()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.ServerURL, err)
	}

	return &Follower{
		cfg:       cfg,
		logger:    logger,
		ws:        ws,
		player:    player,
		corrector: drift.New(player, cfg.Drift),
		chat:      NewChatLog(),
		done:      make(chan struct{}),
	}, nil
}

// Run reads server frames and recomputes drift until ctx is done or the connection ends.
// It returns nil when ctx is done and ErrRoomDestroyed when the room is ended.
func (f *Follower) Run(ctx context.Context) error {
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", f.cfg.UserId))

	readErr := make(chan error, 1)
	go func() {
		err := f.readLoop(ctx)
		f.finish(err)
		readErr <- err
	}()

	tick := time.NewTicker(f.cfg.TickInterval)
	defer tick.Stop()

	var heartbeat <-chan time.Time
	if f.cfg.HeartbeatInterval > 0 {
		t := time.NewTicker(f.cfg.HeartbeatInterval)
		defer t.Stop()
		heartbeat = t.C
	}

	for {
		select {
		case <-ctx.Done():
			f.Close()
			<-readErr
			return nil
		case err := <-readErr:
			f.ws.Close()
			return err
		case <-tick.C:
			f.tick(ctx)
		case <-heartbeat:
			if f.IsHost() {
				if err := f.emitState(ctx); err != nil {
					f.logger.WarnContext(ctx, "failed to emit heartbeat", "error", err)
				}
			}
		}
	}
}

// Close sends a normal close frame and closes the connection.
func (f *Follower) Close() error {
	f.writeMu.Lock()
	f.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	f.writeMu.Unlock()

	return f.ws.Close()
}

func (f *Follower) readLoop(ctx context.Context) error {
	for {
		var in inbound
		if err := f.ws.ReadJSON(&in); err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		if err := f.handle(ctx, in); err != nil {
			if errors.Is(err, ErrRoomDestroyed) {
				return err
			}
			f.logger.WarnContext(ctx, "failed to handle message", "type", in.Type, "error", err)
		}
	}
}

func (f *Follower) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.doneErr = err
	close(f.done)
}

func (f *Follower) handle(ctx context.Context, in inbound) error {
	err := f.apply(ctx, in)
	f.notify(in)

	return err
}

func (f *Follower) apply(ctx context.Context, in inbound) error {
	switch in.Type {
	case "joined_success":
		var j joined
		if err := json.Unmarshal(in.Payload, &j); err != nil {
			return err
		}

		chat := make([]ChatEntry, 0, len(j.Messages))
		for _, m := range j.Messages {
			if m.Deleted {
				continue
			}
			chat = append(chat, m.entry())
		}
		f.chat.Load(chat)

		state := j.State.state()
		f.mu.Lock()
		rejoined := f.roomId == j.RoomId
		f.roomId = j.RoomId
		f.isHost = j.IsHost
		f.viewers = j.Viewers
		f.mu.Unlock()

		// A snapshot older than a broadcast already held for the same room is outdated.
		if !rejoined || !f.corrector.State().Newer(state) {
			f.corrector.Reset()
		}
		return f.applyState(ctx, state)

	case "video_action":
		var v videoAction
		if err := json.Unmarshal(in.Payload, &v); err != nil {
			return err
		}

		if playback.Action(v.Action) == playback.ActionRequestSync {
			if !f.IsHost() {
				return nil
			}
			return f.emitState(ctx)
		}

		state := v.state()

		// the host player is the source of the state
		if f.IsHost() {
			if err := f.corrector.Record(state); err != nil {
				if errors.Is(err, playback.ErrStaleEvent) {
					return nil
				}
				return err
			}
			f.setMedia(state.Media)
			return nil
		}
		return f.applyState(ctx, state)

	case "role_update":
		var r roleUpdate
		if err := json.Unmarshal(in.Payload, &r); err != nil {
			return err
		}

		f.mu.Lock()
		promoted := r.IsHost && !f.isHost
		f.isHost = r.IsHost
		f.mu.Unlock()

		if promoted {
			f.logger.InfoContext(ctx, "promoted to host")
			return f.emitState(ctx)
		}

	case "update_viewers":
		var v viewersUpdate
		if err := json.Unmarshal(in.Payload, &v); err != nil {
			return err
		}

		f.mu.Lock()
		f.viewers = v.Viewers
		f.mu.Unlock()

	case "receive_message":
		var m message
		if err := json.Unmarshal(in.Payload, &m); err != nil {
			return err
		}
		f.chat.Confirm(m.entry())

	case "message_deleted":
		var d messageDeleted
		if err := json.Unmarshal(in.Payload, &d); err != nil {
			return err
		}
		f.chat.Remove(d.MessageId)

	case "room_destroyed":
		var d roomDestroyed
		if err := json.Unmarshal(in.Payload, &d); err != nil {
			return err
		}
		f.logger.InfoContext(ctx, "room destroyed", "room_id", d.RoomId, "reason", d.Reason)

		f.mu.Lock()
		f.roomId = ""
		f.isHost = false
		f.mu.Unlock()

		return ErrRoomDestroyed

	case "error", "error_join":
		var e ServerError
		if err := json.Unmarshal(in.Payload, &e); err != nil {
			return err
		}
		f.logger.InfoContext(ctx, "request rejected", "code", e.Code, "message", e.Message)

	default:
		f.logger.DebugContext(ctx, "ignoring message", "type", in.Type)
	}

	return nil
}

func (f *Follower) applyState(ctx context.Context, state playback.State) error {
	res, err := f.corrector.Apply(state)
	if err != nil {
		if errors.Is(err, playback.ErrStaleEvent) {
			f.logger.DebugContext(ctx, "ignoring stale state", "epoch", state.Epoch, "seq", state.Seq)
			return nil
		}
		return err
	}

	f.setMedia(state.Media)
	f.record(ctx, res)

	return nil
}

func (f *Follower) setMedia(media *playback.Media) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.media = media
}

func (f *Follower) tick(ctx context.Context) {
	if f.IsHost() {
		return
	}

	res, err := f.corrector.Tick()
	if err != nil {
		f.logger.WarnContext(ctx, "failed to correct drift", "error", err)
		return
	}

	f.record(ctx, res)
}

func (f *Follower) record(ctx context.Context, res drift.Result) {
	f.mu.Lock()
	f.last = res
	f.mu.Unlock()

	if res.Corrected {
		f.logger.DebugContext(ctx, "drift corrected", "drift", res.Drift, "position", res.Projected)
	}
	if res.Behind {
		f.logger.InfoContext(ctx, "behind live", "drift", res.Drift)
	}
}

// emitState sends the local player state as the room state. It is a no-op until media is selected.
func (f *Follower) emitState(ctx context.Context) error {
	f.mu.Lock()
	media := f.media
	f.mu.Unlock()

	if media == nil {
		return nil
	}

	return f.send(ctx, "video_action", videoActionInput{
		Action:    playback.ActionSyncCurrentState,
		Time:      f.player.CurrentTime(),
		Slug:      media.MovieId,
		Episode:   media.EpisodeId,
		IsPlaying: !f.player.Paused(),
	})
}

func (f *Follower) send(ctx context.Context, typ string, payload any) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		f.ws.SetWriteDeadline(deadline)
	} else {
		f.ws.SetWriteDeadline(time.Time{})
	}

	if err := f.ws.WriteJSON(outbound{Type: typ, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", typ, err)
	}

	return nil
}

func (f *Follower) expect(types ...string) *waiter {
	w := &waiter{types: types, ch: make(chan inbound, 1)}

	f.mu.Lock()
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	return w
}

func (f *Follower) forget(w *waiter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waiters = slices.DeleteFunc(f.waiters, func(o *waiter) bool { return o == w })
}

func (f *Follower) notify(in inbound) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waiters = slices.DeleteFunc(f.waiters, func(w *waiter) bool {
		if !slices.Contains(w.types, in.Type) {
			return false
		}
		w.ch <- in
		return true
	})
}

// wait blocks until w receives a frame. Error frames are returned as *ServerError.
func (f *Follower) wait(ctx context.Context, w *waiter, timeout time.Duration) (inbound, error) {
	defer f.forget(w)

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case in := <-w.ch:
		if in.Type == "error" || in.Type == "error_join" {
			var e ServerError
			if err := json.Unmarshal(in.Payload, &e); err != nil {
				return in, err
			}
			return in, &e
		}
		return in, nil
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return inbound{}, f.doneErr
	case <-ctx.Done():
		return inbound{}, ctx.Err()
	case <-expired:
		return inbound{}, errSyncTimeout
	}
}

func (f *Follower) request(ctx context.Context, typ string, payload any, replies ...string) (inbound, error) {
	w := f.expect(append(replies, "error")...)
	if err := f.send(ctx, typ, payload); err != nil {
		f.forget(w)
		return inbound{}, err
	}

	return f.wait(ctx, w, 0)
}

// CreateRoom creates a room and returns its id. The creator still has to join it.
func (f *Follower) CreateRoom(ctx context.Context, name string, public bool) (string, error) {
	in, err := f.request(ctx, "create_room", createRoomInput{
		RoomName: name,
		IsPublic: public,
		UserId:   f.cfg.UserId,
	}, "room_created")
	if err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}

	var created roomCreated
	if err := json.Unmarshal(in.Payload, &created); err != nil {
		return "", fmt.Errorf("failed to decode room_created: %w", err)
	}

	return created.RoomId, nil
}

// Join enters roomId and aligns the local player with the room state.
func (f *Follower) Join(ctx context.Context, roomId string) error {
	w := f.expect("joined_success", "error_join")
	if err := f.send(ctx, "join_room", joinRoomInput{
		RoomId: roomId,
		UserId: f.cfg.UserId,
		UserInfo: userInfoInput{
			Name:   f.cfg.Name,
			Avatar: f.cfg.Avatar,
		},
	}); err != nil {
		f.forget(w)
		return err
	}

	if _, err := f.wait(ctx, w, 0); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

func (f *Follower) Leave(ctx context.Context) error {
	if err := f.send(ctx, "leave_room", struct{}{}); err != nil {
		return err
	}

	f.mu.Lock()
	f.roomId = ""
	f.isHost = false
	f.mu.Unlock()

	return nil
}

// EndRoom destroys the room. Run returns ErrRoomDestroyed once the server confirms.
func (f *Follower) EndRoom(ctx context.Context) error {
	if !f.IsHost() {
		return ErrNotHost
	}

	return f.send(ctx, "end_room", struct{}{})
}

// RequestSync asks the host for its current state and waits for it to arrive. Each attempt waits
// SyncTimeout; after SyncRetries further attempts it gives up with ErrWaitingForHost.
func (f *Follower) RequestSync(ctx context.Context) error {
	if f.IsHost() {
		return nil
	}

	for attempt := 0; attempt <= f.cfg.SyncRetries; attempt++ {
		w := f.expect("video_action")
		if err := f.send(ctx, "video_action", videoActionInput{Action: playback.ActionRequestSync}); err != nil {
			f.forget(w)
			return err
		}

		_, err := f.wait(ctx, w, f.cfg.SyncTimeout)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errSyncTimeout) {
			return err
		}

		f.logger.DebugContext(ctx, "sync request timed out", "attempt", attempt+1)
	}

	return ErrWaitingForHost
}

// Resume starts the local player. A guest cannot play ahead of a paused host: the player is
// paused again and Resume returns false.
func (f *Follower) Resume() (bool, error) {
	if err := f.player.Play(); err != nil {
		return false, fmt.Errorf("failed to play: %w", err)
	}
	if f.IsHost() {
		return true, nil
	}

	blocked, err := f.corrector.GuardPlay()
	if err != nil {
		return false, err
	}

	return !blocked, nil
}

func (f *Follower) ChangeMovie(ctx context.Context, slug, episode string) error {
	if !f.IsHost() {
		return ErrNotHost
	}

	f.player.Pause()
	f.player.Seek(0)

	return f.send(ctx, "video_action", videoActionInput{
		Action:  playback.ActionChangeMovie,
		Slug:    slug,
		Episode: episode,
	})
}

func (f *Follower) Play(ctx context.Context) error {
	if !f.IsHost() {
		return ErrNotHost
	}

	if err := f.player.Play(); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return f.send(ctx, "video_action", videoActionInput{
		Action:    playback.ActionPlay,
		Time:      f.player.CurrentTime(),
		IsPlaying: true,
	})
}

func (f *Follower) Pause(ctx context.Context) error {
	if !f.IsHost() {
		return ErrNotHost
	}

	if err := f.player.Pause(); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	return f.send(ctx, "video_action", videoActionInput{
		Action: playback.ActionPause,
		Time:   f.player.CurrentTime(),
	})
}

func (f *Follower) Seek(ctx context.Context, position float64) error {
	if !f.IsHost() {
		return ErrNotHost
	}

	if err := f.player.Seek(position); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return f.send(ctx, "video_action", videoActionInput{
		Action:    playback.ActionSeek,
		Time:      f.player.CurrentTime(),
		IsPlaying: !f.player.Paused(),
	})
}

// SendMessage shows text in the local chat at once and sends it. The returned id identifies
// the tentative entry until the server echo replaces it.
func (f *Follower) SendMessage(ctx context.Context, text string) (string, error) {
	id := uuid.NewString()
	f.chat.AddTentative(ChatEntry{
		Id:           id,
		AuthorId:     f.cfg.UserId,
		AuthorName:   f.cfg.Name,
		AuthorIsHost: f.IsHost(),
		Text:         text,
		CreatedAt:    time.Now(),
	})

	if err := f.send(ctx, "send_message", sendMessageInput{Id: id, Text: text}); err != nil {
		f.chat.Remove(id)
		return "", err
	}

	return id, nil
}

func (f *Follower) DeleteMessage(ctx context.Context, id string) error {
	return f.send(ctx, "delete_message", deleteMessageInput{MessageId: id})
}

func (f *Follower) RoomId() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.roomId
}

func (f *Follower) IsHost() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.isHost
}

func (f *Follower) Viewers() []Viewer {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.viewers)
}

// State returns the last authoritative state applied to the local player.
func (f *Follower) State() playback.State {
	return f.corrector.State()
}

// LastResult returns the outcome of the latest drift computation.
func (f *Follower) LastResult() drift.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.last
}

func (f *Follower) Chat() *ChatLog {
	return f.chat
}
