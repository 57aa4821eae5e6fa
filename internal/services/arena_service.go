package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/latestcomment/go-model-arena/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRoomNotFound  = errors.New("arena session not found")
	ErrUnknownAction = errors.New("unknown action")
)

// MessageReader is the read side of a websocket connection.
type MessageReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// Command is what a browser sends over the websocket.
type Command struct {
	Action string        `json:"action"`
	Text   string        `json:"text,omitempty"`
	Mode   models.Mode   `json:"mode,omitempty"`
	Winner models.Winner `json:"winner,omitempty"`
}

type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type ArenaService struct {
	Manager *models.RoomManager

	streamers map[Provider]Streamer
	log       *slog.Logger
	now       func() time.Time
	inflight  sync.WaitGroup
}

type Option func(*ArenaService)

func WithLogger(l *slog.Logger) Option {
	return func(s *ArenaService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *ArenaService) { s.now = now }
}

func NewArenaService(manager *models.RoomManager, streamers map[Provider]Streamer, opts ...Option) *ArenaService {
	s := &ArenaService{
		Manager:   manager,
		streamers: streamers,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ArenaService) StreamerFor(p Provider) (Streamer, error) {
	st, ok := s.streamers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return st, nil
}

func (s *ArenaService) CreateRoom() *models.Room {
	room := models.NewRoom(models.NewSession(uuid.New(), s.now()))

	s.Manager.Mu.Lock()
	s.Manager.Rooms[room.Session.ID] = room
	s.Manager.Mu.Unlock()

	metricSessionsCreated.Inc()
	metricRoomsActive.Inc()
	s.log.Info("arena session created", "session", room.Session.ID)
	return room
}

func (s *ArenaService) GetRoom(id string) (*models.Room, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	s.Manager.Mu.Lock()
	defer s.Manager.Mu.Unlock()
	room, ok := s.Manager.Rooms[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

// CloseRoom drops the room, cancels any reply still streaming into it and
// disconnects its watchers.
func (s *ArenaService) CloseRoom(id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	s.Manager.Mu.Lock()
	room, ok := s.Manager.Rooms[uid]
	delete(s.Manager.Rooms, uid)
	s.Manager.Mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}

	room.Close()
	metricRoomsActive.Dec()
	s.log.Info("arena session closed", "session", id)
	return nil
}

// Snapshot returns a copy of the room's current view.
func (s *ArenaService) Snapshot(room *models.Room) SessionView {
	room.Mu.Lock()
	defer room.Mu.Unlock()
	return NewSessionView(room.Session.Clone())
}

// update applies a transition under the room lock and pushes the result to
// every watcher before releasing it, so clients see snapshots in order.
func (s *ArenaService) update(room *models.Room, fn func(models.Session) (models.Session, error)) (models.Session, error) {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Closed() {
		return room.Session, fmt.Errorf("%w: %s", ErrRoomNotFound, room.Session.ID)
	}
	next, err := fn(room.Session)
	if err != nil {
		return room.Session, err
	}
	room.Session = next
	s.broadcastLocked(room)
	return next, nil
}

func (s *ArenaService) SelectMode(room *models.Room, mode models.Mode) error {
	next, err := s.update(room, func(cur models.Session) (models.Session, error) {
		return cur.SelectMode(mode)
	})
	if err != nil {
		return err
	}
	s.log.Info("model type selected", "session", next.ID, "mode", next.Mode)
	return nil
}

// Submit feeds the shared input box. Empty input is ignored. Before a winner
// is declared the text is a prompt for both panels, afterwards it is feedback.
func (s *ArenaService) Submit(room *models.Room, text string) error {
	var feedback bool
	next, err := s.update(room, func(cur models.Session) (models.Session, error) {
		feedback = cur.Winner != models.WinnerUnset
		return cur.Submit(text, s.now())
	})
	if errors.Is(err, models.ErrEmptyInput) {
		return nil
	}
	if err != nil {
		return err
	}
	if feedback {
		metricFeedback.Inc()
		s.log.Info("feedback submitted", "session", next.ID, "winner", next.Winner)
		return nil
	}

	metricPrompts.WithLabelValues(string(next.Mode)).Inc()
	s.log.Info("prompt submitted", "session", next.ID, "mode", next.Mode)
	s.startStreams(room, next)
	return nil
}

func (s *ArenaService) SubmitFeedback(room *models.Room, text string) error {
	next, err := s.update(room, func(cur models.Session) (models.Session, error) {
		return cur.SubmitFeedback(text)
	})
	if err != nil {
		return err
	}
	metricFeedback.Inc()
	s.log.Info("feedback submitted", "session", next.ID, "winner", next.Winner)
	return nil
}

func (s *ArenaService) EndConversation(room *models.Room) error {
	next, err := s.update(room, func(cur models.Session) (models.Session, error) {
		return cur.EndConversation()
	})
	if err != nil {
		return err
	}
	s.log.Info("conversation ended", "session", next.ID)
	return nil
}

func (s *ArenaService) DeclareWinner(room *models.Room, w models.Winner) error {
	next, err := s.update(room, func(cur models.Session) (models.Session, error) {
		return cur.DeclareWinner(w)
	})
	if err != nil {
		return err
	}
	metricVotes.WithLabelValues(string(next.Mode), string(next.Winner)).Inc()
	s.log.Info("winner declared", "session", next.ID, "winner", next.Winner)
	return nil
}

func (s *ArenaService) startStreams(room *models.Room, sess models.Session) {
	start := s.now()
	g, ctx := errgroup.WithContext(room.Context())
	for _, side := range []models.Side{models.SideLeft, models.SideRight} {
		req := StreamRequest{
			Provider: PanelProvider(side),
			Version:  PanelVersion(sess.Mode, side),
			Messages: sess.Panel(side).Messages,
		}
		g.Go(func() error {
			return s.runPanel(ctx, room, sess.ID, side, req, start)
		})
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		err := g.Wait()
		switch {
		case errors.Is(err, ErrRoomNotFound), errors.Is(err, context.Canceled):
			s.log.Debug("panel streams stopped", "session", sess.ID, "error", err)
			return
		case err != nil:
			s.log.Error("panel stream failed", "session", sess.ID, "error", err)
			return
		}
		s.log.Debug("both panels complete", "session", sess.ID)
	}()
}

// runPanel drains one streamer into one panel. Stream failures are shown in
// the panel; only a rejected state transition is returned.
func (s *ArenaService) runPanel(ctx context.Context, room *models.Room, id uuid.UUID, side models.Side, req StreamRequest, start time.Time) error {
	provider := string(req.Provider)
	fail := func(cause error, tokens int) error {
		metricStreamErrors.WithLabelValues(provider).Inc()
		s.log.Warn("stream error", "session", id, "side", side, "error", cause)
		_, err := s.update(room, func(cur models.Session) (models.Session, error) {
			return cur.FailPanel(side, cause, tokens, s.now().Sub(start), s.now())
		})
		return err
	}

	streamer, err := s.StreamerFor(req.Provider)
	if err != nil {
		return fail(err, 0)
	}
	chunks, err := streamer.Stream(ctx, req)
	if err != nil {
		return fail(err, 0)
	}

	tokens := 0
	for chunk := range chunks {
		if chunk.Err != nil {
			return fail(chunk.Err, tokens)
		}
		if tokens == 0 {
			ttft := s.now().Sub(start)
			metricTTFT.WithLabelValues(provider).Observe(float64(ttft.Milliseconds()))
			if _, err := s.update(room, func(cur models.Session) (models.Session, error) {
				return cur.FirstToken(side, ttft, s.now())
			}); err != nil {
				return err
			}
		}
		if _, err := s.update(room, func(cur models.Session) (models.Session, error) {
			return cur.AppendToken(side, chunk.Delta)
		}); err != nil {
			return err
		}
		tokens++
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	latency := s.now().Sub(start)
	metricLatency.WithLabelValues(provider).Observe(float64(latency.Milliseconds()))
	_, err = s.update(room, func(cur models.Session) (models.Session, error) {
		return cur.CompletePanel(side, tokens, latency)
	})
	return err
}

// Wait blocks until every in-flight reply has finished.
func (s *ArenaService) Wait() {
	s.inflight.Wait()
}

// AddClient registers a watcher and sends it the current snapshot. A closed
// room refuses new watchers.
func (s *ArenaService) AddClient(room *models.Room, c *models.Client) error {
	room.Mu.Lock()
	if room.Closed() {
		id := room.Session.ID
		room.Mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room.Clients[c.Id] = c
	view := NewSessionView(room.Session.Clone())
	room.Mu.Unlock()

	if err := c.Send(view.Frame()); err != nil {
		s.log.Warn("initial snapshot failed", "session", view.Session.ID, "client", c.Id, "error", err)
	}
	s.log.Debug("client joined", "session", view.Session.ID, "client", c.Id)
	return nil
}

func (s *ArenaService) RemoveClient(room *models.Room, c *models.Client) {
	room.Mu.Lock()
	delete(room.Clients, c.Id)
	id := room.Session.ID
	room.Mu.Unlock()
	s.log.Debug("client left", "session", id, "client", c.Id)
}

func (s *ArenaService) Broadcast(room *models.Room) {
	room.Mu.Lock()
	defer room.Mu.Unlock()
	s.broadcastLocked(room)
}

func (s *ArenaService) broadcastLocked(room *models.Room) {
	if len(room.Clients) == 0 {
		return
	}
	frame := NewSessionView(room.Session.Clone()).Frame()
	for _, client := range room.Clients {
		if err := client.Send(frame); err != nil {
			s.log.Debug("snapshot write failed", "client", client.Id, "error", err)
		}
	}
}

// Dispatch runs one browser command against the room.
func (s *ArenaService) Dispatch(room *models.Room, cmd Command) error {
	switch cmd.Action {
	case "mode":
		return s.SelectMode(room, cmd.Mode)
	case "submit":
		return s.Submit(room, cmd.Text)
	case "end":
		return s.EndConversation(room)
	case "winner":
		return s.DeclareWinner(room, cmd.Winner)
	case "feedback":
		return s.SubmitFeedback(room, cmd.Text)
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
}

// LoopMessages reads commands until the connection closes. Rejected commands
// are answered on the same connection only.
func (s *ArenaService) LoopMessages(room *models.Room, conn MessageReader, client *models.Client) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = client.Send(ErrorFrame{Type: "error", Error: "invalid command"})
			continue
		}
		if err := s.Dispatch(room, cmd); err != nil {
			_ = client.Send(ErrorFrame{Type: "error", Error: err.Error()})
		}
	}
}

// Shutdown closes every room, disconnecting its watchers, and waits for their
// streams to drain.
func (s *ArenaService) Shutdown(ctx context.Context) error {
	s.Manager.Mu.Lock()
	rooms := make([]*models.Room, 0, len(s.Manager.Rooms))
	for id, room := range s.Manager.Rooms {
		rooms = append(rooms, room)
		delete(s.Manager.Rooms, id)
	}
	s.Manager.Mu.Unlock()

	for _, room := range rooms {
		room.Close()
		metricRoomsActive.Dec()
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
