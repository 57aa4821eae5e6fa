package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/latestcomment/go-model-arena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedStreamer struct {
	chunks []Chunk
	gate   chan struct{}
	err    error

	mu   sync.Mutex
	reqs []StreamRequest
}

func (f *scriptedStreamer) Stream(ctx context.Context, req StreamRequest) (<-chan Chunk, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan Chunk)
	go func() {
		defer close(out)
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *scriptedStreamer) requests() []StreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StreamRequest(nil), f.reqs...)
}

func words(ws ...string) []Chunk {
	out := make([]Chunk, len(ws))
	for i, w := range ws {
		if i > 0 {
			w = " " + w
		}
		out[i] = Chunk{Delta: w}
	}
	return out
}

type recordingConn struct {
	mu     sync.Mutex
	frames []interface{}
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v)
	return nil
}

func (c *recordingConn) errors() []ErrorFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ErrorFrame
	for _, f := range c.frames {
		if e, ok := f.(ErrorFrame); ok {
			out = append(out, e)
		}
	}
	return out
}

func (c *recordingConn) snapshots() []snapshotFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []snapshotFrame
	for _, f := range c.frames {
		if s, ok := f.(snapshotFrame); ok {
			out = append(out, s)
		}
	}
	return out
}

type closableConn struct {
	recordingConn
	closed bool
}

func (c *closableConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *closableConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type scriptedReader struct {
	msgs [][]byte
	i    int
}

func (r *scriptedReader) ReadMessage() (int, []byte, error) {
	if r.i >= len(r.msgs) {
		return 0, nil, io.EOF
	}
	m := r.msgs[r.i]
	r.i++
	return 1, m, nil
}

func newTestService(left, right Streamer) *ArenaService {
	return NewArenaService(models.NewRoomManager(), map[Provider]Streamer{
		ProviderGemini:    left,
		ProviderFireworks: right,
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func promptingRoom(t *testing.T, svc *ArenaService, mode models.Mode) *models.Room {
	t.Helper()
	room := svc.CreateRoom()
	require.NoError(t, svc.SelectMode(room, mode))
	return room
}

func TestArenaService_CreateAndGetRoom(t *testing.T) {
	svc := newTestService(&scriptedStreamer{}, &scriptedStreamer{})
	room := svc.CreateRoom()

	got, err := svc.GetRoom(room.Session.ID.String())
	require.NoError(t, err)
	assert.Same(t, room, got)

	_, err = svc.GetRoom("not-a-uuid")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.NoError(t, svc.CloseRoom(room.Session.ID.String()))
	_, err = svc.GetRoom(room.Session.ID.String())
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, svc.CloseRoom(room.Session.ID.String()), ErrRoomNotFound)
}

func TestArenaService_SubmitStreamsBothPanels(t *testing.T) {
	gate := make(chan struct{})
	left := &scriptedStreamer{chunks: words("Left", "reply"), gate: gate}
	right := &scriptedStreamer{chunks: words("Right", "side", "reply"), gate: gate}
	svc := newTestService(left, right)
	room := promptingRoom(t, svc, models.ModeReasoning)

	require.NoError(t, svc.Submit(room, "Hello"))

	view := svc.Snapshot(room)
	assert.True(t, view.Session.Left.IsStreaming)
	assert.True(t, view.Session.Right.IsStreaming)
	assert.Equal(t, models.PhaseStreaming, view.Session.Phase)

	close(gate)
	svc.Wait()

	view = svc.Snapshot(room)
	assert.Equal(t, models.PhaseIdle, view.Session.Phase)
	require.Len(t, view.Session.Left.Messages, 2)
	assert.Equal(t, "Left reply", view.Session.Left.Messages[1].Text)
	assert.Equal(t, "Right side reply", view.Session.Right.Messages[1].Text)
	assert.EqualValues(t, 2, *view.Session.Left.Metrics.TotalTokens)
	assert.EqualValues(t, 3, *view.Session.Right.Metrics.TotalTokens)
	assert.NotNil(t, view.Session.Left.Metrics.TimeToFirstToken)
	assert.NotNil(t, view.Session.Right.Metrics.FinalLatencyMs)
	assert.True(t, view.CanEnd)

	lr := left.requests()
	require.Len(t, lr, 1)
	assert.Equal(t, ProviderGemini, lr[0].Provider)
	assert.Equal(t, "thinking", lr[0].Version)
	assert.Equal(t, "Hello", lr[0].Messages[0].Text)
	assert.Equal(t, "r1", right.requests()[0].Version)
}

func TestArenaService_EmptySubmitIsIgnored(t *testing.T) {
	left := &scriptedStreamer{}
	svc := newTestService(left, &scriptedStreamer{})
	room := promptingRoom(t, svc, models.ModeInstruct)

	require.NoError(t, svc.Submit(room, "   "))
	svc.Wait()

	view := svc.Snapshot(room)
	assert.Empty(t, view.Session.Left.Messages)
	assert.Empty(t, view.Session.Right.Messages)
	assert.Empty(t, left.requests())
}

func TestArenaService_BlocksPromptWhileStreaming(t *testing.T) {
	gate := make(chan struct{})
	svc := newTestService(
		&scriptedStreamer{chunks: words("a"), gate: gate},
		&scriptedStreamer{chunks: words("b"), gate: gate},
	)
	room := promptingRoom(t, svc, models.ModeInstruct)

	require.NoError(t, svc.Submit(room, "first"))
	assert.ErrorIs(t, svc.Submit(room, "second"), models.ErrStreaming)
	assert.ErrorIs(t, svc.EndConversation(room), models.ErrStreaming)

	close(gate)
	svc.Wait()
	assert.Len(t, svc.Snapshot(room).Session.Left.Messages, 2)
}

func TestArenaService_VotingFlow(t *testing.T) {
	svc := newTestService(&scriptedStreamer{chunks: words("x")}, &scriptedStreamer{chunks: words("y")})
	room := promptingRoom(t, svc, models.ModeInstruct)

	require.NoError(t, svc.Submit(room, "Hello"))
	svc.Wait()
	require.NoError(t, svc.EndConversation(room))
	assert.True(t, svc.Snapshot(room).CanVote)

	assert.ErrorIs(t, svc.DeclareWinner(room, "nobody"), models.ErrInvalidWinner)
	require.NoError(t, svc.DeclareWinner(room, models.WinnerTie))

	before := svc.Snapshot(room)
	assert.Equal(t, "It's a Tie! 🤝", before.Announcement)
	assert.Contains(t, before.Placeholder, "feedback")

	require.NoError(t, svc.Submit(room, "both fine"))
	svc.Wait()

	after := svc.Snapshot(room)
	assert.True(t, after.Session.FeedbackSubmitted)
	assert.Equal(t, "both fine", after.Session.FeedbackText)
	assert.Equal(t, before.Session.Left.Messages, after.Session.Left.Messages)

	assert.ErrorIs(t, svc.Submit(room, "again"), models.ErrFeedbackSubmitted)
	assert.ErrorIs(t, svc.SubmitFeedback(room, "again"), models.ErrFeedbackSubmitted)
}

func TestArenaService_StreamErrorShownInPanel(t *testing.T) {
	svc := newTestService(
		&scriptedStreamer{chunks: []Chunk{{Delta: "partial"}, {Err: errors.New("upstream reset")}}},
		&scriptedStreamer{err: errors.New("no route")},
	)
	room := promptingRoom(t, svc, models.ModeInstruct)

	require.NoError(t, svc.Submit(room, "Hello"))
	svc.Wait()

	view := svc.Snapshot(room)
	assert.Equal(t, models.PhaseIdle, view.Session.Phase)
	assert.Equal(t, "partial\nError: upstream reset", view.Session.Left.Messages[1].Text)
	assert.Equal(t, "Error: no route", view.Session.Right.Messages[1].Text)
	assert.EqualValues(t, 1, *view.Session.Left.Metrics.TotalTokens)
}

func TestArenaService_CloseRoomCancelsStreams(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	svc := newTestService(
		&scriptedStreamer{chunks: words("never"), gate: gate},
		&scriptedStreamer{chunks: words("never"), gate: gate},
	)
	room := promptingRoom(t, svc, models.ModeInstruct)
	require.NoError(t, svc.Submit(room, "Hello"))

	require.NoError(t, svc.CloseRoom(room.Session.ID.String()))

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("streams did not stop after room closed")
	}
	view := svc.Snapshot(room)
	assert.Nil(t, view.Session.Left.Metrics.FinalLatencyMs, "a cancelled reply records no latency")
	assert.Nil(t, view.Session.Right.Metrics.FinalLatencyMs)
}

func TestArenaService_ClosedRoomRejectsCommands(t *testing.T) {
	left := &scriptedStreamer{chunks: words("a")}
	right := &scriptedStreamer{chunks: words("b")}
	svc := newTestService(left, right)
	room := promptingRoom(t, svc, models.ModeInstruct)

	conn := &closableConn{}
	client := &models.Client{Conn: conn}
	require.NoError(t, svc.AddClient(room, client))

	require.NoError(t, svc.CloseRoom(room.Session.ID.String()))
	assert.True(t, conn.isClosed(), "closing the room disconnects its watchers")

	err := svc.Dispatch(room, Command{Action: "submit", Text: "Hello"})
	require.ErrorIs(t, err, ErrRoomNotFound)
	svc.Wait()

	assert.Empty(t, left.requests(), "no stream starts on a closed room")
	assert.Empty(t, right.requests())
	view := svc.Snapshot(room)
	assert.Equal(t, models.PhasePrompting, view.Session.Phase)
	assert.Empty(t, view.Session.Left.Messages)

	require.ErrorIs(t, svc.AddClient(room, &models.Client{Conn: &recordingConn{}}), ErrRoomNotFound)
	require.ErrorIs(t, svc.CloseRoom(room.Session.ID.String()), ErrRoomNotFound)
}

func TestArenaService_BroadcastsSnapshots(t *testing.T) {
	svc := newTestService(&scriptedStreamer{chunks: words("a", "b")}, &scriptedStreamer{chunks: words("c")})
	room := svc.CreateRoom()

	conn := &recordingConn{}
	client := &models.Client{Conn: conn}
	require.NoError(t, svc.AddClient(room, client))
	require.Len(t, conn.snapshots(), 1, "joining sends the current snapshot")

	require.NoError(t, svc.SelectMode(room, models.ModeInstruct))
	require.NoError(t, svc.Submit(room, "Hello"))
	svc.Wait()

	snaps := conn.snapshots()
	require.Greater(t, len(snaps), 3)
	last := snaps[len(snaps)-1]
	assert.Equal(t, "snapshot", last.Type)
	assert.Equal(t, models.PhaseIdle, last.Session.Phase)

	// ttft must never arrive after final latency within a panel
	for _, s := range snaps {
		if s.Session.Left.Metrics.FinalLatencyMs != nil {
			assert.NotNil(t, s.Session.Left.Metrics.TimeToFirstToken)
		}
	}

	svc.RemoveClient(room, client)
	n := len(conn.snapshots())
	svc.Broadcast(room)
	assert.Len(t, conn.snapshots(), n)
}

func TestArenaService_LoopMessages(t *testing.T) {
	svc := newTestService(&scriptedStreamer{}, &scriptedStreamer{})
	room := svc.CreateRoom()
	conn := &recordingConn{}
	client := &models.Client{Conn: conn}

	reader := &scriptedReader{msgs: [][]byte{
		[]byte(`{"action":"mode","mode":"instruct"}`),
		[]byte(`not json`),
		[]byte(`{"action":"end"}`),
		[]byte(`{"action":"dance"}`),
	}}
	svc.LoopMessages(room, reader, client)

	assert.Equal(t, models.ModeInstruct, svc.Snapshot(room).Session.Mode)
	errs := conn.errors()
	require.Len(t, errs, 3)
	assert.Equal(t, "invalid command", errs[0].Error)
	assert.Contains(t, errs[1].Error, models.ErrNothingToRate.Error())
	assert.Contains(t, errs[2].Error, ErrUnknownAction.Error())
}

func TestArenaService_Shutdown(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	svc := newTestService(
		&scriptedStreamer{chunks: words("x"), gate: gate},
		&scriptedStreamer{chunks: words("y"), gate: gate},
	)
	room := promptingRoom(t, svc, models.ModeInstruct)
	require.NoError(t, svc.Submit(room, "Hello"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
	assert.Empty(t, svc.Manager.Rooms)
	assert.ErrorIs(t, svc.EndConversation(room), ErrRoomNotFound)
}
