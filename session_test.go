package dartscore

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-dartscore/board"
	"github.com/swdee/go-dartscore/geometry"
)

// scriptedDetector returns detections from a function of the call number
type scriptedDetector struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([]Detection, error)
}

func (d *scriptedDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	d.mu.Lock()
	d.calls++
	n := d.calls
	d.mu.Unlock()
	return d.fn(n)
}

func (d *scriptedDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func fixed(dets ...Detection) *scriptedDetector {
	return &scriptedDetector{fn: func(int) ([]Detection, error) { return dets, nil }}
}

// boxAt returns a small detection box centered on p
func boxAt(p geometry.Point) geometry.Rect {
	return geometry.NewRect(p.X-0.01, p.Y-0.01, 0.02, 0.02)
}

// marker returns a calibration detection placed on the canonical anchor so
// the image to board-plane homography is the identity
func marker(n int) Detection {
	return Detection{
		Label:      "calib_" + string(rune('0'+n)),
		Box:        boxAt(board.Anchor(n - 1)),
		Confidence: 0.9,
	}
}

func markers(n ...int) []Detection {
	out := make([]Detection, 0, len(n))
	for _, m := range n {
		out = append(out, marker(m))
	}
	return out
}

// dartAt returns a dart detection at radius r and screen angle theta
func dartAt(r, theta, conf float64) Detection {
	rad := theta * math.Pi / 180
	p := geometry.Pt(0.5+r*math.Cos(rad), 0.5+r*math.Sin(rad))
	return Detection{Label: DartLabel, ClassID: 4, Box: boxAt(p), Confidence: conf}
}

var (
	// treble 20 straight up from the bull
	t20 = dartAt(0.227, -90, 0.8)
	// treble 15 at the lower right
	t15 = dartAt(0.227, 36, 0.8)
	// single 6 to the right of the bull
	s6 = dartAt(0.1, 0, 0.7)
)

var t0 = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func frameAt(d time.Duration) Frame {
	return Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), Time: t0.Add(d)}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.UpdateBuffer = 64
	return cfg
}

func TestSessionThrottleDropsFrame(t *testing.T) {

	det := &scriptedDetector{fn: func(call int) ([]Detection, error) {
		if call == 1 {
			return append(markers(1, 2), t20), nil
		}
		return append(markers(1, 2), s6), nil
	}}

	s := NewSession(testConfig(), det)
	ctx := context.Background()

	u := s.ProcessFrame(ctx, frameAt(0))
	assert.Equal(t, StateAwaitingSettle, u.State)
	assert.Equal(t, 1, s.TrackedDarts())

	u = s.ProcessFrame(ctx, frameAt(100*time.Millisecond))

	assert.True(t, u.Dropped)
	assert.Equal(t, StateDetectionThrottled, u.State)
	assert.Equal(t, 1, det.Calls())
	assert.Equal(t, 1, s.TrackedDarts())
	assert.Equal(t, StateAwaitingSettle, s.State())

	// dropped frames are not delivered
	assert.Len(t, s.Updates(), 1)
}

func TestSessionAwaitingSettleKeepsDarts(t *testing.T) {

	det := &scriptedDetector{fn: func(call int) ([]Detection, error) {
		if call == 1 {
			return append(markers(1), t20), nil
		}
		return append(markers(2, 3), s6), nil
	}}

	s := NewSession(testConfig(), det)
	ctx := context.Background()

	s.ProcessFrame(ctx, frameAt(0))
	u := s.ProcessFrame(ctx, frameAt(2*time.Second))

	assert.Equal(t, StateAwaitingSettle, u.State)
	assert.Equal(t, 2, s.TrackedDarts())
	assert.Empty(t, u.Text)
	assert.False(t, u.Finalized)
}

func TestSessionGameThrow(t *testing.T) {

	s := NewSession(testConfig(), fixed(append(markers(1, 2, 3, 4), t15)...))
	s.SetGameMode(301)

	u := s.ProcessFrame(context.Background(), frameAt(0))

	require.True(t, u.Finalized)
	assert.Equal(t, []string{"T15"}, u.Labels)
	assert.Equal(t, 45, u.Total)
	assert.Equal(t, StateCooldown, u.State)
	assert.Equal(t, 256, u.Remaining)
	assert.Equal(t, "Score: 256\nLast throw: T15 scored 45", u.Text)

	g := s.Game()
	assert.Equal(t, 256, g.Remaining)
	assert.Len(t, g.Throws, 1)
	assert.Equal(t, 0, s.TrackedDarts())

	require.Len(t, u.Darts, 1)
	assert.InDelta(t, t15.Center().X, u.Darts[0].Board.X, 1e-6)
	assert.InDelta(t, t15.Center().Y, u.Darts[0].Board.Y, 1e-6)
}

func TestSessionScoresTopDartsOnly(t *testing.T) {

	cfg := testConfig()
	cfg.MaxDarts = 2

	low := dartAt(0.1, 180, 0.3)    // S11, least confident
	floor := dartAt(0.227, 0, 0.15) // below the confidence floor

	s := NewSession(cfg, fixed(append(markers(1, 2, 3, 4), low, t20, s6, floor)...))

	u := s.ProcessFrame(context.Background(), frameAt(0))

	require.True(t, u.Finalized)
	assert.Equal(t, []string{"T20", "S6"}, u.Labels)
	assert.Equal(t, 66, u.Total)
	assert.Equal(t, "Score: 66 (T20, S6)", u.Text)
	assert.Equal(t, StateIdle, u.State)
}

func TestSessionBust(t *testing.T) {

	s := NewSession(testConfig(), fixed(append(markers(1, 2, 3, 4), t20)...))
	s.SetGameMode(301)
	s.game.Remaining = 40

	u := s.ProcessFrame(context.Background(), frameAt(0))

	assert.True(t, u.Bust)
	assert.Contains(t, u.Text, "Bust")
	assert.Equal(t, 40, s.Game().Remaining)
	assert.Equal(t, 0, s.TrackedDarts())
	assert.Equal(t, StateCooldown, u.State)
}

func TestSessionCompletion(t *testing.T) {

	s := NewSession(testConfig(), fixed(append(markers(1, 2, 3, 4), t20)...))
	s.SetGameMode(60)

	u := s.ProcessFrame(context.Background(), frameAt(0))

	assert.True(t, u.Completed)
	assert.Contains(t, u.Text, "Congratulations")
	assert.Equal(t, 0, s.Game().Remaining)
	assert.Equal(t, 60, s.Game().Target)
}

func TestSessionCooldown(t *testing.T) {

	det := fixed(append(markers(1, 2, 3, 4), t20)...)

	s := NewSession(testConfig(), det)
	s.SetGameMode(301)
	ctx := context.Background()

	first := s.ProcessFrame(ctx, frameAt(0))
	require.True(t, first.Finalized)

	u := s.ProcessFrame(ctx, frameAt(3*time.Second))
	assert.True(t, u.Dropped)
	assert.Equal(t, StateCooldown, u.State)
	assert.Equal(t, first.Text, u.Text)
	assert.Equal(t, 1, det.Calls())

	u = s.ProcessFrame(ctx, frameAt(7*time.Second))
	assert.False(t, u.Dropped)
	assert.True(t, u.Finalized)
	assert.Equal(t, 181, s.Game().Remaining)
}

func TestSessionHomographyFailurePreservesDarts(t *testing.T) {

	s := NewSession(testConfig(), fixed(append(markers(1, 2, 3), t20)...))
	s.SetGameMode(301)

	u := s.ProcessFrame(context.Background(), frameAt(0))

	assert.Equal(t, TextHomographyFailed, u.Text)
	assert.False(t, u.Finalized)
	assert.Equal(t, 1, s.TrackedDarts())
	assert.Equal(t, 301, s.Game().Remaining)
	assert.Empty(t, s.Game().Throws)
}

func TestSessionUsesCachedCalibration(t *testing.T) {

	det := &scriptedDetector{fn: func(call int) ([]Detection, error) {
		if call == 1 {
			return append(markers(1, 2, 3, 4), t20), nil
		}
		return append(markers(1, 2, 3), t15), nil
	}}

	s := NewSession(testConfig(), det)
	s.SetGameMode(301)
	ctx := context.Background()

	s.ProcessFrame(ctx, frameAt(0))
	u := s.ProcessFrame(ctx, frameAt(8*time.Second))

	require.True(t, u.Finalized)
	assert.Equal(t, []string{"T15"}, u.Labels)
	assert.Equal(t, 196, s.Game().Remaining)
}

func TestSessionNoDartsDoesNotFinalize(t *testing.T) {

	s := NewSession(testConfig(), fixed(markers(1, 2, 3, 4)...))
	s.SetGameMode(301)

	u := s.ProcessFrame(context.Background(), frameAt(0))

	assert.False(t, u.Finalized)
	assert.Equal(t, StateIdle, u.State)
	assert.Empty(t, s.Game().Throws)
}

func TestSessionDetectionError(t *testing.T) {

	det := &scriptedDetector{fn: func(call int) ([]Detection, error) {
		if call == 1 {
			return append(markers(1), t20), nil
		}
		return nil, errors.New("inference server unavailable")
	}}

	s := NewSession(testConfig(), det)
	ctx := context.Background()

	s.ProcessFrame(ctx, frameAt(0))
	u := s.ProcessFrame(ctx, frameAt(time.Second))

	assert.Equal(t, TextDetectionFailed, u.Text)
	assert.Equal(t, StateAwaitingSettle, u.State)
	assert.Equal(t, 1, s.TrackedDarts())
}

func TestSessionUpdateChannelFull(t *testing.T) {

	cfg := testConfig()
	cfg.UpdateBuffer = 1

	s := NewSession(cfg, fixed(markers(1)...))
	ctx := context.Background()

	s.ProcessFrame(ctx, frameAt(0))
	s.ProcessFrame(ctx, frameAt(time.Second))
	s.ProcessFrame(ctx, frameAt(2*time.Second))

	assert.Len(t, s.Updates(), 1)
	assert.Equal(t, uint64(2), s.DroppedUpdates())
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []Update
}

func (p *recordingPublisher) Publish(u Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *recordingPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

func TestSessionPublishes(t *testing.T) {

	pub := &recordingPublisher{}
	s := NewSession(testConfig(), fixed(append(markers(1, 2, 3, 4), t20)...), WithPublisher(pub))

	u := s.ProcessFrame(context.Background(), frameAt(0))

	require.Equal(t, 1, pub.Len())
	assert.Equal(t, u.Text, pub.updates[0].Text)
	assert.Equal(t, s.ID(), pub.updates[0].SessionID)
}

type stubLocator struct {
	box geometry.Rect
	ok  bool
}

func (l stubLocator) LocateBoard(ctx context.Context, img image.Image) (geometry.Rect, bool, error) {
	return l.box, l.ok, nil
}

type sizeCropper struct {
	calls int
}

func (c *sizeCropper) Crop(img image.Image, box geometry.Rect) image.Image {
	c.calls++
	return image.NewRGBA(image.Rect(0, 0, int(box.Width), int(box.Height)))
}

type sizeDetector struct {
	bounds image.Rectangle
}

func (d *sizeDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	d.bounds = img.Bounds()
	return nil, nil
}

func TestSessionCropsToBoard(t *testing.T) {

	det := &sizeDetector{}
	crop := &sizeCropper{}

	s := NewSession(testConfig(), det,
		WithBoardLocator(stubLocator{box: geometry.NewRect(2, 2, 4, 4), ok: true}),
		WithCropper(crop),
	)

	s.ProcessFrame(context.Background(), frameAt(0))

	assert.Equal(t, 1, crop.calls)
	assert.Equal(t, 4, det.bounds.Dx())

	// no board found falls back to the full frame
	s2 := NewSession(testConfig(), det,
		WithBoardLocator(stubLocator{}),
		WithCropper(crop),
	)

	s2.ProcessFrame(context.Background(), frameAt(0))

	assert.Equal(t, 1, crop.calls)
	assert.Equal(t, 8, det.bounds.Dx())
}

func waitUpdate(t *testing.T, s *Session) Update {
	t.Helper()

	select {
	case u := <-s.Updates():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}

	return Update{}
}

func TestSessionStartStopRestart(t *testing.T) {

	s := NewSession(testConfig(), fixed(append(markers(1, 2, 3, 4), t15)...))
	s.SetGameMode(301)

	frames := make(chan Frame)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, frames))
	assert.ErrorIs(t, s.Start(ctx, frames), ErrRunning)
	assert.True(t, s.Running())

	frames <- frameAt(0)

	u := waitUpdate(t, s)
	assert.True(t, u.Finalized)
	assert.Equal(t, 256, s.Game().Remaining)

	id := s.ID()
	s.Stop()

	assert.False(t, s.Running())
	assert.Equal(t, 301, s.Game().Remaining)
	assert.Empty(t, s.Game().Throws)
	assert.Equal(t, 301, s.Game().Target)
	assert.NotEqual(t, id, s.ID())

	require.NoError(t, s.Restart(ctx))
	assert.True(t, s.Running())

	// the cooldown was discarded by Stop so the same frame time is processed
	frames <- frameAt(0)

	u = waitUpdate(t, s)
	assert.True(t, u.Finalized)

	s.Stop()
}

func TestSessionRestartWithoutSource(t *testing.T) {

	s := NewSession(nil, fixed())

	assert.ErrorIs(t, s.Restart(context.Background()), ErrNoFrameSource)
}

func TestSessionRecoversFromPanic(t *testing.T) {

	det := &scriptedDetector{fn: func(call int) ([]Detection, error) {
		if call == 1 {
			panic("corrupt tensor")
		}
		return markers(1), nil
	}}

	s := NewSession(testConfig(), det)
	frames := make(chan Frame)

	require.NoError(t, s.Start(context.Background(), frames))
	defer s.Stop()

	frames <- frameAt(0)
	frames <- frameAt(time.Second)

	u := waitUpdate(t, s)
	assert.Equal(t, StateAwaitingSettle, u.State)
	assert.Equal(t, 2, det.Calls())
}

func TestSessionWorkerEndsWhenSourceCloses(t *testing.T) {

	s := NewSession(testConfig(), fixed())
	frames := make(chan Frame)

	require.NoError(t, s.Start(context.Background(), frames))
	close(frames)

	assert.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 10*time.Millisecond)

	s.Stop()
}

func TestStateString(t *testing.T) {

	assert.Equal(t, "cooldown", StateCooldown.String())
	assert.Equal(t, "awaiting_settle", StateAwaitingSettle.String())

	text, err := StateDetectionThrottled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "detection_throttled", string(text))
}
