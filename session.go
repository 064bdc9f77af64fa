package dartscore

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/swdee/go-dartscore/boardplane"
	"github.com/swdee/go-dartscore/calibration"
	"github.com/swdee/go-dartscore/geometry"
	"github.com/swdee/go-dartscore/scoring"
	"github.com/swdee/go-dartscore/tracker"
)

// Status texts for frames that could not be scored
const (
	TextDetectionFailed  = "Error: detection failed"
	TextHomographyFailed = "Error: Homography failed"
)

var (
	// ErrRunning is returned when starting a session that is already running
	ErrRunning = errors.New("session already running")
	// ErrNoFrameSource is returned by Restart when the session was never
	// started with a frame source
	ErrNoFrameSource = errors.New("no frame source to restart with")
)

// State is the throw lifecycle state of a session
type State int

const (
	// StateIdle is waiting for the next frame to process
	StateIdle State = iota
	// StateDetectionThrottled means the frame arrived within the detection
	// interval of the previous processed frame and was dropped
	StateDetectionThrottled
	// StateAwaitingSettle means too few calibration markers are visible to
	// take a new reading, the darts tracked so far are kept
	StateAwaitingSettle
	// StateFinalizing is scoring the tracked darts of a throw
	StateFinalizing
	// StateCooldown means a throw was finalized within the throw delay and
	// frames are dropped while the player retrieves their darts
	StateCooldown
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetectionThrottled:
		return "detection_throttled"
	case StateAwaitingSettle:
		return "awaiting_settle"
	case StateFinalizing:
		return "finalizing"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Frame is a single camera image and the time it was captured
type Frame struct {
	Image image.Image
	Time  time.Time
}

// Update is the result of processing a frame
type Update struct {
	// Image is the annotated frame, or the raw frame without an Annotator
	Image image.Image `json:"-"`
	// Text is the score or status text for display
	Text string `json:"text"`
	// State is the lifecycle state after the frame
	State State `json:"state"`
	// Labels of the darts scored when a throw was finalized
	Labels []string `json:"labels,omitempty"`
	// Darts holds the scored darts when a throw was finalized
	Darts []ScoredDart `json:"-"`
	// Total is the value of a finalized throw
	Total int `json:"total"`
	// Bust is set when the finalized throw was a bust
	Bust bool `json:"bust"`
	// Completed is set when the finalized throw finished the game
	Completed bool `json:"completed"`
	// Finalized is set when a throw was scored on this frame
	Finalized bool `json:"finalized"`
	// Dropped is set when the frame was not processed due to the throttle
	// or cooldown
	Dropped bool `json:"-"`
	// Remaining is the game score left after the frame
	Remaining int `json:"remaining"`
	// SessionID identifies the session that produced the update
	SessionID string `json:"session_id"`
	// Time is the capture time of the frame
	Time time.Time `json:"time"`
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the structured logger, the default discards all output
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBoardLocator sets the collaborator used to find the board in a frame
// before detection
func WithBoardLocator(l BoardLocator) Option {
	return func(s *Session) {
		s.locator = l
	}
}

// WithCropper sets how the located board is cut out of the frame
func WithCropper(c Cropper) Option {
	return func(s *Session) {
		s.cropper = c
	}
}

// WithAnnotator sets the frame annotator
func WithAnnotator(a Annotator) Option {
	return func(s *Session) {
		s.annotator = a
	}
}

// WithPublisher adds a publisher that receives every processed update
func WithPublisher(p Publisher) Option {
	return func(s *Session) {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
}

// Session runs the throw lifecycle for one camera.  It owns the dart
// tracker, calibration cache and game state.  Frames are either fed
// through Start by a single worker goroutine or by calling ProcessFrame
// directly from one goroutine.
type Session struct {
	cfg        *Config
	detector   Detector
	locator    BoardLocator
	cropper    Cropper
	annotator  Annotator
	publishers []Publisher
	log        *slog.Logger

	// mu guards all fields below
	mu sync.Mutex
	// id is regenerated each time the session is stopped
	id            string
	tracker       *tracker.Tracker
	estimator     *calibration.Estimator
	game          *Game
	state         State
	lastText      string
	lastProcessed time.Time
	lastFinalize  time.Time

	// worker lifecycle
	frames  <-chan Frame
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	updates chan Update
	dropped atomic.Uint64
}

// NewSession returns a Session using the given config and detector.  A nil
// config uses DefaultConfig.
func NewSession(cfg *Config, det Detector, opts ...Option) *Session {

	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Validate only errors on settings unused by the session itself
	_ = cfg.Validate()

	s := &Session{
		cfg:       cfg,
		detector:  det,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		id:        uuid.NewString(),
		tracker:   tracker.NewTracker(cfg.IoUThreshold),
		estimator: calibration.NewEstimator(),
		game:      NewGame(cfg.GameMode),
		state:     StateIdle,
		updates:   make(chan Update, cfg.UpdateBuffer),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ID returns the current session identifier
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Updates returns the channel processed updates are delivered on.  Updates
// are dropped when the channel is full.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// DroppedUpdates returns the number of updates not delivered because the
// Updates channel was full
func (s *Session) DroppedUpdates() uint64 {
	return s.dropped.Load()
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Game returns a snapshot of the game state
func (s *Session) Game() Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.Snapshot()
}

// TrackedDarts returns the number of darts tracked for the current throw
func (s *Session) TrackedDarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Len()
}

// SetGameMode starts a new count down game from the given score
func (s *Session) SetGameMode(start int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.game = NewGame(start)
	s.lastText = ""
	s.log.Info("game mode set", "session", s.id, "target", s.game.Target)
}

// SetFreePlay switches to free play where throws are reported but not
// counted down
func (s *Session) SetFreePlay() {
	s.SetGameMode(0)
}

// Start launches the worker goroutine that processes frames until the
// frames channel is closed, ctx is cancelled or Stop is called
func (s *Session) Start(ctx context.Context, frames <-chan Frame) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}

	if frames == nil {
		return ErrNoFrameSource
	}

	ctx, cancel := context.WithCancel(ctx)

	s.frames = frames
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, frames, s.done)

	s.log.Info("session started", "session", s.id)

	return nil
}

// Stop halts the worker and discards the tracked darts, calibration cache,
// timestamps, last score text and throw history.  The game mode is kept
// and its score restored to the starting value.
func (s *Session) Stop() {

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel = nil
	s.done = nil
	s.running = false

	s.tracker.Clear()
	s.estimator.Reset()
	s.game.Reset()
	s.lastText = ""
	s.lastProcessed = time.Time{}
	s.lastFinalize = time.Time{}
	s.state = StateIdle

	s.log.Info("session stopped", "session", s.id)

	s.id = uuid.NewString()
}

// Restart starts the session again with its previous frame source, it does
// nothing if the session is already running
func (s *Session) Restart(ctx context.Context) error {

	s.mu.Lock()
	running, frames := s.running, s.frames
	s.mu.Unlock()

	if running {
		return nil
	}

	if frames == nil {
		return ErrNoFrameSource
	}

	return s.Start(ctx, frames)
}

// Running reports if the worker goroutine is active
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the worker loop
func (s *Session) run(ctx context.Context, frames <-chan Frame, done chan struct{}) {

	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case f, ok := <-frames:
			if !ok {
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				s.log.Info("frame source closed", "session", s.ID())
				return
			}

			s.safeProcess(ctx, f)
		}
	}
}

// safeProcess processes a frame and recovers from any panic so a single bad
// frame does not end the session
func (s *Session) safeProcess(ctx context.Context, f Frame) {

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("frame processing panic", "error", r,
				"stack", string(debug.Stack()))
		}
	}()

	s.ProcessFrame(ctx, f)
}

// ProcessFrame runs a frame through the throw lifecycle and returns the
// resulting update.  Processed frames are also delivered to Updates and all
// publishers, frames dropped by the throttle or cooldown are only returned.
func (s *Session) ProcessFrame(ctx context.Context, f Frame) Update {

	t := f.Time
	if t.IsZero() {
		t = time.Now()
	}

	if u, ok := s.admit(f.Image, t); !ok {
		return u
	}

	// detection runs without the lock held
	img := s.prepare(ctx, f.Image)

	dets, err := s.detect(ctx, img)

	u := s.record(img, t, dets, err)

	s.deliver(u)

	return u
}

// admit applies the cooldown and detection throttle, returning false with
// the drop update when the frame should not be processed
func (s *Session) admit(img image.Image, t time.Time) (Update, bool) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastFinalize.IsZero() && t.Sub(s.lastFinalize) < s.cfg.ThrowDelay() {
		s.state = StateCooldown
		u := s.newUpdate(img, t)
		u.Dropped = true
		return u, false
	}

	if !s.lastProcessed.IsZero() && t.Sub(s.lastProcessed) < s.cfg.DetectionInterval() {
		// report throttled but keep the state of the last processed frame
		u := s.newUpdate(img, t)
		u.State = StateDetectionThrottled
		u.Dropped = true
		return u, false
	}

	s.lastProcessed = t

	return Update{}, true
}

// record applies the detector result to the session
func (s *Session) record(img image.Image, t time.Time, dets []Detection, err error) Update {

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.log.Warn("detection failed", "session", s.id, "error", err)
		u := s.newUpdate(img, t)
		u.Text = TextDetectionFailed
		return u
	}

	return s.advance(img, t, dets)
}

// prepare locates and crops the board when the collaborators are set,
// falling back to the full frame
func (s *Session) prepare(ctx context.Context, img image.Image) image.Image {

	if s.locator == nil || s.cropper == nil || img == nil {
		return img
	}

	box, ok, err := s.locator.LocateBoard(ctx, img)

	if err != nil {
		s.log.Warn("board localization failed", "session", s.ID(), "error", err)
		return img
	}

	if !ok || box.Area() <= 0 {
		s.log.Debug("no board found, using full frame", "session", s.ID())
		return img
	}

	if cropped := s.cropper.Crop(img, box); cropped != nil {
		return cropped
	}

	return img
}

func (s *Session) detect(ctx context.Context, img image.Image) ([]Detection, error) {

	if s.detector == nil {
		return nil, errors.New("no detector configured")
	}

	return s.detector.Detect(ctx, img)
}

// advance merges the frame detections into the tracker and finalizes the
// throw when enough calibration markers are visible.  Must be called with
// mu held.
func (s *Session) advance(img image.Image, t time.Time, dets []Detection) Update {

	fd := splitDetections(dets, s.cfg.ConfidenceFloor)

	s.tracker.Merge(fd.darts)

	if fd.markers.Len() < s.cfg.MinLiveCalibration {
		s.state = StateAwaitingSettle
		s.log.Debug("awaiting calibration", "session", s.id, "markers", fd.markers.Len(),
			"tracked", s.tracker.Len())
		return s.newUpdate(s.annotate(img, fd.kept, nil), t)
	}

	if s.tracker.Len() == 0 {
		s.state = StateIdle
		return s.newUpdate(s.annotate(img, fd.kept, nil), t)
	}

	s.state = StateFinalizing

	ref := s.cfg.ReferenceSize()

	h, err := s.estimator.Estimate(fd.markers, ref)

	if err != nil {
		s.log.Warn("homography failed", "session", s.id, "markers", fd.markers.Len(),
			"error", err)
		u := s.newUpdate(s.annotate(img, fd.kept, nil), t)
		u.Text = TextHomographyFailed
		return u
	}

	darts := s.tracker.Top(s.cfg.MaxDarts)
	centers := make([]geometry.Point, len(darts))

	for i, d := range darts {
		centers[i] = d.Center()
	}

	boardPts, degenerate := boardplane.ProjectCounted(h, centers, ref)

	if degenerate > 0 {
		s.log.Warn("degenerate projection", "session", s.id, "points", degenerate)
	}

	scored := make([]ScoredDart, len(darts))
	labels := make([]string, len(darts))
	total := 0

	for i := range darts {
		sd := scoring.Classify(boardPts[i])
		scored[i] = ScoredDart{
			Dart:       sd,
			Image:      centers[i],
			Board:      boardPts[i],
			Confidence: darts[i].Confidence,
		}
		labels[i] = sd.Label
		total += sd.Value
	}

	outcome := s.game.Apply(labels, total)

	s.tracker.Clear()
	s.lastFinalize = t
	s.lastText = outcome.Text

	if s.game.FreePlay() {
		s.state = StateIdle
	} else {
		s.state = StateCooldown
	}

	s.log.Info("throw finalized", "session", s.id, "labels", labels, "total", total,
		"bust", outcome.Bust, "remaining", s.game.Remaining,
		"calibration", s.estimator.LastSource().String())

	u := s.newUpdate(s.annotate(img, fd.kept, scored), t)
	u.Labels = outcome.Labels
	u.Darts = scored
	u.Total = outcome.Total
	u.Bust = outcome.Bust
	u.Completed = outcome.Completed
	u.Finalized = true

	return u
}

func (s *Session) annotate(img image.Image, dets []Detection, darts []ScoredDart) image.Image {

	if s.annotator == nil || img == nil {
		return img
	}

	return s.annotator.Annotate(img, dets, darts)
}

// newUpdate returns an update carrying the current state and last score
// text.  Must be called with mu held.
func (s *Session) newUpdate(img image.Image, t time.Time) Update {
	return Update{
		Image:     img,
		Text:      s.lastText,
		State:     s.state,
		Remaining: s.game.Remaining,
		SessionID: s.id,
		Time:      t,
	}
}

// deliver sends the update to the Updates channel without blocking and
// to every publisher
func (s *Session) deliver(u Update) {

	select {
	case s.updates <- u:
	default:
		n := s.dropped.Add(1)
		s.log.Debug("update channel full, dropping update", "session", u.SessionID,
			"dropped", n)
	}

	for _, p := range s.publishers {
		p.Publish(u)
	}
}
