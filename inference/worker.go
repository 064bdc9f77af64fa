// Package inference runs model inference in an external worker process that
// speaks length prefixed msgpack over its stdin and stdout.
package inference

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swdee/go-dartscore/postprocess"
)

var (
	// ErrStopped is returned by Infer once the worker has been stopped or
	// its stream has been abandoned after a timeout
	ErrStopped = errors.New("inference worker stopped")
	// ErrTimeout is returned when the worker does not answer in time
	ErrTimeout = errors.New("inference worker timeout")
)

// Config for spawning a worker process
type Config struct {
	// Command is the executable to run, eg: a shell script starting the
	// model runtime
	Command string
	Args    []string
	// Timeout bounds a single request/response round trip
	Timeout time.Duration
}

// Stats are the worker counters
type Stats struct {
	Requests     uint64
	Errors       uint64
	AvgLatencyMS float64
	LastSeenAt   time.Time
}

// Worker sends frames to an inference process one at a time and decodes the
// returned tensors.  It implements postprocess.Inferencer.
type Worker struct {
	cfg Config
	log *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader

	// mu serialises round trips so responses match their requests
	mu     sync.Mutex
	seq    uint64
	broken bool
	bufs   bufferPool

	stopped atomic.Bool
	wg      sync.WaitGroup

	requests  atomic.Uint64
	errors    atomic.Uint64
	completed atomic.Uint64
	latencyUS atomic.Uint64
	lastSeen  atomic.Int64
}

// NewWorker returns a Worker for the given process configuration, call
// Start to spawn it
func NewWorker(cfg Config, log *slog.Logger) (*Worker, error) {

	if cfg.Command == "" {
		return nil, errors.New("inference worker command is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Worker{cfg: cfg, log: log}, nil
}

// NewStreamWorker returns a Worker talking over already connected streams
// instead of a spawned process
func NewStreamWorker(in io.WriteCloser, out io.Reader, timeout time.Duration, log *slog.Logger) *Worker {

	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:    Config{Timeout: timeout},
		log:    log,
		stdin:  in,
		stdout: out,
	}
}

// Start spawns the worker process.  The process is killed when ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {

	w.cmd = exec.CommandContext(ctx, w.cfg.Command, w.cfg.Args...)

	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := w.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	stderr, err := w.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := w.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start inference worker: %w", err)
	}

	w.stdin = stdin
	w.stdout = bufio.NewReader(stdout)

	w.log.Info("inference worker started",
		"command", w.cfg.Command,
		"pid", w.cmd.Process.Pid,
	)

	w.wg.Add(1)
	go w.logStderr(stderr)

	return nil
}

// logStderr maps the worker's log lines onto slog levels
func (w *Worker) logStderr(r io.Reader) {
	defer w.wg.Done()

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			w.log.Error("inference worker", "output", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			w.log.Warn("inference worker", "output", line)
		default:
			w.log.Debug("inference worker", "output", line)
		}
	}
}

// Infer sends the image to the worker and returns its output tensor
func (w *Worker) Infer(ctx context.Context, img image.Image) (postprocess.Tensor, error) {

	if w.stopped.Load() {
		return postprocess.Tensor{}, ErrStopped
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.broken {
		return postprocess.Tensor{}, ErrStopped
	}

	w.seq++
	b := img.Bounds()
	pix, width, height := rgbBytes(w.bufs.get(b.Dx()*b.Dy()*3), img)

	req := Request{
		Frame:    pix,
		Width:    width,
		Height:   height,
		Channels: 3,
		Seq:      w.seq,
	}

	start := time.Now()
	done := make(chan result, 1)

	go func() {
		done <- w.roundTrip(&req)
	}()

	var res result

	select {
	case res = <-done:
	case <-time.After(w.cfg.Timeout):
		// the pending response would be read by the next request.  The round
		// trip goroutine and its frame buffer stay blocked until Stop closes
		// the stream.
		w.broken = true
		w.errors.Add(1)
		return postprocess.Tensor{}, fmt.Errorf("%w after %v", ErrTimeout, w.cfg.Timeout)
	case <-ctx.Done():
		// released by Stop as above
		w.broken = true
		w.errors.Add(1)
		return postprocess.Tensor{}, ctx.Err()
	}

	// the round trip is done with the frame buffer
	w.bufs.put(pix)
	w.requests.Add(1)

	if res.err != nil {
		w.errors.Add(1)
		return postprocess.Tensor{}, res.err
	}

	w.completed.Add(1)
	w.latencyUS.Add(uint64(time.Since(start).Microseconds()))
	w.lastSeen.Store(time.Now().UnixNano())

	resp := res.resp

	if resp.Error != "" {
		w.errors.Add(1)
		return postprocess.Tensor{}, fmt.Errorf("inference worker error: %s", resp.Error)
	}

	if resp.Seq != req.Seq {
		w.broken = true
		w.errors.Add(1)
		return postprocess.Tensor{}, fmt.Errorf("response sequence %d does not match request %d", resp.Seq, req.Seq)
	}

	t, err := postprocess.DecodeTensor(resp.Shape, postprocess.DType(resp.DType), resp.Data)

	if err != nil {
		w.errors.Add(1)
		return postprocess.Tensor{}, fmt.Errorf("failed to decode worker output: %w", err)
	}

	return t, nil
}

type result struct {
	resp Response
	err  error
}

func (w *Worker) roundTrip(req *Request) result {

	if err := WriteMessage(w.stdin, req); err != nil {
		return result{err: err}
	}

	var resp Response

	if err := ReadMessage(w.stdout, &resp); err != nil {
		if err == io.EOF {
			return result{err: fmt.Errorf("inference worker closed its output: %w", err)}
		}
		return result{err: err}
	}

	return result{resp: resp}
}

// Stats returns a snapshot of the worker counters
func (w *Worker) Stats() Stats {

	s := Stats{
		Requests: w.requests.Load(),
		Errors:   w.errors.Load(),
	}

	if n := w.completed.Load(); n > 0 {
		s.AvgLatencyMS = float64(w.latencyUS.Load()) / float64(n) / 1000
	}

	if ns := w.lastSeen.Load(); ns > 0 {
		s.LastSeenAt = time.Unix(0, ns)
	}

	return s
}

// Stop closes the worker's stdin so it can exit, then kills the process if
// it has not exited within two seconds
func (w *Worker) Stop() error {

	if w.stopped.Swap(true) {
		return nil
	}

	var err error

	if w.stdin != nil {
		err = w.stdin.Close()
	}

	if w.cmd == nil || w.cmd.Process == nil {
		return err
	}

	exited := make(chan error, 1)

	go func() {
		exited <- w.cmd.Wait()
	}()

	select {
	case werr := <-exited:
		if werr != nil {
			w.log.Debug("inference worker exited", "error", werr)
		}
	case <-time.After(2 * time.Second):
		w.log.Warn("inference worker did not exit, killing process")
		if kerr := w.cmd.Process.Kill(); kerr != nil {
			return fmt.Errorf("failed to kill inference worker: %w", kerr)
		}
		<-exited
	}

	w.wg.Wait()

	return err
}
