package frames

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ExtractOptions control video frame extraction.
type ExtractOptions struct {
	// MaxFrames caps the number of frames taken from one video. Zero means
	// every decoded frame.
	MaxFrames int
	// IFrameOnly decodes keyframes only.
	IFrameOnly bool
}

// Known-benign h264 decoder complaints. Trail camera clips are frequently
// truncated mid-GOP and ffmpeg recovers on its own; these lines do not mean
// the extraction failed.
var toleratedDecoderNoise = []string{
	"decode_slice_header error",
	"Frame num change",
	"error while decoding MB",
}

const diagnosticTailLines = 6

// stderrTail drains a decoder's stderr on its own goroutine, keeping a short
// tail of non-benign lines for diagnostics.
type stderrTail struct {
	mu      sync.Mutex
	lines   []string
	dropped int
	done    chan struct{}
}

func newStderrTail() *stderrTail {
	return &stderrTail{done: make(chan struct{})}
}

func (t *stderrTail) consume(r io.Reader) {
	defer close(t.done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || tolerated(line) {
			continue
		}
		t.mu.Lock()
		if len(t.lines) >= diagnosticTailLines {
			t.lines = t.lines[1:]
			t.dropped++
		}
		t.lines = append(t.lines, line)
		t.mu.Unlock()
	}
}

func (t *stderrTail) tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return "no diagnostic output"
	}
	s := strings.Join(t.lines, "; ")
	if t.dropped > 0 {
		s = fmt.Sprintf("… %s", s)
	}
	return s
}

func (t *stderrTail) noisy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines) > 0
}

func tolerated(line string) bool {
	for _, s := range toleratedDecoderNoise {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// CheckTools verifies the external decoder binaries are on PATH.
func CheckTools() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return errors.Wrap(err, "ffmpeg not found")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return errors.Wrap(err, "ffprobe not found")
	}
	return nil
}

// ffmpegArgs builds the decoder invocation: raw rgb24 frames on stdout, audio
// dropped. With MaxFrames set and a known duration the fps filter spreads the
// sampled frames uniformly across the clip; keyframe-only mode instead lets
// the decoder skip everything between keyframes.
func ffmpegArgs(path string, info VideoInfo, opts ExtractOptions) []string {
	args := []string{"-hide_banner", "-nostdin"}
	if opts.IFrameOnly {
		args = append(args, "-skip_frame", "nokey")
	}
	args = append(args, "-i", path, "-an")
	if !opts.IFrameOnly && opts.MaxFrames > 0 && info.Duration > 0 {
		args = append(args, "-vf", fmt.Sprintf("fps=%.6f", float64(opts.MaxFrames)/info.Duration))
	}
	return append(args, "-f", "rawvideo", "-pix_fmt", "rgb24", "-vsync", "vfr", "-")
}

// Extract probes a video and streams its decoded frames to emit in order,
// index starting at zero. It returns the number of frames delivered. The
// decoder is killed early once MaxFrames is reached or emit returns an
// error; a decoder crash after at least one good frame still fails the item,
// with the stderr tail attached.
func Extract(ctx context.Context, path string, opts ExtractOptions, emit func(index int, img *image.RGBA) error) (int, error) {
	info, err := ProbeVideo(ctx, path)
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(path, info, opts)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, errors.Wrap(err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, errors.Wrap(err, "stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return 0, errors.Wrap(err, "starting ffmpeg")
	}

	diag := newStderrTail()
	go diag.consume(stderr)

	frameSize := info.Width * info.Height * 3
	buf := make([]byte, frameSize)

	var (
		count   int
		stopped bool
		readErr error
		emitErr error
	)
	for {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			// A truncated trailing frame reads as ErrUnexpectedEOF;
			// the stream is over either way.
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				readErr = err
			}
			break
		}
		img := rgbImage(buf, info.Width, info.Height)
		if emitErr = emit(count, img); emitErr != nil {
			stopped = true
			break
		}
		count++
		if opts.MaxFrames > 0 && count >= opts.MaxFrames {
			stopped = true
			break
		}
	}
	if stopped || readErr != nil {
		_ = cmd.Process.Kill()
	}

	// Stderr must be fully drained before Wait closes the pipes.
	<-diag.done
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return count, errors.Wrap(ctx.Err(), "extraction canceled")
	case emitErr != nil:
		return count, emitErr
	case readErr != nil:
		return count, errors.Wrapf(readErr, "reading decoder output (%s)", diag.tail())
	case !stopped && waitErr != nil:
		return count, errors.Wrapf(waitErr, "ffmpeg failed (%s)", diag.tail())
	case count == 0:
		return 0, errors.Errorf("no frames decoded (%s)", diag.tail())
	}

	if diag.noisy() {
		log.WithFields(log.Fields{"path": path, "stderr": diag.tail()}).
			Warn("decoder reported errors but frames were recovered")
	}
	return count, nil
}

// rgbImage copies one rgb24 frame into an RGBA image. The source buffer is
// reused for the next frame, so the pixels must be copied out here.
func rgbImage(rgb []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	si := 0
	for di := 0; di < len(img.Pix); di += 4 {
		img.Pix[di] = rgb[si]
		img.Pix[di+1] = rgb[si+1]
		img.Pix[di+2] = rgb[si+2]
		img.Pix[di+3] = 0xff
		si += 3
	}
	return img
}
