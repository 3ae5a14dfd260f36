package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/truthvision/truthvision/internal/verdict"
)

const maxStderrBytes = 4096

// FFmpegDecoder decodes videos by piping raw RGB frames out of an ffmpeg
// subprocess. Stream metadata comes from ffprobe.
type FFmpegDecoder struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegDecoder returns a decoder using the given binaries, defaulting to
// ffmpeg and ffprobe on PATH.
func NewFFmpegDecoder(ffmpegPath, ffprobePath string) *FFmpegDecoder {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegDecoder{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// CheckAvailable reports whether both binaries can be found.
func (d *FFmpegDecoder) CheckAvailable() error {
	for _, bin := range []string{d.FFmpegPath, d.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

// Open probes the file and starts decoding it.
func (d *FFmpegDecoder) Open(ctx context.Context, path string) (Stream, error) {
	info, err := d.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.FFmpegPath,
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	stderr := &limitedBuffer{max: maxStderrBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, unavailable(d.FFmpegPath, err)
	}

	return &ffmpegStream{
		info:   info,
		cmd:    cmd,
		out:    bufio.NewReaderSize(stdout, 1<<20),
		stderr: stderr,
		buf:    make([]byte, info.Width*info.Height*3),
	}, nil
}

// unavailable reports a binary that could not be started. That is a
// deployment fault, not a bad upload.
func unavailable(bin string, err error) error {
	return verdict.E(verdict.Configuration, bin+" could not be started", err)
}

type ffprobeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}

func (d *FFmpegDecoder) probe(ctx context.Context, path string) (StreamInfo, error) {
	cmd := exec.CommandContext(ctx, d.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate,nb_frames",
		"-of", "json",
		path,
	)
	var stderr limitedBuffer
	stderr.max = maxStderrBytes
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exit *exec.ExitError
		if !errors.As(err, &exit) {
			return StreamInfo{}, unavailable(d.FFprobePath, err)
		}
		return StreamInfo{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (StreamInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return StreamInfo{}, errors.New("no video stream found")
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}

	fps := parseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(s.RFrameRate)
	}
	frames, _ := strconv.ParseInt(strings.TrimSpace(s.NbFrames), 10, 64)

	return StreamInfo{
		Width:      s.Width,
		Height:     s.Height,
		FPS:        fps,
		FrameCount: max(frames, 0),
	}, nil
}

// parseRate reads ffprobe rationals such as "30000/1001" or plain numbers.
func parseRate(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	num, den, ok := strings.Cut(v, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	dn, err := strconv.ParseFloat(den, 64)
	if err != nil || dn == 0 {
		return 0
	}
	return n / dn
}

type ffmpegStream struct {
	info   StreamInfo
	cmd    *exec.Cmd
	out    *bufio.Reader
	stderr *limitedBuffer
	buf    []byte
	have   bool
	done   bool
	waited bool
}

func (s *ffmpegStream) Info() StreamInfo {
	return s.info
}

func (s *ffmpegStream) Advance() error {
	if s.done {
		return io.EOF
	}
	_, err := io.ReadFull(s.out, s.buf)
	if err == nil {
		s.have = true
		return nil
	}
	s.have = false
	s.done = true
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read frame: %w", err)
	}
	// a short trailing frame ends the stream like a clean EOF
	s.waited = true
	if werr := s.cmd.Wait(); werr != nil {
		return fmt.Errorf("ffmpeg: %w: %s", werr, strings.TrimSpace(s.stderr.String()))
	}
	return io.EOF
}

func (s *ffmpegStream) Frame() (image.Image, error) {
	if !s.have {
		return nil, errors.New("no decoded frame")
	}
	w, h := s.info.Width, s.info.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	src := s.buf
	dst := img.Pix
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		dst[j+0] = src[i+0]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xff
	}
	return img, nil
}

func (s *ffmpegStream) Close() error {
	s.done = true
	s.have = false
	if s.waited {
		return nil
	}
	s.waited = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.Len(); room > 0 {
		if len(p) > room {
			b.Buffer.Write(p[:room])
		} else {
			b.Buffer.Write(p)
		}
	}
	return len(p), nil
}
