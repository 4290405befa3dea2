// Package histogram implements the Histogram Pipeline (spec §4.4):
// decoding video frames to RGB24 and aggregating a 4x4x4 quantised
// color cube per file. Grounded on the teacher's
// internal/videoprocessor.FFmpegWrapper ffmpeg-go usage pattern and on
// original_source/src/videohash.rs's aggregation/normalisation
// arithmetic.
package histogram

import (
	"fmt"
	"io"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	frameWidth  = 128
	frameHeight = 128
	frameBytes  = frameWidth * frameHeight * 3 // rgb24
)

// FrameSource is the "Iterator-as-decoder" contract of spec §9: a lazy,
// finite, single-pass pull-based cursor over decoded frames. NextFrame
// returns io.EOF once the stream is exhausted.
type FrameSource interface {
	NextFrame() ([]byte, error)
	Close() error
}

// ffmpegFrameSource pulls 128x128 rgb24 frames off an ffmpeg subprocess
// pipe. ffmpeg does the stream selection and packet discarding itself;
// malformed packets are ffmpeg's problem, not ours — a hard decode
// failure surfaces as a read error from the pipe, which ends the frame
// stream. CalculateHistogram keeps the frames read before it and reports
// an error (skipping the file) only when no frame was read at all
// (per-packet skip granularity isn't observable through the CLI pipe).
type ffmpegFrameSource struct {
	pr   *io.PipeReader
	done chan error
}

// openFrameSource starts an ffmpeg subprocess that decodes path's best
// video stream, scales it to 128x128 using fast-bilinear filtering, and
// streams raw rgb24 frames back over a pipe.
func openFrameSource(path string) (FrameSource, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		err := ffmpeg.
			Input(path, ffmpeg.KwArgs{"hide_banner": "", "nostats": "", "nostdin": ""}).
			Output("pipe:", ffmpeg.KwArgs{
				"f":       "rawvideo",
				"pix_fmt": "rgb24",
				"vf":      fmt.Sprintf("scale=%d:%d:flags=fast_bilinear", frameWidth, frameHeight),
				"vsync":   "0",
			}).
			WithOutput(pw).
			Silent(true).
			Run()
		pw.CloseWithError(err)
		done <- err
	}()

	return &ffmpegFrameSource{pr: pr, done: done}, nil
}

// NextFrame reads the next fixed-size rgb24 frame, or io.EOF once the
// stream ends cleanly. An incomplete trailing frame is treated as
// end-of-stream rather than an error (truncated final packet), matching
// the "skip malformed packets silently" contract.
func (s *ffmpegFrameSource) NextFrame() ([]byte, error) {
	buf := make([]byte, frameBytes)
	n, err := io.ReadFull(s.pr, buf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("reading decoded frame: %w", err)
	}
	return buf[:n], nil
}

func (s *ffmpegFrameSource) Close() error {
	_ = s.pr.Close()
	return <-s.done
}
