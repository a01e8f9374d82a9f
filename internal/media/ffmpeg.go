package media

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Thumbnail geometry.
const (
	ThumbnailWidth     = 640
	minThumbnailOffset = time.Second
)

// Thumbnailer grabs single frames with ffmpeg.
type Thumbnailer struct {
	tool
}

// NewThumbnailer constructs a Thumbnailer that shells out to binary.
func NewThumbnailer(binary string, timeout time.Duration) *Thumbnailer {
	return &Thumbnailer{tool: newTool(binary, "ffmpeg", timeout)}
}

// Extract writes one JPEG frame taken at offset at from input to output.
func (t *Thumbnailer) Extract(ctx context.Context, input, output string, at time.Duration) error {
	_, err := t.exec(ctx,
		"-y",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", ThumbnailWidth),
		"-q:v", "3",
		output,
	)
	if err != nil {
		return fmt.Errorf("extract thumbnail: %w", err)
	}
	return nil
}

// ThumbnailOffset picks the frame position: 10% into the video, at least one second, never
// past the end.
func ThumbnailOffset(durationSeconds float64) time.Duration {
	if durationSeconds <= 0 {
		return 0
	}
	total := time.Duration(durationSeconds * float64(time.Second))
	at := total / 10
	if at < minThumbnailOffset {
		at = minThumbnailOffset
	}
	if at >= total {
		return total / 2
	}
	return at
}

// Transcoder re-encodes videos to H.264/AAC MP4.
type Transcoder struct {
	tool
}

// NewTranscoder constructs a Transcoder that shells out to binary.
func NewTranscoder(binary string, timeout time.Duration) *Transcoder {
	return &Transcoder{tool: newTool(binary, "ffmpeg", timeout)}
}

// Transcode scales input to height and writes a web-friendly MP4 to output.
func (t *Transcoder) Transcode(ctx context.Context, input, output string, height int) error {
	if height <= 0 {
		return fmt.Errorf("transcode: invalid target height %d", height)
	}
	_, err := t.exec(ctx,
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		output,
	)
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	return nil
}

// QualityLabel names the rendition closest below height.
func QualityLabel(height int) string {
	switch {
	case height >= 2160:
		return "2160p"
	case height >= 1440:
		return "1440p"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	case height >= 360:
		return "360p"
	case height > 0:
		return "240p"
	default:
		return ""
	}
}
