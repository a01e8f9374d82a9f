package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ProbeResult summarises the first video stream and container of a file.
type ProbeResult struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
	BitRate  int64
	Format   string
}

// Prober reads media metadata with ffprobe.
type Prober struct {
	tool
}

// NewProber constructs a Prober that shells out to binary.
func NewProber(binary string, timeout time.Duration) *Prober {
	return &Prober{tool: newTool(binary, "ffprobe", timeout)}
}

// Probe inspects path.
func (p *Prober) Probe(ctx context.Context, path string) (ProbeResult, error) {
	out, err := p.exec(ctx, "-v", "error", "-print_format", "json", "-show_format", "-show_streams", path)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (ProbeResult, error) {
	var payload struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
			FormatName string `json:"format_name"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	res := ProbeResult{Format: payload.Format.FormatName}
	res.Duration, _ = strconv.ParseFloat(payload.Format.Duration, 64)
	res.BitRate, _ = strconv.ParseInt(payload.Format.BitRate, 10, 64)

	found := false
	for _, s := range payload.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		res.Codec = s.CodecName
		res.Width = s.Width
		res.Height = s.Height
		if res.Duration == 0 {
			res.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		}
		break
	}
	if !found {
		return res, errors.New("ffprobe: no video stream")
	}
	return res, nil
}
