package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"beatshop/internal/config"
	"beatshop/internal/logging"
	"beatshop/internal/services"
)

const (
	component = "preview"
	// ContentType is the MIME type of every clip.
	ContentType = "audio/mpeg"
	// bytesPerSample is fixed by the s16le intermediate format.
	bytesPerSample = 2
)

// Params are the encoder settings applied to a clip.
type Params struct {
	DurationSeconds int    `json:"duration_seconds"`
	SampleRate      int    `json:"sample_rate"`
	Channels        int    `json:"channels"`
	Bitrate         string `json:"bitrate"`
}

// Clip is an encoded preview held in memory.
type Clip struct {
	Data        []byte
	ContentType string
	// Duration is the length of audio actually encoded.
	Duration time.Duration
	// SourceDuration is the length of the decoded source.
	SourceDuration time.Duration
	// Truncated reports whether the source was longer than the clip.
	Truncated bool
	Params    Params
}

// Reader returns a reader positioned at the start of the clip.
func (c Clip) Reader() io.Reader {
	return bytes.NewReader(c.Data)
}

// Options configures an Extractor.
type Options struct {
	FFmpegBinary       string
	Defaults           Params
	MaxDurationSeconds int
	Timeout            time.Duration
	Runner             Runner
	Logger             *slog.Logger
}

// Extractor produces preview clips.
type Extractor struct {
	binary      string
	defaults    Params
	maxDuration int
	timeout     time.Duration
	runner      Runner
	logger      *slog.Logger
}

// New returns an Extractor. Zero-valued options fall back to 30 s, 44.1 kHz
// stereo, 128k, ffmpeg from PATH.
func New(opts Options) *Extractor {
	d := opts.Defaults
	if d.DurationSeconds <= 0 {
		d.DurationSeconds = 30
	}
	if d.SampleRate <= 0 {
		d.SampleRate = 44100
	}
	if d.Channels <= 0 {
		d.Channels = 2
	}
	if d.Bitrate == "" {
		d.Bitrate = "128k"
	}
	binary := opts.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	maxDuration := opts.MaxDurationSeconds
	if maxDuration < d.DurationSeconds {
		maxDuration = d.DurationSeconds
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Extractor{
		binary:      binary,
		defaults:    d,
		maxDuration: maxDuration,
		timeout:     opts.Timeout,
		runner:      runner,
		logger:      logging.NewComponentLogger(opts.Logger, component),
	}
}

// NewFromConfig builds an Extractor from the preview config section.
func NewFromConfig(cfg *config.Config, runner Runner, logger *slog.Logger) *Extractor {
	p := cfg.Preview
	return New(Options{
		FFmpegBinary: cfg.FFmpegBinary(),
		Defaults: Params{
			DurationSeconds: p.DurationSeconds,
			SampleRate:      p.SampleRate,
			Channels:        p.Channels,
			Bitrate:         p.Bitrate,
		},
		MaxDurationSeconds: p.MaxDurationSeconds,
		Timeout:            cfg.PreviewTimeout(),
		Runner:             runner,
		Logger:             logger,
	})
}

// Defaults returns the parameters used when a caller passes duration 0.
func (e *Extractor) Defaults() Params { return e.defaults }

// MaxDurationSeconds is the longest clip a caller may request.
func (e *Extractor) MaxDurationSeconds() int { return e.maxDuration }

// Extract decodes payload, keeps the first durationSec seconds and re-encodes
// them as MP3. durationSec 0 selects the default. A source shorter than the
// requested duration is encoded whole.
func (e *Extractor) Extract(ctx context.Context, payload []byte, durationSec int) (Clip, error) {
	if durationSec == 0 {
		durationSec = e.defaults.DurationSeconds
	}
	if durationSec < 0 || durationSec > e.maxDuration {
		return Clip{}, services.Wrap(services.ErrValidation, component, "extract",
			fmt.Sprintf("duration must be between 1 and %d seconds", e.maxDuration), nil)
	}
	if len(payload) == 0 {
		return Clip{}, services.Wrap(services.ErrUnsupportedAudio, component, "decode", "empty payload", nil)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	params := e.defaults
	params.DurationSeconds = durationSec
	start := time.Now()

	pcm, err := e.runner.Run(ctx, e.binary, decodeArgs(params), payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Clip{}, services.Wrap(services.ErrTimeout, component, "decode", "ffmpeg decode timed out", ctxErr)
		}
		if toolFailed(err) {
			return Clip{}, services.Wrap(services.ErrExternalTool, component, "decode", "ffmpeg could not be started", err)
		}
		return Clip{}, services.Wrap(services.ErrUnsupportedAudio, component, "decode", "ffmpeg could not decode payload", err)
	}

	frameBytes := params.Channels * bytesPerSample
	frames := len(pcm) / frameBytes
	if frames == 0 {
		return Clip{}, services.Wrap(services.ErrUnsupportedAudio, component, "decode", "decoded zero samples", nil)
	}
	// Drop a trailing partial frame, if any.
	pcm = pcm[:frames*frameBytes]

	wantFrames := durationSec * params.SampleRate
	truncated := false
	clipFrames := frames
	if frames > wantFrames {
		pcm = pcm[:wantFrames*frameBytes]
		clipFrames = wantFrames
		truncated = true
	}

	encoded, err := e.runner.Run(ctx, e.binary, encodeArgs(params), pcm)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Clip{}, services.Wrap(services.ErrTimeout, component, "encode", "ffmpeg encode timed out", ctxErr)
		}
		return Clip{}, services.Wrap(services.ErrExternalTool, component, "encode", "ffmpeg could not encode clip", err)
	}
	if len(encoded) == 0 {
		return Clip{}, services.Wrap(services.ErrExternalTool, component, "encode", "encoder produced no output", nil)
	}

	clip := Clip{
		Data:           encoded,
		ContentType:    ContentType,
		Duration:       framesToDuration(clipFrames, params.SampleRate),
		SourceDuration: framesToDuration(frames, params.SampleRate),
		Truncated:      truncated,
		Params:         params,
	}
	e.logger.Debug("preview extracted",
		logging.Duration("clip", clip.Duration),
		logging.Duration("source", clip.SourceDuration),
		logging.Bool("truncated", truncated),
		logging.Int("bytes", len(encoded)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return clip, nil
}

func framesToDuration(frames, sampleRate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

func decodeArgs(p Params) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"pipe:1",
	}
}

func encodeArgs(p Params) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"-i", "pipe:0",
		"-map_metadata", "-1",
		"-fflags", "+bitexact",
		"-flags:a", "+bitexact",
		"-id3v2_version", "0",
		"-write_xing", "0",
		"-c:a", "libmp3lame",
		"-b:a", p.Bitrate,
		"-f", "mp3",
		"pipe:1",
	}
}
