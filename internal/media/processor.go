package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/storage"
)

// VideoMediaUpdater persists processing results on the video record.
type VideoMediaUpdater interface {
	UpdateMedia(ctx context.Context, id string, update models.MediaUpdate) error
}

// Queue accepts processing jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Job describes one uploaded file waiting for processing. SourcePath is a local spool file
// the processor removes when done.
type Job struct {
	VideoID      string `json:"videoId"`
	SourcePath   string `json:"sourcePath"`
	SourceKey    string `json:"sourceKey"`
	HasThumbnail bool   `json:"hasThumbnail"`
}

// ProcessorConfig controls concurrency and the optional transcode step.
type ProcessorConfig struct {
	QueueSize       int
	Workers         int
	TranscodeHeight int
	Timeout         time.Duration
}

// Processor runs uploaded videos through probe, thumbnail and transcode on a worker pool.
type Processor struct {
	prober      *Prober
	thumbnailer *Thumbnailer
	transcoder  *Transcoder
	storage     storage.Storage
	updater     VideoMediaUpdater
	cfg         ProcessorConfig
	logger      *slog.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards closing jobs; senders hold it for reading.
	mu     sync.RWMutex
	closed bool
}

// ErrProcessorClosed is returned by Enqueue after Shutdown.
var ErrProcessorClosed = errors.New("media processor closed")

// NewProcessor starts cfg.Workers goroutines consuming a queue of cfg.QueueSize jobs.
func NewProcessor(prober *Prober, thumbnailer *Thumbnailer, transcoder *Transcoder, store storage.Storage, updater VideoMediaUpdater, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Processor{
		prober:      prober,
		thumbnailer: thumbnailer,
		transcoder:  transcoder,
		storage:     store,
		updater:     updater,
		cfg:         cfg,
		logger:      logger,
		jobs:        make(chan Job, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

// Enqueue schedules job without blocking past ctx.
func (p *Processor) Enqueue(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProcessorClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrProcessorClosed
	case p.jobs <- job:
		return nil
	}
}

// Shutdown stops accepting jobs and waits for the workers to exit. The job in progress on
// each worker finishes; jobs still queued are dropped and their spool files removed.
func (p *Processor) Shutdown(ctx context.Context) error {
	// Cancelling first releases senders blocked on a full queue before the close.
	p.cancel()
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		if p.ctx.Err() != nil {
			p.discard(job)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("media processing failed", "videoId", job.VideoID, "error", err)
		}
		cancel()
	}
}

func (p *Processor) discard(job Job) {
	p.logger.Warn("media job dropped at shutdown", "videoId", job.VideoID)
	if job.SourcePath == "" {
		return
	}
	if err := os.Remove(job.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("remove spooled upload", "path", job.SourcePath, "error", err)
	}
}

// Process runs every step for job synchronously. The spool file is removed afterwards. A
// failed probe aborts; thumbnail and transcode failures are logged and skipped.
func (p *Processor) Process(ctx context.Context, job Job) (err error) {
	if p.prober == nil || p.storage == nil || p.updater == nil {
		return errors.New("media processor missing dependencies")
	}

	ctx, span := logging.StartSpan(logging.WithFallbackLogger(ctx, p.logger), "media.process", "videoId", job.VideoID)
	logger := logging.FromContext(ctx)
	defer func() {
		if err != nil {
			span.Fail(err)
			return
		}
		span.End()
	}()

	if job.SourcePath != "" {
		defer func() {
			if rmErr := os.Remove(job.SourcePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("remove spooled upload", "path", job.SourcePath, "error", rmErr)
			}
		}()
	}

	info, err := p.prober.Probe(ctx, job.SourcePath)
	if err != nil {
		return fmt.Errorf("probe video %s: %w", job.VideoID, err)
	}

	update := models.MediaUpdate{
		Duration: int(math.Round(info.Duration)),
		Quality:  QualityLabel(info.Height),
	}

	if !job.HasThumbnail && p.thumbnailer != nil {
		if err := p.makeThumbnail(ctx, job, info, &update); err != nil {
			logger.Warn("thumbnail generation failed", "videoId", job.VideoID, "error", err)
		}
	}

	target := p.cfg.TranscodeHeight
	if target > 0 && info.Height > target && p.transcoder != nil {
		if err := p.transcode(ctx, job, target, &update); err != nil {
			logger.Warn("transcode failed", "videoId", job.VideoID, "height", target, "error", err)
		}
	}

	if err := p.updater.UpdateMedia(ctx, job.VideoID, update); err != nil {
		return fmt.Errorf("store media details for %s: %w", job.VideoID, err)
	}

	logger.Info("media processed",
		"videoId", job.VideoID,
		"duration", update.Duration,
		"quality", update.Quality,
		"thumbnail", update.ThumbnailKey != "",
		"transcoded", update.VideoKey != "",
	)
	return nil
}

func (p *Processor) makeThumbnail(ctx context.Context, job Job, info ProbeResult, update *models.MediaUpdate) error {
	out := scratchPath(job.SourcePath, job.VideoID, ".jpg")
	defer os.Remove(out)

	if err := p.thumbnailer.Extract(ctx, job.SourcePath, out, ThumbnailOffset(info.Duration)); err != nil {
		return err
	}

	obj, err := saveFile(ctx, p.storage, storage.ThumbnailKey(job.VideoID, ".jpg"), out, "image/jpeg")
	if err != nil {
		return err
	}
	update.Thumbnail = obj.URL
	update.ThumbnailKey = obj.Key
	return nil
}

func (p *Processor) transcode(ctx context.Context, job Job, height int, update *models.MediaUpdate) error {
	out := scratchPath(job.SourcePath, job.VideoID, fmt.Sprintf("-%dp.mp4", height))
	defer os.Remove(out)

	if err := p.transcoder.Transcode(ctx, job.SourcePath, out, height); err != nil {
		return err
	}

	obj, err := saveFile(ctx, p.storage, storage.TranscodedKey(job.VideoID, height), out, "video/mp4")
	if err != nil {
		return err
	}
	update.VideoURL = obj.URL
	update.VideoKey = obj.Key
	update.FileSize = obj.Size
	update.Quality = QualityLabel(height)

	if job.SourceKey != "" && job.SourceKey != obj.Key {
		if err := p.storage.Delete(ctx, job.SourceKey); err != nil {
			logging.FromContext(ctx).Warn("delete original upload", "videoId", job.VideoID, "key", job.SourceKey, "error", err)
		}
	}
	return nil
}

func scratchPath(source, id, suffix string) string {
	dir := filepath.Dir(source)
	if source == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, id+suffix)
}

func saveFile(ctx context.Context, store storage.Storage, key, path, contentType string) (storage.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return storage.Object{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return store.Save(ctx, key, f, contentType)
}
