package parsehub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/z-mio/parsehub/internal/history"
	"github.com/z-mio/parsehub/internal/slug"
	"github.com/z-mio/parsehub/internal/transfer"
)

// ProgressUnit says what a progress callback's numbers mean.
type ProgressUnit string

const (
	// ProgressBytes reports transferred/total bytes; used for single-item downloads.
	ProgressBytes ProgressUnit = "bytes"
	// ProgressCount reports completed/total items; used for multi-item downloads.
	// Only fully completed items are counted, and the value never decreases.
	ProgressCount ProgressUnit = "count"
)

// A ProgressFunc receives download progress. The final call for a unit, if
// any, reports current == total.
type ProgressFunc func(current, total int64, unit ProgressUnit)

// A HistoryRecorder persists completed downloads. Recording failures are
// logged, never fatal.
type HistoryRecorder interface {
	Record(ctx context.Context, rec history.Record) error
}

// A Downloader converts a ParseResult's MediaRefs into local MediaFiles.
// It is safe for concurrent use; each Download call gets its own directory.
type Downloader struct {
	cfg     DownloadConfig
	client  *http.Client
	history HistoryRecorder
	log     *zap.SugaredLogger
}

type DownloaderOption func(*Downloader)

// WithHistory makes the downloader record completed downloads.
func WithHistory(h HistoryRecorder) DownloaderOption {
	return func(d *Downloader) {
		d.history = h
	}
}

// NewDownloader builds a download engine from a config. A zero DownloadConfig
// selects the defaults.
func NewDownloader(cfg DownloadConfig, opts ...DownloaderOption) (*Downloader, error) {
	cfg = cfg.withDefaults()
	client, err := newHTTPClient(cfg.Proxy, cfg.AttemptTimeout)
	if err != nil {
		return nil, err
	}
	d := &Downloader{
		cfg:    cfg,
		client: client,
		log:    zap.S().Named("download"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// downloadOptions are per-call adjustments.
type downloadOptions struct {
	saveDir  string
	progress ProgressFunc
}

type DownloadOption func(*downloadOptions)

// WithProgress attaches a progress callback to one download.
func WithProgress(f ProgressFunc) DownloadOption {
	return func(o *downloadOptions) {
		o.progress = f
	}
}

// WithSaveDir overrides the configured base directory for one download.
func WithSaveDir(dir string) DownloadOption {
	return func(o *downloadOptions) {
		o.saveDir = dir
	}
}

// Download fetches every media item of the ParseResult into a fresh directory
// under the save dir. It returns either a complete DownloadResult or an error;
// on any unrecoverable item failure the whole directory is removed. If the
// context is cancelled, partial files are kept on disk for a future resume.
func (d *Downloader) Download(ctx context.Context, pr *ParseResult, opts ...DownloadOption) (*DownloadResult, error) {
	options := downloadOptions{saveDir: d.cfg.SaveDir}
	for _, opt := range opts {
		opt(&options)
	}

	if len(pr.Media) == 0 {
		return nil, &DownloadError{URL: pr.RawURL, Err: errors.New("parse result has no media")}
	}
	for _, ref := range pr.Media {
		if err := ref.Validate(); err != nil {
			return nil, &DownloadError{URL: pr.RawURL, Err: err}
		}
	}

	outputDir, err := slug.CreateDir(options.saveDir, slug.Derive(pr.Title, pr.Content))
	if err != nil {
		return nil, &DownloadError{URL: pr.RawURL, Err: err}
	}
	d.log.Debugw("downloading", "url", pr.RawURL, "items", len(pr.Media), "dir", outputDir)

	var files []MediaFile
	if pr.Single() {
		files, err = d.downloadSingle(ctx, pr, outputDir, options.progress)
	} else {
		files, err = d.downloadMany(ctx, pr, outputDir, options.progress)
	}
	if err != nil {
		// Cancellation keeps partials on disk so the download can resume;
		// everything else takes the whole directory down with it.
		if ctx.Err() == nil {
			_ = os.RemoveAll(outputDir)
		}
		return nil, err
	}

	result := &DownloadResult{Source: pr, Files: files, OutputDir: outputDir}
	d.record(ctx, pr, result)
	return result, nil
}

func (d *Downloader) downloadSingle(ctx context.Context, pr *ParseResult, dir string, progress ProgressFunc) ([]MediaFile, error) {
	var byteProgress func(current, total int64)
	if progress != nil {
		byteProgress = func(current, total int64) {
			progress(current, total, ProgressBytes)
		}
	}
	file, err := d.downloadItem(ctx, pr.Media[0], dir, 0, byteProgress)
	if err != nil {
		return nil, err
	}
	return []MediaFile{file}, nil
}

func (d *Downloader) downloadMany(ctx context.Context, pr *ParseResult, dir string, progress ProgressFunc) ([]MediaFile, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := int64(len(pr.Media))
	files := make([]MediaFile, len(pr.Media))
	sem := make(chan struct{}, d.cfg.Concurrency)

	var (
		mu        sync.Mutex
		completed int64
		result    error
		wg        sync.WaitGroup
	)
	for i := range pr.Media {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			file, err := d.downloadItem(ctx, pr.Media[i], dir, i, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Items cancelled because a sibling failed aren't failures
				// in their own right.
				if !errors.Is(err, context.Canceled) {
					result = multierror.Append(result, err)
				}
				cancel()
				return
			}
			files[i] = file
			completed++
			if progress != nil {
				progress(completed, total, ProgressCount)
			}
		}(i)
	}
	wg.Wait()

	if result != nil {
		return nil, result
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// downloadItem fetches one MediaRef, including the second leg of a live photo.
func (d *Downloader) downloadItem(ctx context.Context, ref MediaRef, dir string, index int, byteProgress func(current, total int64)) (MediaFile, error) {
	opts := transfer.Options{
		Client:      d.client,
		UserAgent:   d.cfg.UserAgent,
		Headers:     d.cfg.Headers,
		RetryLimit:  d.cfg.RetryLimit,
		BackoffUnit: d.cfg.RetryBackoff,
		Progress:    byteProgress,
	}

	dest := filepath.Join(dir, fmt.Sprintf("%d.%s", index, ref.Ext))
	res, err := transfer.Fetch(ctx, ref.URL, dest, opts)
	if err != nil {
		return MediaFile{}, d.wrapTransferError(ref.URL, err)
	}

	var videoPath string
	if ref.Kind == KindLivePhoto {
		videoDest := filepath.Join(dir, fmt.Sprintf("%d_video.%s", index, ref.VideoExt))
		videoOpts := opts
		videoOpts.Progress = nil
		videoRes, err := transfer.Fetch(ctx, ref.VideoURL, videoDest, videoOpts)
		if err != nil {
			return MediaFile{}, d.wrapTransferError(ref.VideoURL, err)
		}
		videoPath = videoRes.Path
	}

	return newMediaFile(ref, res.Path, videoPath), nil
}

func (d *Downloader) wrapTransferError(url string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *transfer.StatusError
	if errors.As(err, &statusErr) {
		return &DownloadError{URL: url, StatusCode: statusErr.Code, Err: err}
	}
	return &DownloadError{URL: url, Err: err}
}

func (d *Downloader) record(ctx context.Context, pr *ParseResult, result *DownloadResult) {
	if d.history == nil {
		return
	}
	var bytes int64
	for _, f := range result.Files {
		if info, err := os.Stat(f.Path); err == nil {
			bytes += info.Size()
		}
	}
	rec := history.Record{
		Platform: pr.Platform.ID,
		Title:    pr.Title,
		RawURL:   pr.RawURL,
		Dir:      result.OutputDir,
		Items:    len(result.Files),
		Bytes:    bytes,
	}
	if err := d.history.Record(ctx, rec); err != nil {
		d.log.Warnw("failed to record download history", "url", pr.RawURL, "error", err)
	}
}
