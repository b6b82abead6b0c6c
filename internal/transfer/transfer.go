// Package transfer implements the resumable, retrying HTTP file transfer the
// download engine fans out over: one URL in, one verified local file out.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const defaultBackoffUnit = time.Second

// A StatusError is a non-retryable HTTP error status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// An IntegrityError means the server reported a content length that doesn't
// match the bytes actually written. The partial file is left on disk as a
// valid resume point.
type IntegrityError struct {
	Expected int64
	Written  int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("incomplete transfer: expected %d bytes, wrote %d", e.Expected, e.Written)
}

// Options tune a single Fetch.
type Options struct {
	// Client performs the requests; its Timeout bounds each attempt.
	Client    *http.Client
	UserAgent string
	Headers   map[string]string
	// RetryLimit is the number of additional attempts after a transient failure.
	RetryLimit int
	// BackoffUnit is the first retry delay; subsequent delays double.
	BackoffUnit time.Duration
	// Progress receives byte progress: (bytes on disk, total expected or 0).
	Progress func(current, total int64)
}

// A Result describes a completed transfer.
type Result struct {
	// Path is the final file location; it differs from the requested
	// destination when the server supplied a content-disposition filename.
	Path string
	// Written is the size of the final file in bytes.
	Written int64
}

// Fetch downloads url to dest, resuming any partial file already there. On a
// transient transport failure it retries with exponential backoff; on 416 it
// drops the partial and retries once from zero; on any other HTTP error it
// fails immediately with a StatusError. Cancellation stops promptly, keeping
// the partial file for a future resume.
func Fetch(ctx context.Context, rawURL, dest string, opts Options) (Result, error) {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = defaultBackoffUnit
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, err
	}

	var lastErr error
	retried416 := false
	for attempt := 0; attempt <= opts.RetryLimit; attempt++ {
		if attempt > 0 {
			delay := opts.BackoffUnit << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}

		res, err := fetchOnce(ctx, rawURL, dest, opts)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if statusErr.Code == http.StatusRequestedRangeNotSatisfiable && !retried416 {
				// The partial on disk doesn't line up with the remote file
				// any more; start over, once.
				retried416 = true
				_ = os.Remove(dest)
				lastErr = err
				continue
			}
			return Result{}, err
		}
		var integrityErr *IntegrityError
		if errors.As(err, &integrityErr) {
			return Result{}, err
		}
		lastErr = err
	}
	return Result{}, fmt.Errorf("retries exhausted: %w", lastErr)
}

// fetchOnce is a single attempt: open (or resume) the partial, stream the
// response into it, verify the byte count.
func fetchOnce(ctx context.Context, rawURL, dest string, opts Options) (Result, error) {
	var resumePos int64
	if info, err := os.Stat(dest); err == nil {
		resumePos = info.Size()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if resumePos > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumePos))
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		// Appending to the partial is safe.
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// The server ignored the range header (or none was sent); anything
		// already on disk must be discarded, never appended to.
		resumePos = 0
	default:
		return Result{}, &StatusError{Code: resp.StatusCode}
	}

	var total int64
	if resp.ContentLength > 0 {
		total = resumePos + resp.ContentLength
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resumePos > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return Result{}, err
	}

	counter := &progressWriter{current: resumePos, total: total, report: opts.Progress}
	copied, err := io.Copy(io.MultiWriter(f, counter), &ctxReader{ctx: ctx, r: resp.Body})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	written := resumePos + copied
	if err != nil {
		return Result{}, err
	}
	if total > 0 && written != total {
		return Result{}, &IntegrityError{Expected: total, Written: written}
	}

	final := dest
	if name := filenameFromResponse(resp); name != "" {
		renamed := filepath.Join(filepath.Dir(dest), name)
		if renamed != dest {
			// Claim the name exclusively first: sibling items in one download
			// can carry the same disposition filename, and a plain rename
			// would clobber whichever landed first.
			if claim, err := os.OpenFile(renamed, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644); err == nil {
				claim.Close()
				if err := os.Rename(dest, renamed); err == nil {
					final = renamed
				} else {
					_ = os.Remove(renamed)
				}
			}
		}
	}
	return Result{Path: final, Written: written}, nil
}

// progressWriter counts bytes and reports them; chained last in the
// MultiWriter so failed file writes are never counted.
type progressWriter struct {
	current int64
	total   int64
	report  func(current, total int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.current += int64(len(p))
	if w.report != nil {
		w.report(w.current, w.total)
	}
	return len(p), nil
}

// ctxReader aborts a blocking copy as soon as the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

var (
	cdEncodedRe  = regexp.MustCompile(`filename\*\s*=\s*[\w-]+'[^']*'([^;]+)`)
	cdQuotedRe   = regexp.MustCompile(`filename\s*=\s*"([^"]+)"`)
	cdUnquotedRe = regexp.MustCompile(`filename\s*=\s*([^\s;]+)`)
	unsafeRe     = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// filenameFromResponse extracts a sanitized filename from the
// Content-Disposition header, trying the RFC 5987 form first.
func filenameFromResponse(resp *http.Response) string {
	header := resp.Header.Get("Content-Disposition")
	if header == "" {
		return ""
	}
	var name string
	if m := cdEncodedRe.FindStringSubmatch(header); m != nil {
		if decoded, err := url.QueryUnescape(strings.TrimSpace(m[1])); err == nil {
			name = decoded
		}
	} else if m := cdQuotedRe.FindStringSubmatch(header); m != nil {
		name = m[1]
	} else if m := cdUnquotedRe.FindStringSubmatch(header); m != nil {
		name = m[1]
	}
	return SanitizeFilename(name)
}

// SanitizeFilename strips path separators and other characters unsafe on
// common filesystems, and bounds the length.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, ".")
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
