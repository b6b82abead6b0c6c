package parsehub

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// ResultKind discriminates the shapes of ParseResult an adapter can produce.
type ResultKind int

const (
	// ResultVideo is a single video post.
	ResultVideo ResultKind = iota
	// ResultImage is an ordered set of images and/or live photos.
	ResultImage
	// ResultMultimedia is an ordered set of mixed-kind media.
	ResultMultimedia
	// ResultRichText is an article: mixed media plus a markdown body.
	ResultRichText
)

func (k ResultKind) String() string {
	switch k {
	case ResultVideo:
		return "video"
	case ResultImage:
		return "image"
	case ResultMultimedia:
		return "multimedia"
	case ResultRichText:
		return "rich_text"
	default:
		return "unknown"
	}
}

// A ParseResult is what an adapter hands back for one post. It is constructed
// once, stamped with the originating Platform by the parse pipeline, and
// treated as immutable thereafter.
type ParseResult struct {
	Kind     ResultKind
	Platform Platform
	Title    string
	// Content is the post body as plain text. For ResultRichText it is the
	// plain-text projection of Markdown.
	Content string
	// Markdown is the original article body, set only for ResultRichText.
	Markdown string
	// RawURL is the resolved URL the post was parsed from.
	RawURL string
	Media  []MediaRef
}

// Single reports whether the result carries exactly one media item by contract,
// which changes how download progress is reported (bytes vs count).
func (r *ParseResult) Single() bool {
	return r.Kind == ResultVideo
}

// NewVideoResult builds a single-video ParseResult.
func NewVideoResult(title, content, rawURL string, video MediaRef) *ParseResult {
	return &ParseResult{
		Kind:    ResultVideo,
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
		RawURL:  rawURL,
		Media:   []MediaRef{video.withDefaults()},
	}
}

// NewImageResult builds a ParseResult from an ordered sequence of image or
// live-photo refs.
func NewImageResult(title, content, rawURL string, photos []MediaRef) *ParseResult {
	return &ParseResult{
		Kind:    ResultImage,
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
		RawURL:  rawURL,
		Media:   applyDefaults(photos),
	}
}

// NewMultimediaResult builds a ParseResult from an ordered sequence of
// mixed-kind refs.
func NewMultimediaResult(title, content, rawURL string, media []MediaRef) *ParseResult {
	return &ParseResult{
		Kind:    ResultMultimedia,
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
		RawURL:  rawURL,
		Media:   applyDefaults(media),
	}
}

// NewRichTextResult builds an article ParseResult. Content is derived from the
// markdown body.
func NewRichTextResult(title, markdown, rawURL string, media []MediaRef) *ParseResult {
	return &ParseResult{
		Kind:     ResultRichText,
		Title:    strings.TrimSpace(title),
		Markdown: markdown,
		Content:  markdownToPlain(markdown),
		RawURL:   rawURL,
		Media:    applyDefaults(media),
	}
}

func applyDefaults(refs []MediaRef) []MediaRef {
	out := make([]MediaRef, len(refs))
	for i, r := range refs {
		out[i] = r.withDefaults()
	}
	return out
}

var (
	mdImageRe   = regexp.MustCompile(`!\[[^\]]*]\([^)]*\)`)
	mdLinkRe    = regexp.MustCompile(`\[([^\]]*)]\([^)]*\)`)
	mdHeadingRe = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphRe    = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~]+?)(\*{1,3}|_{1,3}|~~)`)
	mdCodeRe    = regexp.MustCompile("`([^`]*)`")
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// markdownToPlain strips markdown syntax down to readable text: images are
// dropped, links keep their label, emphasis and heading markers are removed.
func markdownToPlain(md string) string {
	s := mdImageRe.ReplaceAllString(md, "")
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = mdHeadingRe.ReplaceAllString(s, "")
	s = mdEmphRe.ReplaceAllString(s, "$2")
	s = mdCodeRe.ReplaceAllString(s, "$1")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// A DownloadResult owns the downloaded files and their directory. All file
// paths live under OutputDir.
type DownloadResult struct {
	// Source is the ParseResult the files were downloaded from.
	Source *ParseResult
	Files  []MediaFile
	// OutputDir is the directory created for this download; Delete removes it.
	OutputDir string
}

// Exists reports whether every file is still present on disk.
func (r *DownloadResult) Exists() bool {
	for _, f := range r.Files {
		if _, err := os.Stat(f.Path); err != nil {
			return false
		}
		if f.VideoPath != "" {
			if _, err := os.Stat(f.VideoPath); err != nil {
				return false
			}
		}
	}
	return len(r.Files) > 0
}

// Delete removes OutputDir recursively. A missing directory counts as success,
// so calling Delete twice never fails; any other failure is a DeleteError.
func (r *DownloadResult) Delete() error {
	if r.OutputDir == "" {
		return nil
	}
	if _, err := os.Stat(r.OutputDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &DeleteError{Dir: r.OutputDir, Err: err}
	}
	if err := os.RemoveAll(r.OutputDir); err != nil {
		return &DeleteError{Dir: r.OutputDir, Err: err}
	}
	return nil
}
