package parsehub

import (
	"errors"
	"fmt"

	"github.com/z-mio/parsehub/internal/mediainfo"
)

// MediaKind discriminates the polymorphic media types.
type MediaKind int

const (
	KindImage MediaKind = iota
	KindVideo
	KindAni
	KindLivePhoto
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAni:
		return "ani"
	case KindLivePhoto:
		return "live_photo"
	default:
		return "unknown"
	}
}

// defaultExt returns the extension assumed when the source doesn't declare one.
func (k MediaKind) defaultExt() string {
	switch k {
	case KindVideo:
		return "mp4"
	case KindAni:
		return "gif"
	default:
		return "jpg"
	}
}

// A MediaRef is a remote pointer to one media item plus its metadata. It never
// points at local storage; the download engine turns it into a MediaFile.
type MediaRef struct {
	Kind     MediaKind
	URL      string
	Ext      string
	ThumbURL string
	// Width and Height in pixels, 0 = unknown.
	Width  int
	Height int
	// DurationSeconds of video/animated content, 0 = unknown.
	DurationSeconds int
	// VideoURL and VideoExt describe the motion component of a live photo.
	VideoURL string
	VideoExt string
}

// NewImageRef returns an Image MediaRef with the thumbnail defaulting to the image itself.
func NewImageRef(url string) MediaRef {
	return MediaRef{Kind: KindImage, URL: url, Ext: "jpg", ThumbURL: url}
}

// NewVideoRef returns a Video MediaRef.
func NewVideoRef(url string) MediaRef {
	return MediaRef{Kind: KindVideo, URL: url, Ext: "mp4"}
}

// NewAniRef returns an animated-loop MediaRef.
func NewAniRef(url string) MediaRef {
	return MediaRef{Kind: KindAni, URL: url, Ext: "gif"}
}

// NewLivePhotoRef returns a LivePhoto MediaRef: a still image plus a short motion
// clip. Live photo clips are nominally 3 seconds.
func NewLivePhotoRef(url string, videoURL string) MediaRef {
	return MediaRef{
		Kind:            KindLivePhoto,
		URL:             url,
		Ext:             "jpg",
		ThumbURL:        url,
		VideoURL:        videoURL,
		VideoExt:        "mp4",
		DurationSeconds: 3,
	}
}

// withDefaults fills zero-valued fields that have per-kind defaults.
func (m MediaRef) withDefaults() MediaRef {
	if m.Ext == "" {
		m.Ext = m.Kind.defaultExt()
	}
	if m.ThumbURL == "" && (m.Kind == KindImage || m.Kind == KindLivePhoto) {
		m.ThumbURL = m.URL
	}
	if m.Kind == KindLivePhoto && m.VideoExt == "" {
		m.VideoExt = "mp4"
	}
	return m
}

// Validate reports whether the ref is well-formed enough to download.
func (m MediaRef) Validate() error {
	if m.URL == "" {
		return errors.New("media ref has empty URL")
	}
	if m.Width < 0 || m.Height < 0 {
		return fmt.Errorf("media ref %q has negative dimensions", m.URL)
	}
	if m.DurationSeconds < 0 {
		return fmt.Errorf("media ref %q has negative duration", m.URL)
	}
	if m.Kind == KindLivePhoto && m.VideoURL == "" {
		return fmt.Errorf("live photo ref %q has no video URL", m.URL)
	}
	return nil
}

// A MediaFile is the local, on-disk counterpart of a MediaRef. The path must
// exist on disk for the lifetime of the owning DownloadResult.
type MediaFile struct {
	Kind            MediaKind
	Path            string
	Width           int
	Height          int
	DurationSeconds int
	// VideoPath is the motion component of a live photo.
	VideoPath string
}

// newMediaFile builds a MediaFile from the originating ref, probing the file
// itself (header inspection only) for any metadata the ref didn't carry.
func newMediaFile(ref MediaRef, path string, videoPath string) MediaFile {
	f := MediaFile{
		Kind:            ref.Kind,
		Path:            path,
		Width:           ref.Width,
		Height:          ref.Height,
		DurationSeconds: ref.DurationSeconds,
		VideoPath:       videoPath,
	}
	if f.Width == 0 || (f.needsDuration() && f.DurationSeconds == 0) {
		probePath := path
		if ref.Kind == KindLivePhoto && videoPath != "" {
			probePath = videoPath
		}
		if info, err := mediainfo.Probe(probePath); err == nil {
			if f.Width == 0 {
				f.Width = info.Width
				f.Height = info.Height
			}
			if f.DurationSeconds == 0 {
				f.DurationSeconds = info.DurationSeconds
			}
		}
	}
	return f
}

func (f MediaFile) needsDuration() bool {
	return f.Kind == KindVideo || f.Kind == KindAni || f.Kind == KindLivePhoto
}
