// Package direct handles URLs that already point straight at a media file, as
// a generic fallback when no platform adapter matches.
package direct

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/z-mio/parsehub"
	"github.com/z-mio/parsehub/generic"
	"github.com/z-mio/parsehub/util"
)

var (
	videoExts = generic.NewSet("flv", "m4v", "mkv", "mp4", "mov", "webm")
	imageExts = generic.NewSet("jpg", "jpeg", "png", "webp")
	aniExts   = generic.NewSet("gif")

	pattern = regexp.MustCompile(`(?i)^https?://\S+\.(flv|m4v|mkv|mp4|mov|webm|jpe?g|png|webp|gif)(\?\S*)?$`)
)

// New returns the direct-link adapter descriptor. Register it last: its
// pattern overlaps anything that serves media at file-suffixed URLs.
func New() parsehub.Adapter {
	return parsehub.Adapter{
		Platform:       parsehub.PlatformDirect,
		Pattern:        pattern,
		SupportedTypes: []string{"video", "image", "ani"},
		Parse:          parse,
	}
}

func parse(_ context.Context, resolvedURL string, _ parsehub.ParseConfig) (*parsehub.ParseResult, error) {
	parsedURL, err := url.Parse(resolvedURL)
	if err != nil {
		return nil, err
	}
	filename, err := util.FilenameFromURL(parsedURL)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	title := strings.TrimSuffix(filename, path.Ext(filename))

	switch {
	case videoExts.Contains(ext):
		ref := parsehub.NewVideoRef(resolvedURL)
		ref.Ext = ext
		return parsehub.NewVideoResult(title, "", resolvedURL, ref), nil
	case imageExts.Contains(ext):
		ref := parsehub.NewImageRef(resolvedURL)
		ref.Ext = ext
		return parsehub.NewImageResult(title, "", resolvedURL, []parsehub.MediaRef{ref}), nil
	case aniExts.Contains(ext):
		ref := parsehub.NewAniRef(resolvedURL)
		return parsehub.NewMultimediaResult(title, "", resolvedURL, []parsehub.MediaRef{ref}), nil
	default:
		return nil, fmt.Errorf("unknown file extension %q", ext)
	}
}
