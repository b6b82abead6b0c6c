// Package youtube adapts YouTube watch/shorts links into a single-video
// ParseResult, using the youtube library to pick a stream.
package youtube

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/z-mio/parsehub"
)

var pattern = regexp.MustCompile(`(?i)^https?://((www|m)\.youtube\.com/(watch|shorts/)|youtu\.be/)\S+`)

// New returns the YouTube adapter descriptor.
func New() parsehub.Adapter {
	return parsehub.Adapter{
		Platform:       parsehub.PlatformYoutube,
		Pattern:        pattern,
		SupportedTypes: []string{"video"},
		// The video ID parameter is the whole point of a watch URL.
		ReservedParams: []string{"v"},
		Parse:          parse,
	}
}

func parse(ctx context.Context, resolvedURL string, cfg parsehub.ParseConfig) (*parsehub.ParseResult, error) {
	client := youtube.Client{}
	video, err := client.GetVideoContext(ctx, resolvedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, fmt.Errorf("no downloadable formats for %q", video.ID)
	}
	formats.Sort()
	format := &formats[0]

	streamURL, err := client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream URL: %w", err)
	}

	ref := parsehub.NewVideoRef(streamURL)
	ref.Ext = extFromMimeType(format.MimeType)
	ref.Width = format.Width
	ref.Height = format.Height
	ref.DurationSeconds = int(video.Duration.Seconds())
	if len(video.Thumbnails) > 0 {
		ref.ThumbURL = video.Thumbnails[len(video.Thumbnails)-1].URL
	}

	return parsehub.NewVideoResult(video.Title, video.Description, resolvedURL, ref), nil
}

func extFromMimeType(mimeType string) string {
	mimeType = strings.SplitN(mimeType, ";", 2)[0]
	parts := strings.SplitN(mimeType, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "mp4"
	}
	return parts[1]
}
