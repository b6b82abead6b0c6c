// Package mediainfo reads dimensions and durations from local media files by
// inspecting container headers only; it never decodes frames.
package mediainfo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Info is what could be read from a file's headers; zero means unknown.
type Info struct {
	Width           int
	Height          int
	DurationSeconds int
}

var imageSuffixes = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true,
}

var videoSuffixes = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true,
}

// Probe picks a reader by file suffix, falling back to trying image then video
// for unknown suffixes.
func Probe(path string) (Info, error) {
	switch suffix := strings.ToLower(filepath.Ext(path)); {
	case suffix == ".gif":
		return probeGIF(path)
	case videoSuffixes[suffix]:
		return probeMP4(path)
	case imageSuffixes[suffix]:
		return probeImage(path)
	default:
		if info, err := probeImage(path); err == nil {
			return info, nil
		}
		return probeMP4(path)
	}
}

func probeImage(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, err
	}
	return Info{Width: cfg.Width, Height: cfg.Height}, nil
}

// probeGIF walks the GIF block structure, summing frame delays from graphic
// control extensions and skipping image data without LZW-decoding it.
func probeGIF(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	header := make([]byte, 13)
	if _, err := io.ReadFull(f, header); err != nil {
		return Info{}, err
	}
	if string(header[:3]) != "GIF" {
		return Info{}, errors.New("not a GIF file")
	}
	info := Info{
		Width:  int(binary.LittleEndian.Uint16(header[6:8])),
		Height: int(binary.LittleEndian.Uint16(header[8:10])),
	}
	// Skip the global color table if the logical screen descriptor flags one.
	if header[10]&0x80 != 0 {
		size := int64(3) << ((header[10] & 0x07) + 1)
		if _, err := f.Seek(size, io.SeekCurrent); err != nil {
			return info, err
		}
	}

	var totalCentiseconds int
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			break
		}
		switch buf[0] {
		case 0x21: // extension
			if _, err := io.ReadFull(f, buf); err != nil {
				return info, err
			}
			label := buf[0]
			delay, err := skipSubBlocks(f, label == 0xf9)
			if err != nil {
				return info, err
			}
			totalCentiseconds += delay
		case 0x2c: // image descriptor
			desc := make([]byte, 9)
			if _, err := io.ReadFull(f, desc); err != nil {
				return info, err
			}
			if desc[8]&0x80 != 0 {
				size := int64(3) << ((desc[8] & 0x07) + 1)
				if _, err := f.Seek(size, io.SeekCurrent); err != nil {
					return info, err
				}
			}
			// LZW minimum code size byte, then the data sub-blocks.
			if _, err := io.ReadFull(f, buf); err != nil {
				return info, err
			}
			if _, err := skipSubBlocks(f, false); err != nil {
				return info, err
			}
		case 0x3b: // trailer
			info.DurationSeconds = int(math.Ceil(float64(totalCentiseconds) / 100))
			return info, nil
		default:
			info.DurationSeconds = int(math.Ceil(float64(totalCentiseconds) / 100))
			return info, nil
		}
	}
	info.DurationSeconds = int(math.Ceil(float64(totalCentiseconds) / 100))
	return info, nil
}

// skipSubBlocks advances past a chain of data sub-blocks, optionally reading a
// graphic-control delay (in centiseconds) from the first block.
func skipSubBlocks(f *os.File, readDelay bool) (int, error) {
	var delay int
	sizeBuf := make([]byte, 1)
	first := true
	for {
		if _, err := io.ReadFull(f, sizeBuf); err != nil {
			return delay, err
		}
		size := int(sizeBuf[0])
		if size == 0 {
			return delay, nil
		}
		block := make([]byte, size)
		if _, err := io.ReadFull(f, block); err != nil {
			return delay, err
		}
		if readDelay && first && size >= 3 {
			d := int(binary.LittleEndian.Uint16(block[1:3]))
			if d == 0 {
				d = 10 // browsers clamp zero delays to 100ms
			}
			delay = d
		}
		first = false
	}
}

// probeMP4 scans top-level boxes for moov, then reads mvhd for duration and
// the first video tkhd for dimensions.
func probeMP4(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	moov, err := findBox(f, 0, -1, "moov")
	if err != nil {
		return Info{}, err
	}
	var info Info

	if mvhd, err := findBox(f, moov.bodyStart, moov.bodyEnd, "mvhd"); err == nil {
		body := make([]byte, 32)
		if _, err := f.ReadAt(body, mvhd.bodyStart); err == nil {
			var timescale, duration uint64
			if body[0] == 1 {
				timescale = uint64(binary.BigEndian.Uint32(body[20:24]))
				duration = binary.BigEndian.Uint64(body[24:32])
			} else {
				timescale = uint64(binary.BigEndian.Uint32(body[12:16]))
				duration = uint64(binary.BigEndian.Uint32(body[16:20]))
			}
			if timescale > 0 {
				info.DurationSeconds = int(math.Ceil(float64(duration) / float64(timescale)))
			}
		}
	}

	// Track boxes: find the first trak whose tkhd carries non-zero dimensions.
	for offset := moov.bodyStart; offset < moov.bodyEnd; {
		trak, err := findBox(f, offset, moov.bodyEnd, "trak")
		if err != nil {
			break
		}
		if tkhd, err := findBox(f, trak.bodyStart, trak.bodyEnd, "tkhd"); err == nil {
			body := make([]byte, 96)
			if n, err := f.ReadAt(body, tkhd.bodyStart); err == nil || n >= 96 {
				// Width and height are 16.16 fixed point at the end of the box.
				var base int
				if body[0] == 1 {
					base = 88
				} else {
					base = 76
				}
				w := int(binary.BigEndian.Uint32(body[base:base+4]) >> 16)
				h := int(binary.BigEndian.Uint32(body[base+4:base+8]) >> 16)
				if w > 0 && h > 0 {
					info.Width = w
					info.Height = h
					break
				}
			}
		}
		offset = trak.end
	}

	if info == (Info{}) {
		return info, errors.New("no usable mp4 metadata")
	}
	return info, nil
}

type box struct {
	bodyStart int64
	bodyEnd   int64
	end       int64
}

// findBox scans sibling boxes from start (to end, or EOF when end < 0) for the
// named box type.
func findBox(f *os.File, start, end int64, name string) (box, error) {
	header := make([]byte, 8)
	for offset := start; end < 0 || offset < end; {
		if _, err := f.ReadAt(header, offset); err != nil {
			return box{}, err
		}
		size := int64(binary.BigEndian.Uint32(header[:4]))
		bodyStart := offset + 8
		if size == 1 {
			ext := make([]byte, 8)
			if _, err := f.ReadAt(ext, offset+8); err != nil {
				return box{}, err
			}
			size = int64(binary.BigEndian.Uint64(ext))
			bodyStart = offset + 16
		}
		if size < 8 {
			return box{}, fmt.Errorf("malformed box at offset %d", offset)
		}
		if string(header[4:8]) == name {
			return box{bodyStart: bodyStart, bodyEnd: offset + size, end: offset + size}, nil
		}
		offset += size
	}
	return box{}, fmt.Errorf("box %q not found", name)
}
