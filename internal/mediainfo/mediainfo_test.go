package mediainfo

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestProbePNG(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 320, 240))))
	info, err := Probe(writeFile(t, "a.png", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(Info{Width: 320, Height: 240}, info)
}

func TestProbeJPEG(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 32)), nil))
	info, err := Probe(writeFile(t, "a.jpg", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(64, info.Width)
	assert.Equal(32, info.Height)
}

func TestProbeGIF(t *testing.T) {
	assert := assert.New(t)
	palette := []color.Color{color.Black, color.White}
	frame := func() *image.Paletted {
		return image.NewPaletted(image.Rect(0, 0, 10, 8), palette)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, &gif.GIF{
		Image: []*image.Paletted{frame(), frame(), frame()},
		// Delays are in centiseconds: 2.5s total, rounded up to 3.
		Delay: []int{100, 100, 50},
	}))

	info, err := Probe(writeFile(t, "a.gif", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(10, info.Width)
	assert.Equal(8, info.Height)
	assert.Equal(3, info.DurationSeconds)
}

func TestProbeGIFRejectsOther(t *testing.T) {
	assert := assert.New(t)
	_, err := Probe(writeFile(t, "a.gif", []byte("definitely not a gif")))
	assert.Error(err)
}

func mp4Box(name string, body []byte) []byte {
	b := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(b[:4], uint32(8+len(body)))
	copy(b[4:8], name)
	copy(b[8:], body)
	return b
}

// minimalMP4 assembles just enough box structure for header probing: an ftyp,
// then moov{mvhd, trak{tkhd}} with the given timescale ticks and dimensions.
func minimalMP4(timescale, duration uint32, width, height int) []byte {
	mvhd := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhd[12:16], timescale)
	binary.BigEndian.PutUint32(mvhd[16:20], duration)

	tkhd := make([]byte, 84)
	binary.BigEndian.PutUint32(tkhd[76:80], uint32(width)<<16)
	binary.BigEndian.PutUint32(tkhd[80:84], uint32(height)<<16)

	var out []byte
	out = append(out, mp4Box("ftyp", []byte("isom\x00\x00\x02\x00isomiso2"))...)
	out = append(out, mp4Box("moov", append(mp4Box("mvhd", mvhd), mp4Box("trak", mp4Box("tkhd", tkhd))...))...)
	// Trailing padding so header reads near EOF are fully satisfied.
	out = append(out, make([]byte, 64)...)
	return out
}

func TestProbeMP4(t *testing.T) {
	assert := assert.New(t)
	data := minimalMP4(1000, 5500, 640, 360)
	info, err := Probe(writeFile(t, "a.mp4", data))
	require.NoError(t, err)
	assert.Equal(640, info.Width)
	assert.Equal(360, info.Height)
	// 5.5 seconds of ticks round up.
	assert.Equal(6, info.DurationSeconds)
}

func TestProbeMP4NoMoov(t *testing.T) {
	assert := assert.New(t)
	data := mp4Box("ftyp", []byte("isom\x00\x00\x02\x00"))
	_, err := Probe(writeFile(t, "a.mp4", data))
	assert.Error(err)
}

func TestProbeUnknownSuffixFallsThrough(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 5))))
	info, err := Probe(writeFile(t, "thumbnail.bin", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(5, info.Width)
}
