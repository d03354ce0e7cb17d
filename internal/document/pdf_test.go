package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokycigga/e-2-pi-3/internal/content"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

const worksheetContent = `BT /F1 12 Tf 72 720 Td (Physics worksheet) Tj ET
BT /F1 12 Tf 72 706 Td (1. A block slides down a smooth incline.) Tj ET
q 100 0 0 50 72 560 cm /Im1 Do Q
BT /F1 12 Tf 72 540 Td (Figure 1 Block on an incline) Tj ET
`

// rgbPixels is a 2x2 image: red, green, blue, white.
var rgbPixels = []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255}

// writePDF writes a one-page PDF that paints a 2x2 image into a 100x50
// box at (72, 560). imageDict holds the filter entries for the stream.
func writePDF(t *testing.T, name, imageDict string, imageData []byte) string {
	t.Helper()

	stream := func(dict string, data []byte) string {
		return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 4 0 R >> /XObject << /Im1 5 0 R >> >> /Contents 6 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		stream("/Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceRGB /BitsPerComponent 8 "+imageDict, imageData),
		stream("", []byte(worksheetContent)),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func jpegPixels(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 255, 0, 255})
	img.Set(0, 1, color.RGBA{0, 0, 255, 255})
	img.Set(1, 1, color.RGBA{255, 255, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

var worksheetBox = storage.BoundingBox{X0: 72, Y0: 182, X1: 172, Y1: 232}

func TestOpenPDF_Page(t *testing.T) {
	doc, err := Open(writePDF(t, "worksheet.pdf", "", rgbPixels))
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, "worksheet.pdf", doc.Name())
	require.Equal(t, 1, doc.NumPages())

	page, err := doc.Page(1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	assert.True(t, strings.HasPrefix(page.Text, "Physics worksheet"), page.Text)
	assert.Contains(t, page.Text, "smooth incline.")
	assert.Contains(t, page.Text, "\n\nFigure 1")

	var texts []string
	for _, w := range page.Words {
		texts = append(texts, w.Text)
	}
	assert.Contains(t, texts, "Figure")

	require.Len(t, page.Images, 1)
	img := page.Images[0]
	require.NoError(t, img.Err)
	assert.Equal(t, 1, img.Index)
	assert.Equal(t, worksheetBox, img.Box)
	assert.Equal(t, "png", img.Ext)

	cfg, err := png.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Width)
	assert.Equal(t, 2, cfg.Height)

	_, err = doc.Page(2)
	assert.Error(t, err)
}

func TestOpenPDF_KeepsJPEGBytes(t *testing.T) {
	data := jpegPixels(t)
	doc, err := Open(writePDF(t, "photo.pdf", "/Filter /DCTDecode", data))
	require.NoError(t, err)
	defer doc.Close()

	page, err := doc.Page(1)
	require.NoError(t, err)
	require.Len(t, page.Images, 1)

	img := page.Images[0]
	require.NoError(t, img.Err)
	assert.Equal(t, "jpg", img.Ext)
	assert.Equal(t, data, img.Data)
	assert.Equal(t, worksheetBox, img.Box)
}

func TestSegmenter_PDF(t *testing.T) {
	store, err := content.NewStore(t.TempDir())
	require.NoError(t, err)

	doc, err := Open(writePDF(t, "worksheet.pdf", "", rgbPixels))
	require.NoError(t, err)
	defer doc.Close()

	segs, err := NewSegmenter(store, nil).Segment(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	seg := segs[0]
	assert.Equal(t, storage.SubjectPhysics, seg.Subject)
	require.Len(t, seg.Images, 1)
	assert.Equal(t, worksheetBox, seg.Images[0].Box)
	assert.Equal(t, "worksheet.pdf_p1_img1.png", filepath.Base(seg.Images[0].Path))
	assert.FileExists(t, seg.Images[0].Path)
}
