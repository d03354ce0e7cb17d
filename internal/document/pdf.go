package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// defaultPageHeight is US Letter, used when a page has no usable MediaBox.
const defaultPageHeight = 792

type pdfDocument struct {
	name   string
	file   *os.File
	reader *pdf.Reader

	// streams holds image bytes as stored in the file, by page number
	// and XObject resource name.
	streams   map[int]map[string]rawImage
	streamErr error
}

type rawImage struct {
	data []byte
	ext  string
}

// OpenPDF opens a PDF file. Close releases the file handle.
func OpenPDF(path string) (Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	doc := &pdfDocument{
		name:   filepath.Base(path),
		file:   file,
		reader: reader,
	}
	doc.streams, doc.streamErr = extractStreams(file)
	return doc, nil
}

var disableConfigDir sync.Once

// extractStreams reads every page's image XObjects with pdfcpu, which
// passes DCT and JPX data through unchanged and renders other encodings
// as PNG or TIFF.
func extractStreams(rs io.ReadSeeker) (out map[int]map[string]rawImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, r)
		}
	}()

	disableConfigDir.Do(api.DisableConfigDir)
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	pages, err := api.ExtractImagesRaw(rs, nil, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("extract image streams: %w", err)
	}

	out = make(map[int]map[string]rawImage)
	for i, imgs := range pages {
		for _, img := range imgs {
			if img.Reader == nil || img.Thumb || img.IsImgMask || img.Name == "" {
				continue
			}
			data, err := io.ReadAll(img)
			if err != nil || len(data) == 0 {
				continue
			}
			n := img.PageNr
			if n == 0 {
				n = i + 1
			}
			if out[n] == nil {
				out[n] = make(map[string]rawImage)
			}
			out[n][img.Name] = rawImage{data: data, ext: normalizeExt(img.FileType)}
		}
	}
	return out, nil
}

func normalizeExt(fileType string) string {
	ext := strings.ToLower(strings.TrimPrefix(fileType, "."))
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

func (d *pdfDocument) Name() string  { return d.name }
func (d *pdfDocument) NumPages() int { return d.reader.NumPage() }
func (d *pdfDocument) Close() error  { return d.file.Close() }

// Page extracts text, words and images. The reader panics on malformed
// content streams; that is reported as an error for this page only.
func (d *pdfDocument) Page(n int) (page *Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: malformed content: %v", n, r)
		}
	}()

	p := d.reader.Page(n)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", n)
	}

	height := pageHeight(p.V)
	words := groupWords(p.Content().Text, height)

	images := pageImages(p, height, d.streams[n])
	if d.streamErr != nil {
		for i := range images {
			if images[i].Err != nil {
				images[i].Err = errors.Join(images[i].Err, d.streamErr)
			}
		}
	}

	return &Page{
		Number: n,
		Text:   layoutText(words),
		Words:  words,
		Images: images,
	}, nil
}

// inherited looks key up on v and then along its Parent chain.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func pageHeight(page pdf.Value) float64 {
	box := inherited(page, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return defaultPageHeight
	}
	h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
	if h == 0 {
		return defaultPageHeight
	}
	return h
}

// groupWords merges positioned glyph runs into words. A run starts a new
// word after whitespace, on a baseline change, or past a horizontal gap.
// PDF coordinates grow upward; words are returned with the origin at the
// top of the page.
func groupWords(runs []pdf.Text, height float64) []Word {
	var (
		words []Word
		buf   strings.Builder
		left  float64
		right float64
		base  float64
		size  float64
		open  bool
	)

	flush := func() {
		if open && buf.Len() > 0 {
			words = append(words, Word{
				X0:   left,
				Y0:   height - (base + size),
				X1:   right,
				Y1:   height - base + size*0.2,
				Text: buf.String(),
			})
		}
		buf.Reset()
		open = false
	}

	for _, r := range runs {
		fs := r.FontSize
		if fs <= 0 {
			fs = 10
		}
		if strings.TrimSpace(r.S) == "" {
			flush()
			continue
		}
		if strings.TrimLeft(r.S, " \t\r\n") != r.S {
			flush()
		}

		if open {
			gap := r.X - right
			if math.Abs(r.Y-base) > fs*0.5 || gap > fs*0.3 || gap < -fs {
				flush()
			}
		}
		if !open {
			left, right, base, size = r.X, r.X+r.W, r.Y, fs
			open = true
		}

		buf.WriteString(strings.TrimSpace(r.S))
		right = math.Max(right, r.X+r.W)
		size = math.Max(size, fs)

		if strings.TrimRight(r.S, " \t\r\n") != r.S {
			flush()
		}
	}
	flush()

	return words
}

// layoutText joins words into lines and lines into text. A blank-line
// sized vertical gap, or a jump back up the page, becomes a paragraph
// break so question spans end at block boundaries.
func layoutText(words []Word) string {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			prev := words[i-1]
			lineHeight := prev.Y1 - prev.Y0
			switch {
			case math.Abs(w.Y1-prev.Y1) <= lineHeight*0.5:
				sb.WriteByte(' ')
			case w.Y0-prev.Y1 > lineHeight*0.8 || w.Y1 < prev.Y0:
				sb.WriteString("\n\n")
			default:
				sb.WriteByte('\n')
			}
		}
		sb.WriteString(w.Text)
	}
	return sb.String()
}

// matrix is a PDF affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m applied before n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// box maps the unit square an image is painted into through m and flips
// it to a top-left origin.
func (m matrix) box(height float64) storage.BoundingBox {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := m.apply(c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return storage.BoundingBox{X0: minX, Y0: height - maxY, X1: maxX, Y1: height - minY}
}

type placement struct {
	name string
	ctm  matrix
}

// imagePlacements replays the graphics state of a page's content streams
// and records the transform in effect at the first Do of each XObject.
func imagePlacements(contents pdf.Value) (out []placement) {
	// A malformed operator ends the scan; placements found so far are kept.
	defer func() { _ = recover() }()

	streams := []pdf.Value{contents}
	if contents.Kind() == pdf.Array {
		streams = streams[:0]
		for i := 0; i < contents.Len(); i++ {
			streams = append(streams, contents.Index(i))
		}
	}

	ctm := identity
	var saved []matrix
	seen := make(map[string]bool)

	for _, strm := range streams {
		pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
			n := stk.Len()
			args := make([]pdf.Value, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}

			switch op {
			case "q":
				saved = append(saved, ctm)
			case "Q":
				if len(saved) > 0 {
					ctm = saved[len(saved)-1]
					saved = saved[:len(saved)-1]
				}
			case "cm":
				if n == 6 {
					var m matrix
					for i := range m {
						m[i] = args[i].Float64()
					}
					ctm = m.mul(ctm)
				}
			case "Do":
				if n == 1 {
					name := args[0].Name()
					if !seen[name] {
						seen[name] = true
						out = append(out, placement{name: name, ctm: ctm})
					}
				}
			}
		})
	}
	return out
}

// pageImages locates each image painted on the page. Bytes come from
// streams when pdfcpu could read them and are decoded from the XObject
// otherwise.
func pageImages(p pdf.Page, height float64, streams map[string]rawImage) []Image {
	xobjects := p.Resources().Key("XObject")
	if xobjects.IsNull() {
		return nil
	}

	var images []Image
	for _, pl := range imagePlacements(p.V.Key("Contents")) {
		xo := xobjects.Key(pl.name)
		if xo.Key("Subtype").Name() != "Image" {
			continue
		}
		img := Image{
			Index: len(images) + 1,
			Box:   pl.ctm.box(height),
		}
		if raw, ok := streams[pl.name]; ok && raw.ext != "" {
			img.Data, img.Ext = raw.data, raw.ext
		} else {
			img.Data, img.Ext, img.Err = decodeImage(xo)
		}
		images = append(images, img)
	}
	return images
}

// decodeImage re-encodes an uncompressed or Flate-compressed 8-bit image
// XObject as PNG. Other encodings are left to pdfcpu.
func decodeImage(xo pdf.Value) (data []byte, ext string, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, ext, err = nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, r)
		}
	}()

	if f := streamFilter(xo.Key("Filter")); f != "" && f != "FlateDecode" {
		return nil, "", fmt.Errorf("%w: filter %s", ErrUnsupportedImage, f)
	}
	if bpc := xo.Key("BitsPerComponent").Int64(); bpc != 8 {
		return nil, "", fmt.Errorf("%w: %d bits per component", ErrUnsupportedImage, bpc)
	}
	comps := colorComponents(xo.Key("ColorSpace"))
	if comps == 0 {
		return nil, "", fmt.Errorf("%w: color space %s", ErrUnsupportedImage, xo.Key("ColorSpace"))
	}

	rc := xo.Reader()
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, "", fmt.Errorf("read image stream: %w", err)
	}

	width := int(xo.Key("Width").Int64())
	height := int(xo.Key("Height").Int64())
	img, err := pixelsToImage(width, height, comps, raw)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "png", nil
}

func streamFilter(v pdf.Value) string {
	switch v.Kind() {
	case pdf.Name:
		return v.Name()
	case pdf.Array:
		if v.Len() == 1 {
			return v.Index(0).Name()
		}
		if v.Len() > 1 {
			return "chained"
		}
	}
	return ""
}

func colorComponents(cs pdf.Value) int {
	switch cs.Kind() {
	case pdf.Name:
		switch cs.Name() {
		case "DeviceGray", "CalGray":
			return 1
		case "DeviceRGB", "CalRGB":
			return 3
		case "DeviceCMYK":
			return 4
		}
	case pdf.Array:
		if cs.Len() >= 2 && cs.Index(0).Name() == "ICCBased" {
			switch n := cs.Index(1).Key("N").Int64(); n {
			case 1, 3, 4:
				return int(n)
			}
		}
	}
	return 0
}

// pixelsToImage wraps packed 8-bit samples in an image of the matching model.
func pixelsToImage(width, height, comps int, raw []byte) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrUnsupportedImage, width, height)
	}
	need := width * height * comps
	if len(raw) < need {
		return nil, fmt.Errorf("%w: %d bytes of samples, expected %d", ErrUnsupportedImage, len(raw), need)
	}
	rect := image.Rect(0, 0, width, height)

	switch comps {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, raw[:need])
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < need; i, j = i+3, j+4 {
			img.Pix[j] = raw[i]
			img.Pix[j+1] = raw[i+1]
			img.Pix[j+2] = raw[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	case 4:
		img := image.NewCMYK(rect)
		copy(img.Pix, raw[:need])
		return img, nil
	}
	return nil, fmt.Errorf("%w: %d components", ErrUnsupportedImage, comps)
}
