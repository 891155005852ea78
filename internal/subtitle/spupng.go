package subtitle

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SpuPNGEncoder writes one PNG image per cue plus an XML index
// referencing each image's timing and offset, ported from
// 608_spupng.c/608_spupng.cpp's spu_png writer. Rendering uses the
// standard library's image/png (spec.md §1 explicitly excludes a
// third-party PNG encoder from this component) and x/image's bitmap
// font for glyph rasterization.
type SpuPNGEncoder struct {
	xml        io.Writer
	openPNG    func(name string) (io.WriteCloser, error)
	basename   string
	counter    int
	xOffset    int
	yOffset    int
	headerDone bool
}

// NewSpuPNGEncoder wraps xml (the sidecar index) and openPNG, a factory
// the caller uses to create one output file per frame (e.g.
// "<basename>_%05d.png").
func NewSpuPNGEncoder(xml io.Writer, basename string, openPNG func(name string) (io.WriteCloser, error)) *SpuPNGEncoder {
	return &SpuPNGEncoder{xml: xml, openPNG: openPNG, basename: basename}
}

// Close writes the closing </stream></subpictures> tags.
func (e *SpuPNGEncoder) Close() error {
	_, err := io.WriteString(e.xml, "</stream>\n</subpictures>\n")
	return err
}

// Cell geometry per spec.md §4.8: "34x15-cell PNG (CCW=16, CCH=26,
// 544x390 pixels including 1-cell padding on each side)."
const (
	cellsPerRow     = 34
	cellsPerCol     = 15
	charCellWidth   = 16
	charCellHeight  = 26
	spupngPadCells  = 1
	spupngCanvasW   = cellsPerRow * charCellWidth
	spupngCanvasH   = cellsPerCol * charCellHeight
)

// WriteCue rasters the cue's lines onto an indexed image, writes it as
// a PNG, and appends a <spu> entry to the XML index, mirroring the
// "start=...end=...image=...xoffset=...yoffset=..." attributes plus the
// plain-text comment block of the original.
func (e *SpuPNGEncoder) WriteCue(c Cue) error {
	if !e.headerDone {
		if _, err := io.WriteString(e.xml, "<subpictures>\n<stream>\n"); err != nil {
			return err
		}
		e.headerDone = true
	}
	if c.empty() {
		return nil
	}
	img := image.NewPaletted(image.Rect(0, 0, spupngCanvasW, spupngCanvasH),
		color.Palette{color.Transparent, color.White})
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	originX := spupngPadCells * charCellWidth
	originY := 0 // the padding is horizontal; all 15 rows fill the canvas height
	for row, line := range c.Lines {
		if line == "" {
			continue
		}
		d.Dot = fixed.P(originX, originY+(row+1)*charCellHeight-6)
		d.DrawString(line)
	}

	e.counter++
	name := fmt.Sprintf("%s_%05d.png", e.basename, e.counter)
	f, err := e.openPNG(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(e.xml, "<spu start=\"%.3f\" end=\"%.3f\" image=\"%s\" xoffset=\"%d\" yoffset=\"%d\">\n<!--\n",
		c.Start.Seconds(), c.End.Seconds(), name, e.xOffset, e.yOffset); err != nil {
		return err
	}
	for _, l := range c.Lines {
		if l == "" {
			continue
		}
		if _, err := fmt.Fprintf(e.xml, "%s\n", l); err != nil {
			return err
		}
	}
	_, err = io.WriteString(e.xml, "--></spu>\n")
	return err
}
