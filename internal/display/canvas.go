package display

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"

	"github.com/motodash/cluster/internal/gauge"
)

// whiteSubImage is the solid source for vertex-coloured triangles.
var whiteSubImage = func() *ebiten.Image {
	img := ebiten.NewImage(3, 3)
	img.Fill(color.White)
	return img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
}()

var (
	fontsOnce sync.Once
	regular   *text.GoTextFaceSource
	bold      *text.GoTextFaceSource
	fontsErr  error
)

// loadFonts parses the embedded Go Mono faces once.
func loadFonts() error {
	fontsOnce.Do(func() {
		regular, fontsErr = text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
		if fontsErr != nil {
			return
		}
		bold, fontsErr = text.NewGoTextFaceSource(bytes.NewReader(gomonobold.TTF))
	})
	return fontsErr
}

func face(size float64, isBold bool) *text.GoTextFace {
	src := regular
	if isBold {
		src = bold
	}
	return &text.GoTextFace{Source: src, Size: size}
}

// Canvas draws gauge frames onto an ebiten image.
type Canvas struct {
	img *ebiten.Image

	vs []ebiten.Vertex
	is []uint16
}

// NewCanvas wraps img. A nil image yields a canvas that draws nothing.
func NewCanvas(img *ebiten.Image) *Canvas {
	return &Canvas{img: img}
}

// Image returns the backing image.
func (c *Canvas) Image() *ebiten.Image {
	return c.img
}

func (c *Canvas) Clear() {
	if c.img != nil {
		c.img.Clear()
	}
}

func (c *Canvas) StrokeArc(cx, cy, r float64, arc gauge.Arc, col color.RGBA) {
	c.strokeArc(cx, cy, r, arc, func(float32) color.RGBA { return col })
}

func (c *Canvas) StrokeGradientArc(cx, cy, r float64, arc gauge.Arc, g gauge.Gradient) {
	c.strokeArc(cx, cy, r, arc, func(x float32) color.RGBA { return g.At(float64(x)) })
}

func (c *Canvas) strokeArc(cx, cy, r float64, arc gauge.Arc, colorAt func(x float32) color.RGBA) {
	if c.img == nil || arc.End <= arc.Start {
		return
	}
	var path vector.Path
	path.Arc(float32(cx), float32(cy), float32(r), float32(arc.Start), float32(arc.End), vector.Clockwise)

	op := &vector.StrokeOptions{Width: float32(arc.Width)}
	if arc.RoundCap {
		op.LineCap = vector.LineCapRound
	}
	c.vs, c.is = path.AppendVerticesAndIndicesForStroke(c.vs[:0], c.is[:0], op)
	ShadeVertices(c.vs, colorAt)

	c.img.DrawTriangles(c.vs, c.is, whiteSubImage, &ebiten.DrawTrianglesOptions{AntiAlias: true})
}

func (c *Canvas) StrokeLine(x0, y0, x1, y1, width float64, col color.RGBA) {
	if c.img == nil {
		return
	}
	vector.StrokeLine(c.img, float32(x0), float32(y0), float32(x1), float32(y1), float32(width), col, true)
}

func (c *Canvas) FillText(t gauge.Text, isBold bool, col color.RGBA) {
	if c.img == nil || t.Text == "" || t.FontSize <= 0 || loadFonts() != nil {
		return
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(t.X, t.Y)
	op.PrimaryAlign = text.AlignCenter
	op.SecondaryAlign = text.AlignCenter
	op.ColorScale.ScaleWithColor(col)
	text.Draw(c.img, t.Text, face(t.FontSize, isBold), op)
}

// ShadeVertices colours each vertex by its horizontal position. Colours are
// premultiplied as ebiten expects.
func ShadeVertices(vs []ebiten.Vertex, colorAt func(x float32) color.RGBA) {
	for i := range vs {
		col := colorAt(vs[i].DstX)
		a := float32(col.A) / 0xff
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = float32(col.R) / 0xff * a
		vs[i].ColorG = float32(col.G) / 0xff * a
		vs[i].ColorB = float32(col.B) / 0xff * a
		vs[i].ColorA = a
	}
}

var _ gauge.Canvas = (*Canvas)(nil)
