package main

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/jakecoffman/cp"

	"github.com/milk9111/matter/dynamics"
)

// drawSpace renders every shape in the space as wireframes. Colors key off
// what the shape means to the simulation: static geometry, plain bodies,
// and parts carrying materials each get their own hue. full also draws
// contact points.
func drawSpace(screen *ebiten.Image, space *dynamics.Space, full bool) {
	if screen == nil || space == nil {
		return
	}
	cp.DrawSpace(space.CP(), &spaceDrawer{screen: screen, space: space, full: full})
}

type spaceDrawer struct {
	screen *ebiten.Image
	space  *dynamics.Space
	full   bool
}

func (d *spaceDrawer) DrawCircle(pos cp.Vector, angle, radius float64, outline, fill cp.FColor, data interface{}) {
	c := fcolorToRGBA(outline)
	steps := 20
	prev := cp.Vector{X: pos.X + radius, Y: pos.Y}
	for i := 1; i <= steps; i++ {
		th := float64(i) * (2 * math.Pi / float64(steps))
		cur := cp.Vector{X: pos.X + math.Cos(th)*radius, Y: pos.Y + math.Sin(th)*radius}
		ebitenutil.DrawLine(d.screen, prev.X, prev.Y, cur.X, cur.Y, c)
		prev = cur
	}
	// spoke showing the body angle, so rolling is visible
	ax := pos.X + math.Cos(angle)*radius
	ay := pos.Y + math.Sin(angle)*radius
	ebitenutil.DrawLine(d.screen, pos.X, pos.Y, ax, ay, c)
}

func (d *spaceDrawer) DrawSegment(a, b cp.Vector, fill cp.FColor, data interface{}) {
	ebitenutil.DrawLine(d.screen, a.X, a.Y, b.X, b.Y, fcolorToRGBA(fill))
}

func (d *spaceDrawer) DrawFatSegment(a, b cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	ebitenutil.DrawLine(d.screen, a.X, a.Y, b.X, b.Y, fcolorToRGBA(outline))
	if radius > 0 {
		d.DrawCircle(a, 0, radius, outline, fill, data)
		d.DrawCircle(b, 0, radius, outline, fill, data)
	}
}

func (d *spaceDrawer) DrawPolygon(count int, verts []cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	if count == 0 {
		return
	}
	c := fcolorToRGBA(outline)
	for i := 0; i < count; i++ {
		a := verts[i]
		b := verts[(i+1)%count]
		ebitenutil.DrawLine(d.screen, a.X, a.Y, b.X, b.Y, c)
	}
}

func (d *spaceDrawer) DrawDot(size float64, pos cp.Vector, fill cp.FColor, data interface{}) {
	c := fcolorToRGBA(fill)
	l := size / 2
	ebitenutil.DrawLine(d.screen, pos.X-l, pos.Y, pos.X+l, pos.Y, c)
	ebitenutil.DrawLine(d.screen, pos.X, pos.Y-l, pos.X, pos.Y+l, c)
}

func (d *spaceDrawer) Flags() uint {
	if d.full {
		return cp.DRAW_SHAPES | cp.DRAW_COLLISION_POINTS
	}
	return cp.DRAW_SHAPES
}

func (d *spaceDrawer) OutlineColor() cp.FColor {
	return cp.FColor{R: 0.8, G: 0.8, B: 0.8, A: 1}
}

func (d *spaceDrawer) ShapeColor(shape *cp.Shape, data interface{}) cp.FColor {
	if shape == nil {
		return cp.FColor{R: 1, G: 1, B: 1, A: 1}
	}
	part, ok := d.space.PartForShape(shape)
	static := shape.Body() != nil && shape.Body().GetType() == cp.BODY_STATIC
	switch {
	case ok && len(part.Materials()) > 0 && static:
		return cp.FColor{R: 0.35, G: 0.65, B: 1, A: 1}
	case ok && len(part.Materials()) > 0:
		return cp.FColor{R: 0.3, G: 0.95, B: 0.6, A: 1}
	case static:
		return cp.FColor{R: 0.45, G: 0.45, B: 0.55, A: 1}
	default:
		return cp.FColor{R: 0.85, G: 0.5, B: 0.9, A: 1}
	}
}

func (d *spaceDrawer) ConstraintColor() cp.FColor {
	return cp.FColor{R: 0.7, G: 0.7, B: 0.7, A: 1}
}

func (d *spaceDrawer) CollisionPointColor() cp.FColor {
	return cp.FColor{R: 1, G: 0.2, B: 0.2, A: 1}
}

func (d *spaceDrawer) Data() interface{} {
	return nil
}

func fcolorToRGBA(c cp.FColor) color.RGBA {
	clamp := func(v float32) uint8 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint8(v * 255)
	}
	return color.RGBA{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B), A: clamp(c.A)}
}
