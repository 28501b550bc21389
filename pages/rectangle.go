package pages

import (
	"fmt"
	"math"

	"github.com/tsawler/folio/core"
)

// Rectangle is a PDF rectangle with normalised corners: LLX <= URX and
// LLY <= URY.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// NewRectangle returns the rectangle spanned by two corner points.
func NewRectangle(x1, y1, x2, y2 float64) Rectangle {
	return Rectangle{
		LLX: math.Min(x1, x2), LLY: math.Min(y1, y2),
		URX: math.Max(x1, x2), URY: math.Max(y1, y2),
	}
}

// RectangleFromArray reads a four-number array. Elements may be references
// when res is non-nil.
func RectangleFromArray(arr core.Array, res Resolver) (Rectangle, bool) {
	if len(arr) < 4 {
		return Rectangle{}, false
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		obj := arr[i]
		if res != nil {
			var err error
			if obj, err = res.Resolve(obj); err != nil {
				return Rectangle{}, false
			}
		}
		f, ok := core.Number(obj)
		if !ok {
			return Rectangle{}, false
		}
		v[i] = f
	}
	return NewRectangle(v[0], v[1], v[2], v[3]), true
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Rotate returns the rectangle turned by 90 degrees about its origin.
func (r Rectangle) Rotate() Rectangle {
	return Rectangle{LLX: r.LLY, LLY: r.LLX, URX: r.URY, URY: r.URX}
}

// Array returns the rectangle as a PDF array.
func (r Rectangle) Array() core.Array {
	num := func(f float64) core.Object {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return core.Int(int64(f))
		}
		return core.Real(f)
	}
	return core.Array{num(r.LLX), num(r.LLY), num(r.URX), num(r.URY)}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("[%g %g %g %g]", r.LLX, r.LLY, r.URX, r.URY)
}
