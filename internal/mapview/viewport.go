package mapview

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	tileSize = 256
	// earthCircumference is the equatorial length of the Web Mercator plane in meters.
	earthCircumference = 2 * math.Pi * 6378137
)

// Viewport is the visible part of the map: a WGS84 centre, a zoom level and
// the pixel size of the map element.
type Viewport struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
}

// resolution is meters per pixel at the viewport's zoom.
func (v Viewport) resolution() float64 {
	return earthCircumference / (tileSize * math.Pow(2, v.Zoom))
}

// Pixel projects a WGS84 point to pixel coordinates relative to the top-left
// corner of the viewport.
func (v Viewport) Pixel(p orb.Point) orb.Point {
	res := v.resolution()
	c := project.WGS84.ToMercator(v.Center)
	m := project.WGS84.ToMercator(p)
	return orb.Point{
		(m.X()-c.X())/res + float64(v.Width)/2,
		(c.Y()-m.Y())/res + float64(v.Height)/2,
	}
}

// Bound returns the WGS84 bounds covered by the viewport.
func (v Viewport) Bound() orb.Bound {
	res := v.resolution()
	c := project.WGS84.ToMercator(v.Center)
	halfW := float64(v.Width) / 2 * res
	halfH := float64(v.Height) / 2 * res
	min := project.Mercator.ToWGS84(orb.Point{c.X() - halfW, c.Y() - halfH})
	max := project.Mercator.ToWGS84(orb.Point{c.X() + halfW, c.Y() + halfH})
	return orb.Bound{Min: min, Max: max}
}
