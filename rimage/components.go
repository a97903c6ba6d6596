package rimage

import (
	"image"

	"github.com/golang/geo/r2"
)

// Component is a 4-connected region of non-zero pixels in a mask.
type Component struct {
	// Area is the number of pixels in the region.
	Area int
	// Centroid is the mean pixel position of the region.
	Centroid r2.Point
	// Bounds is the smallest rectangle holding the region.
	Bounds image.Rectangle
}

// ConnectedComponents labels the 4-connected regions of non-zero pixels in mask, in the raster
// order of each region's first pixel.
func ConnectedComponents(mask *image.Gray) []Component {
	bounds := mask.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	visited := make([]bool, w*h)
	var (
		out   []Component
		stack []image.Point
	)
	set := func(x, y int) bool {
		return mask.Pix[mask.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)] != 0
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || !set(x, y) {
				continue
			}
			visited[y*w+x] = true
			stack = append(stack[:0], image.Pt(x, y))
			comp := Component{Bounds: image.Rect(x, y, x+1, y+1)}
			var sumX, sumY float64
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				comp.Area++
				sumX += float64(p.X)
				sumY += float64(p.Y)
				comp.Bounds = comp.Bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
				for _, n := range [4]image.Point{{p.X - 1, p.Y}, {p.X + 1, p.Y}, {p.X, p.Y - 1}, {p.X, p.Y + 1}} {
					if n.X < 0 || n.Y < 0 || n.X >= w || n.Y >= h || visited[n.Y*w+n.X] || !set(n.X, n.Y) {
						continue
					}
					visited[n.Y*w+n.X] = true
					stack = append(stack, n)
				}
			}
			comp.Centroid = r2.Point{X: sumX / float64(comp.Area), Y: sumY / float64(comp.Area)}
			out = append(out, comp)
		}
	}
	return out
}
