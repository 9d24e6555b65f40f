// Package images - Image geometry utilities for detection pipelines.
package images

import "github.com/chewxy/math32"

// Rect is a lightweight bounding box in pixel space.
// Coordinates are float32 because detections arrive at sub-pixel precision
// and only the exporter rounds them.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 float32
}

// Area returns the area of r in square pixels. Degenerate (inverted) rects
// report zero rather than a negative area.
func (r Rect) Area() float32 {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Clip limits r to the bounds [0,width)x[0,height).
func (r Rect) Clip(width, height float32) Rect {
	return Rect{
		X1: math32.Max(0, math32.Min(r.X1, width)),
		Y1: math32.Max(0, math32.Min(r.Y1, height)),
		X2: math32.Max(0, math32.Min(r.X2, width)),
		Y2: math32.Max(0, math32.Min(r.Y2, height)),
	}
}

// CalculateIoU measures the overlap of two rectangles as
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the rectangles are identical, 0.0 means they do not
// overlap at all. The union is computed by inclusion-exclusion
// (Area(A) + Area(B) - Area(A∩B)) so the overlap is not double-counted.
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
func CalculateIoU(r, o Rect) float32 {
	// The intersection starts where both rectangles have begun and ends as
	// soon as the first one ends.
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
