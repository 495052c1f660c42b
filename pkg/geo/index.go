package geo

import "github.com/dhconnelly/rtreego"

const (
	indexDimensions  = 2
	indexMinChildren = 25
	indexMaxChildren = 50
	pointTolerance   = 1e-6
)

// indexedLocation adapts a catalog position to the rtreego.Spatial interface.
type indexedLocation struct {
	pos  int
	rect rtreego.Rect
}

func (i *indexedLocation) Bounds() rtreego.Rect {
	return i.rect
}

// newSpatialIndex bulk-loads an R-tree keyed on (latitude, longitude).
func newSpatialIndex(locations []Location) *rtreego.Rtree {
	objs := make([]rtreego.Spatial, len(locations))
	for i, loc := range locations {
		objs[i] = &indexedLocation{
			pos:  i,
			rect: rtreego.Point{loc.Latitude, loc.Longitude}.ToRect(pointTolerance),
		}
	}
	return rtreego.NewTree(indexDimensions, indexMinChildren, indexMaxChildren, objs...)
}
