// Package world provides the shared world model: placed structures, the
// government singleton, and the registry all agents and players read from.
package world

import "math"

// World bounds in world units. All movement is clamped to this rectangle.
const (
	Width  = 2200.0
	Height = 1400.0
)

// Rect is a positioned rectangle in world coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the rectangle's center point.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Structure is a generic placed building (factory or bank).
type Structure struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Rect
}

// House is a placeable dwelling. Occupancy is exclusive: a house is either
// rented (RentedBy set), owned (OwnerID set), or vacant — never both.
type House struct {
	ID string `json:"id"`
	Rect
	OwnerID       string `json:"ownerId,omitempty"`
	RentedBy      string `json:"rentedBy,omitempty"`
	MarkerInitial string `json:"markerInitial,omitempty"`
	CreatedAt     int64  `json:"createdAt,omitempty"`
}

// Vacant reports whether the house is neither rented nor owned.
func (h House) Vacant() bool {
	return h.OwnerID == "" && h.RentedBy == ""
}

// Shop is a player-owned store. Cashbox accumulates purchase revenue and is
// the fund salaries are paid from.
type Shop struct {
	ID string `json:"id"`
	Rect
	Kind       string `json:"kind,omitempty"`
	Price      int    `json:"price,omitempty"`
	Cashbox    int    `json:"cashbox"`
	OwnerID    string `json:"ownerId,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
	CreatedAt  int64  `json:"createdAt,omitempty"`
}

// Placement records one government-placed item.
type Placement struct {
	Kind  string `json:"kind,omitempty"`
	Label string `json:"label,omitempty"`
	Cost  int    `json:"cost,omitempty"`
	Rect
}

// Government is the singleton treasury plus its placement history.
type Government struct {
	Funds  int         `json:"funds"`
	Placed []Placement `json:"placed"`
}

// SimilarPlacement is the spatial-tolerance equality predicate used to
// reconcile client-replayed structures against the live registry. Structure
// identity does not survive a client state reload, so near-coincident
// rectangles are treated as the same placement.
func SimilarPlacement(a, b Rect, posTol, sizeTol float64) bool {
	return math.Abs(a.X-b.X) <= posTol &&
		math.Abs(a.Y-b.Y) <= posTol &&
		math.Abs(a.W-b.W) <= sizeTol &&
		math.Abs(a.H-b.H) <= sizeTol
}

// Dist returns the Euclidean distance between two points.
func Dist(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// Clamp limits v to the [lo, hi] range.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
