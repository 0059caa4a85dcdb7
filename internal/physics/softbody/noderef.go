package softbody

import "fmt"

// Corner names a node on the border or center of a cloth patch.
type Corner int

const (
	NoCorner Corner = iota
	LeftTop
	RightTop
	LeftBottom
	RightBottom
	Left
	Right
	Top
	Bottom
	Center
)

var cornerNames = [...]string{
	"", "left-top", "right-top", "left-bottom", "right-bottom", "left", "right", "top", "bottom", "center",
}

func (c Corner) String() string {
	if c < 0 || int(c) >= len(cornerNames) {
		return fmt.Sprintf("corner(%d)", int(c))
	}
	return cornerNames[c]
}

// NodeRef picks a cloth node either by named corner or by raw index.
type NodeRef struct {
	Corner Corner
	Index  int
}

// At refers to a named corner.
func At(c Corner) NodeRef { return NodeRef{Corner: c} }

// Raw refers to a node by index.
func Raw(i int) NodeRef { return NodeRef{Index: i} }

func (r NodeRef) String() string {
	if r.Corner != NoCorner {
		return r.Corner.String()
	}
	return fmt.Sprintf("#%d", r.Index)
}

// Resolve returns the node index for a patch of segW x segH segments.
// Rows run top to bottom. Unknown corners resolve to -1.
func (r NodeRef) Resolve(segW, segH int) int {
	at := func(x, y int) int { return y*(segW+1) + x }
	switch r.Corner {
	case NoCorner:
		return r.Index
	case LeftTop:
		return 0
	case RightTop:
		return segW
	case LeftBottom:
		return at(0, segH)
	case RightBottom:
		return at(segW, segH)
	case Left:
		return at(0, segH/2)
	case Right:
		return at(segW, segH/2)
	case Top:
		return at(segW/2, 0)
	case Bottom:
		return at(segW/2, segH)
	case Center:
		return at(segW/2, segH/2)
	default:
		return -1
	}
}
