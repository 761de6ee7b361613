package graph

import "github.com/sharedcode/graphcore"

// relIDArray holds one node's relationship ids of a single type, segmented
// by direction. The loops segment exists only once a self-loop for the type
// has been seen on the node; from then on the array is loops-capable and
// every later merge for that (node, type) stays loops-capable.
type relIDArray struct {
	typeName     string
	out          []int64
	in           []int64
	loops        []int64
	loopsCapable bool
}

func newRelIDArray(typeName string, loopsCapable bool) *relIDArray {
	return &relIDArray{typeName: typeName, loopsCapable: loopsCapable}
}

func (a *relIDArray) add(id int64, dir graphcore.Direction) {
	switch dir {
	case graphcore.Both:
		a.loopsCapable = true
		a.loops = append(a.loops, id)
	case graphcore.Outgoing:
		a.out = append(a.out, id)
	default:
		a.in = append(a.in, id)
	}
}

// merge appends other's segments. Loops-capability is sticky.
func (a *relIDArray) merge(other *relIDArray) {
	a.out = append(a.out, other.out...)
	a.in = append(a.in, other.in...)
	if other.loopsCapable {
		a.loopsCapable = true
		a.loops = append(a.loops, other.loops...)
	}
}

// remove drops id from whichever segment holds it.
func (a *relIDArray) remove(id int64) {
	a.out = removeID(a.out, id)
	a.in = removeID(a.in, id)
	a.loops = removeID(a.loops, id)
}

func removeID(ids []int64, id int64) []int64 {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// each yields every (id, direction) pair; self-loops yield once, tagged Both.
func (a *relIDArray) each(yield func(id int64, dir graphcore.Direction) bool) bool {
	for _, id := range a.out {
		if !yield(id, graphcore.Outgoing) {
			return false
		}
	}
	for _, id := range a.in {
		if !yield(id, graphcore.Incoming) {
			return false
		}
	}
	for _, id := range a.loops {
		if !yield(id, graphcore.Both) {
			return false
		}
	}
	return true
}

func (a *relIDArray) size() int {
	return len(a.out) + len(a.in) + len(a.loops)
}
