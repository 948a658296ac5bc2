package reconcile

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// reconcileChildren turns the children under parent from prev into next.
//
// Matching runs forward over next. A keyed child takes the unused previous
// sibling with the same key; otherwise it may take the previous sibling at
// the same index when that one is unkeyed, or when both are unkeyed-eligible
// (the next child is unkeyed and the previous key is not wanted by any next
// sibling). A match that is not the same element is dropped.
//
// Mutations go out in three phases: previous children that were not kept are
// removed, kept children are patched in next order, then children are placed
// from last to first so every Create and Move can anchor on the already
// placed sibling that follows it.
func (p *pass) reconcileChildren(parent Handle, prev []*Instance, next []*vdom.VNode) ([]*Instance, error) {
	next = compact(next)
	if len(prev) == 0 && len(next) == 0 {
		return nil, nil
	}

	keyed := make(map[vdom.NodeKey]int, len(prev))
	for j, c := range prev {
		if k := c.node.Key; k.IsSet() {
			if _, dup := keyed[k]; !dup {
				keyed[k] = j
			}
		}
	}

	claimed := mapset.NewThreadUnsafeSetWithSize[vdom.NodeKey](len(next))
	for _, c := range next {
		if c.Key.IsSet() {
			claimed.Add(c.Key)
		}
	}

	used := mapset.NewThreadUnsafeSetWithSize[int](len(prev))
	match := make([]int, len(next))
	for i, c := range next {
		j := -1
		if c.Key.IsSet() {
			if idx, ok := keyed[c.Key]; ok && !used.Contains(idx) {
				j = idx
			}
		}
		if j < 0 && i < len(prev) && !used.Contains(i) {
			pk := prev[i].node.Key
			if !pk.IsSet() || (!c.Key.IsSet() && !claimed.Contains(pk)) {
				j = i
			}
		}
		if j >= 0 && !vdom.SameElement(prev[j].node, c) {
			j = -1
		}
		if j >= 0 {
			used.Add(j)
		}
		match[i] = j
	}

	for j, c := range prev {
		if !used.Contains(j) {
			if err := p.remove(c); err != nil {
				return prev, err
			}
		}
	}

	out := make([]*Instance, len(next))
	moved := make([]bool, len(next))
	lastPlaced := 0
	for i, c := range next {
		j := match[i]
		if j < 0 {
			continue
		}
		inst, err := p.patch(prev[j], c)
		if err != nil {
			return prev, err
		}
		out[i] = inst
		if j < lastPlaced {
			moved[i] = true
		} else {
			lastPlaced = j
		}
	}

	var anchor Handle
	for i := len(next) - 1; i >= 0; i-- {
		switch {
		case out[i] == nil:
			inst, err := p.mount(parent, anchor, next[i])
			if err != nil {
				return prev, err
			}
			out[i] = inst
		case moved[i]:
			if err := p.move(out[i].handle, anchor); err != nil {
				return prev, err
			}
		}
		anchor = out[i].handle
	}
	return out, nil
}

// compact drops nil entries without copying when there are none.
func compact(nodes []*vdom.VNode) []*vdom.VNode {
	for i, n := range nodes {
		if n != nil {
			continue
		}
		out := append([]*vdom.VNode(nil), nodes[:i]...)
		for _, m := range nodes[i+1:] {
			if m != nil {
				out = append(out, m)
			}
		}
		return out
	}
	return nodes
}
