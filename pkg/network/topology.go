package network

// IsolatedNodes returns the dense indices of junctions that have no path of
// usable links to a reservoir or tank. usable reports whether flow can pass
// through link i; a nil usable treats every link as open.
func (n *Network) IsolatedNodes(usable func(i int) bool) []int {
	reached := make([]bool, len(n.nodes))
	queue := make([]int, 0, len(n.nodes))
	for i, node := range n.nodes {
		if node.Kind.FixedHead() {
			reached[i] = true
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, li := range n.IncidentIndices(cur) {
			if usable != nil && !usable(li) {
				continue
			}
			link := n.links[li]
			other := link.To
			if other == n.nodes[cur].ID {
				other = link.From
			}
			oi, ok := n.nodeIndex[other]
			if !ok || reached[oi] {
				continue
			}
			reached[oi] = true
			queue = append(queue, oi)
		}
	}

	isolated := make([]int, 0)
	for i, ok := range reached {
		if !ok {
			isolated = append(isolated, i)
		}
	}
	return isolated
}

// IsolatedJunctions returns the ids of junctions cut off from every fixed-head
// node when the links reported closed are removed.
func (n *Network) IsolatedJunctions(closed func(*Link) bool) []string {
	usable := func(i int) bool { return closed == nil || !closed(n.links[i]) }
	idx := n.IsolatedNodes(usable)
	out := make([]string, len(idx))
	for i, ni := range idx {
		out[i] = n.nodes[ni].ID
	}
	return out
}

// InitiallyClosed reports links whose initial status is CLOSED
func InitiallyClosed(l *Link) bool {
	return l.Status == Closed
}
