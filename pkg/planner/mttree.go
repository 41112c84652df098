package planner

// mtTree is the min-time resource tree (component B): a red-black tree
// of the same points ordered by remaining ascending, augmented at every
// node with subtreeMin = min(at) over the node and its descendants.
// Grounded on resource/planner/c++/mintime_resource_tree.cpp.
type mtTree struct {
	a    *arena
	root int
	size int
}

func newMTTree(a *arena) *mtTree {
	return &mtTree{a: a, root: nilIdx}
}

func (t *mtTree) empty() bool { return t.root == nilIdx }
func (t *mtTree) len() int    { return t.size }

func (t *mtTree) leftOf(i int) int   { return t.a.at(i).mtLeft }
func (t *mtTree) rightOf(i int) int  { return t.a.at(i).mtRight }
func (t *mtTree) parentOf(i int) int { return t.a.at(i).mtParent }
func (t *mtTree) isRed(i int) bool   { return i != nilIdx && t.a.at(i).mtRed }

func (t *mtTree) setLeft(i, v int) {
	t.a.at(i).mtLeft = v
	if v != nilIdx {
		t.a.at(v).mtParent = i
	}
}

func (t *mtTree) setRight(i, v int) {
	t.a.at(i).mtRight = v
	if v != nilIdx {
		t.a.at(v).mtParent = i
	}
}

// subtreeMinOf returns the augmentation value of i, treating nilIdx as
// +inf so it never wins a min() comparison.
func (t *mtTree) subtreeMinOf(i int) (int64, bool) {
	if i == nilIdx {
		return 0, false
	}
	return t.a.at(i).subtreeMin, true
}

// fix recomputes i's subtreeMin from its children and own at, returning
// true if the value changed (so callers can stop propagating once a
// parent's value is unaffected, matching the source's early-exit fix()).
func (t *mtTree) fix(i int) bool {
	n := t.a.at(i)
	m := n.at
	if v, ok := t.subtreeMinOf(n.mtLeft); ok && v < m {
		m = v
	}
	if v, ok := t.subtreeMinOf(n.mtRight); ok && v < m {
		m = v
	}
	if n.subtreeMin == m {
		return false
	}
	n.subtreeMin = m
	return true
}

// fixUp recomputes subtreeMin from i up to the root, stopping as soon as
// a node's value doesn't change.
func (t *mtTree) fixUp(i int) {
	for i != nilIdx {
		if !t.fix(i) {
			return
		}
		i = t.parentOf(i)
	}
}

func (t *mtTree) rotateLeft(x int) {
	y := t.rightOf(x)
	t.setRight(x, t.leftOf(y))
	p := t.parentOf(x)
	t.a.at(y).mtParent = p
	if p == nilIdx {
		t.root = y
	} else if t.leftOf(p) == x {
		t.a.at(p).mtLeft = y
	} else {
		t.a.at(p).mtRight = y
	}
	t.setLeft(y, x)
	t.fix(x)
	t.fix(y)
}

func (t *mtTree) rotateRight(x int) {
	y := t.leftOf(x)
	t.setLeft(x, t.rightOf(y))
	p := t.parentOf(x)
	t.a.at(y).mtParent = p
	if p == nilIdx {
		t.root = y
	} else if t.rightOf(p) == x {
		t.a.at(p).mtRight = y
	} else {
		t.a.at(p).mtLeft = y
	}
	t.setRight(y, x)
	t.fix(x)
	t.fix(y)
}

// insert places idx according to its current remaining field.
func (t *mtTree) insert(idx int) {
	n := t.a.at(idx)
	n.mtLeft, n.mtRight, n.mtParent = nilIdx, nilIdx, nilIdx
	n.mtRed = true
	n.subtreeMin = n.at
	n.inMT = true

	if t.root == nilIdx {
		t.root = idx
		n.mtRed = false
		t.size++
		return
	}

	cur := t.root
	var parent int
	goLeft := false
	for cur != nilIdx {
		parent = cur
		if n.remaining < t.a.at(cur).remaining {
			goLeft = true
			cur = t.leftOf(cur)
		} else {
			goLeft = false
			cur = t.rightOf(cur)
		}
	}
	n.mtParent = parent
	if goLeft {
		t.a.at(parent).mtLeft = idx
	} else {
		t.a.at(parent).mtRight = idx
	}
	t.size++
	t.fixUp(parent)
	t.insertFixup(idx)
}

func (t *mtTree) insertFixup(z int) {
	for t.isRed(t.parentOf(z)) {
		p := t.parentOf(z)
		gp := t.parentOf(p)
		if p == t.leftOf(gp) {
			u := t.rightOf(gp)
			if t.isRed(u) {
				t.a.at(p).mtRed = false
				t.a.at(u).mtRed = false
				t.a.at(gp).mtRed = true
				z = gp
			} else {
				if z == t.rightOf(p) {
					z = p
					t.rotateLeft(z)
					p = t.parentOf(z)
					gp = t.parentOf(p)
				}
				t.a.at(p).mtRed = false
				t.a.at(gp).mtRed = true
				t.rotateRight(gp)
			}
		} else {
			u := t.leftOf(gp)
			if t.isRed(u) {
				t.a.at(p).mtRed = false
				t.a.at(u).mtRed = false
				t.a.at(gp).mtRed = true
				z = gp
			} else {
				if z == t.leftOf(p) {
					z = p
					t.rotateRight(z)
					p = t.parentOf(z)
					gp = t.parentOf(p)
				}
				t.a.at(p).mtRed = false
				t.a.at(gp).mtRed = true
				t.rotateLeft(gp)
			}
		}
	}
	t.a.at(t.root).mtRed = false
}

func (t *mtTree) minimum(x int) int {
	for t.leftOf(x) != nilIdx {
		x = t.leftOf(x)
	}
	return x
}

func (t *mtTree) transplant(u, v int) {
	p := t.parentOf(u)
	if p == nilIdx {
		t.root = v
	} else if u == t.leftOf(p) {
		t.a.at(p).mtLeft = v
	} else {
		t.a.at(p).mtRight = v
	}
	if v != nilIdx {
		t.a.at(v).mtParent = p
	}
}

// remove unlinks idx from the mt-tree; the point stays alive in the
// arena and in the sp-tree. Marks inMT false.
func (t *mtTree) remove(idx int) {
	z := idx
	y := z
	yOrigRed := t.isRed(y)
	var x, xParent int

	if t.leftOf(z) == nilIdx {
		x = t.rightOf(z)
		xParent = t.parentOf(z)
		t.transplant(z, t.rightOf(z))
	} else if t.rightOf(z) == nilIdx {
		x = t.leftOf(z)
		xParent = t.parentOf(z)
		t.transplant(z, t.leftOf(z))
	} else {
		y = t.minimum(t.rightOf(z))
		yOrigRed = t.isRed(y)
		x = t.rightOf(y)
		if t.parentOf(y) == z {
			xParent = y
		} else {
			xParent = t.parentOf(y)
			t.transplant(y, t.rightOf(y))
			t.setRight(y, t.rightOf(z))
			t.fix(y)
		}
		t.transplant(z, y)
		t.setLeft(y, t.leftOf(z))
		t.a.at(y).mtRed = t.isRed(z)
		t.fix(y)
	}
	n := t.a.at(idx)
	n.mtLeft, n.mtRight, n.mtParent = nilIdx, nilIdx, nilIdx
	n.inMT = false
	t.size--

	t.fixUp(xParent)
	if !yOrigRed {
		t.removeFixup(x, xParent)
	}
}

func (t *mtTree) removeFixup(x, parent int) {
	for x != t.root && !t.isRed(x) {
		if parent == nilIdx {
			break
		}
		if x == t.leftOf(parent) {
			w := t.rightOf(parent)
			if t.isRed(w) {
				t.a.at(w).mtRed = false
				t.a.at(parent).mtRed = true
				t.rotateLeft(parent)
				w = t.rightOf(parent)
			}
			if !t.isRed(t.leftOf(w)) && !t.isRed(t.rightOf(w)) {
				if w != nilIdx {
					t.a.at(w).mtRed = true
				}
				x = parent
				parent = t.parentOf(x)
			} else {
				if !t.isRed(t.rightOf(w)) {
					if t.leftOf(w) != nilIdx {
						t.a.at(t.leftOf(w)).mtRed = false
					}
					t.a.at(w).mtRed = true
					t.rotateRight(w)
					w = t.rightOf(parent)
				}
				t.a.at(w).mtRed = t.isRed(parent)
				t.a.at(parent).mtRed = false
				if t.rightOf(w) != nilIdx {
					t.a.at(t.rightOf(w)).mtRed = false
				}
				t.rotateLeft(parent)
				x = t.root
				parent = nilIdx
			}
		} else {
			w := t.leftOf(parent)
			if t.isRed(w) {
				t.a.at(w).mtRed = false
				t.a.at(parent).mtRed = true
				t.rotateRight(parent)
				w = t.leftOf(parent)
			}
			if !t.isRed(t.rightOf(w)) && !t.isRed(t.leftOf(w)) {
				if w != nilIdx {
					t.a.at(w).mtRed = true
				}
				x = parent
				parent = t.parentOf(x)
			} else {
				if !t.isRed(t.leftOf(w)) {
					if t.rightOf(w) != nilIdx {
						t.a.at(t.rightOf(w)).mtRed = false
					}
					t.a.at(w).mtRed = true
					t.rotateLeft(w)
					w = t.leftOf(parent)
				}
				t.a.at(w).mtRed = t.isRed(parent)
				t.a.at(parent).mtRed = false
				if t.leftOf(w) != nilIdx {
					t.a.at(t.leftOf(w)).mtRed = false
				}
				t.rotateRight(parent)
				x = t.root
				parent = nilIdx
			}
		}
	}
	if x != nilIdx {
		t.a.at(x).mtRed = false
	}
}

// mintime walks from the root looking for the point with the smallest at
// among those whose remaining >= request. Returns nilIdx if none qualify.
//
// if request <= node.remaining, the node itself and its entire right
// subtree qualify; candidate = min(node.at, subtreeMin(right)), then
// descend left looking for a smaller at. Otherwise the node and its
// whole left subtree are disqualified (remaining only decreases going
// left), so descend right.
func (t *mtTree) mintime(request int64) int {
	cur := t.root
	best := nilIdx
	var bestAt int64
	for cur != nilIdx {
		n := t.a.at(cur)
		if request <= n.remaining {
			cand := cur
			candAt := n.at
			if v, ok := t.subtreeMinOf(n.mtRight); ok && v < candAt {
				candAt = v
				// the actual node achieving this value may be anywhere in
				// the right subtree; since we only need the point for its
				// at (to compare further), resolve it lazily below.
				cand = t.findExact(n.mtRight, v)
			}
			if best == nilIdx || candAt < bestAt {
				best = cand
				bestAt = candAt
			}
			cur = n.mtLeft
		} else {
			cur = n.mtRight
		}
	}
	return best
}

// findExact descends from root looking for the node with at == target,
// preferring the side whose subtreeMin matches, per
// mintime_resource_tree.cpp's find_mintime_point.
func (t *mtTree) findExact(root int, target int64) int {
	cur := root
	for cur != nilIdx {
		n := t.a.at(cur)
		if n.at == target {
			return cur
		}
		if v, ok := t.subtreeMinOf(n.mtLeft); ok && v == target {
			cur = n.mtLeft
			continue
		}
		if v, ok := t.subtreeMinOf(n.mtRight); ok && v == target {
			cur = n.mtRight
			continue
		}
		return cur
	}
	return nilIdx
}
