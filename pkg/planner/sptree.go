package planner

// spTree is the scheduled-point tree (component A): a red-black tree of
// points ordered by at, supporting search, get_state (largest point with
// at <= t), and successor iteration. Grounded on
// resource/planner/c++/scheduled_point_tree.cpp.
type spTree struct {
	a    *arena
	root int
	size int
}

func newSPTree(a *arena) *spTree {
	return &spTree{a: a, root: nilIdx}
}

func (t *spTree) empty() bool { return t.root == nilIdx }
func (t *spTree) len() int    { return t.size }

func (t *spTree) leftOf(i int) int   { return t.a.at(i).spLeft }
func (t *spTree) rightOf(i int) int  { return t.a.at(i).spRight }
func (t *spTree) parentOf(i int) int { return t.a.at(i).spParent }
func (t *spTree) isRed(i int) bool   { return i != nilIdx && t.a.at(i).spRed }

func (t *spTree) setLeft(i, v int) {
	t.a.at(i).spLeft = v
	if v != nilIdx {
		t.a.at(v).spParent = i
	}
}

func (t *spTree) setRight(i, v int) {
	t.a.at(i).spRight = v
	if v != nilIdx {
		t.a.at(v).spParent = i
	}
}

func (t *spTree) rotateLeft(x int) {
	y := t.rightOf(x)
	t.setRight(x, t.leftOf(y))
	p := t.parentOf(x)
	t.a.at(y).spParent = p
	if p == nilIdx {
		t.root = y
	} else if t.leftOf(p) == x {
		t.a.at(p).spLeft = y
	} else {
		t.a.at(p).spRight = y
	}
	t.setLeft(y, x)
}

func (t *spTree) rotateRight(x int) {
	y := t.leftOf(x)
	t.setLeft(x, t.rightOf(y))
	p := t.parentOf(x)
	t.a.at(y).spParent = p
	if p == nilIdx {
		t.root = y
	} else if t.rightOf(p) == x {
		t.a.at(p).spRight = y
	} else {
		t.a.at(p).spLeft = y
	}
	t.setRight(y, x)
}

// insert places point idx according to its current at field. Duplicate
// at values are rejected by the planner before reaching here.
func (t *spTree) insert(idx int) {
	n := t.a.at(idx)
	n.spLeft, n.spRight, n.spParent = nilIdx, nilIdx, nilIdx
	n.spRed = true

	if t.root == nilIdx {
		t.root = idx
		n.spRed = false
		t.size++
		return
	}

	cur := t.root
	var parent int
	goLeft := false
	for cur != nilIdx {
		parent = cur
		if n.at < t.a.at(cur).at {
			goLeft = true
			cur = t.leftOf(cur)
		} else {
			goLeft = false
			cur = t.rightOf(cur)
		}
	}
	n.spParent = parent
	if goLeft {
		t.a.at(parent).spLeft = idx
	} else {
		t.a.at(parent).spRight = idx
	}
	t.size++
	t.insertFixup(idx)
}

func (t *spTree) insertFixup(z int) {
	for t.isRed(t.parentOf(z)) {
		p := t.parentOf(z)
		gp := t.parentOf(p)
		if p == t.leftOf(gp) {
			u := t.rightOf(gp)
			if t.isRed(u) {
				t.a.at(p).spRed = false
				t.a.at(u).spRed = false
				t.a.at(gp).spRed = true
				z = gp
			} else {
				if z == t.rightOf(p) {
					z = p
					t.rotateLeft(z)
					p = t.parentOf(z)
					gp = t.parentOf(p)
				}
				t.a.at(p).spRed = false
				t.a.at(gp).spRed = true
				t.rotateRight(gp)
			}
		} else {
			u := t.leftOf(gp)
			if t.isRed(u) {
				t.a.at(p).spRed = false
				t.a.at(u).spRed = false
				t.a.at(gp).spRed = true
				z = gp
			} else {
				if z == t.leftOf(p) {
					z = p
					t.rotateRight(z)
					p = t.parentOf(z)
					gp = t.parentOf(p)
				}
				t.a.at(p).spRed = false
				t.a.at(gp).spRed = true
				t.rotateLeft(gp)
			}
		}
	}
	t.a.at(t.root).spRed = false
}

func (t *spTree) minimum(x int) int {
	for t.leftOf(x) != nilIdx {
		x = t.leftOf(x)
	}
	return x
}

func (t *spTree) transplant(u, v int) {
	p := t.parentOf(u)
	if p == nilIdx {
		t.root = v
	} else if u == t.leftOf(p) {
		t.a.at(p).spLeft = v
	} else {
		t.a.at(p).spRight = v
	}
	if v != nilIdx {
		t.a.at(v).spParent = p
	}
}

// remove unlinks idx from the tree; it does not release it from the arena.
func (t *spTree) remove(idx int) {
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
		}
		t.transplant(z, y)
		t.setLeft(y, t.leftOf(z))
		t.a.at(y).spRed = t.isRed(z)
	}
	n := t.a.at(idx)
	n.spLeft, n.spRight, n.spParent = nilIdx, nilIdx, nilIdx
	t.size--

	if !yOrigRed {
		t.removeFixup(x, xParent)
	}
}

func (t *spTree) removeFixup(x, parent int) {
	for x != t.root && !t.isRed(x) {
		if parent == nilIdx {
			break
		}
		if x == t.leftOf(parent) {
			w := t.rightOf(parent)
			if t.isRed(w) {
				t.a.at(w).spRed = false
				t.a.at(parent).spRed = true
				t.rotateLeft(parent)
				w = t.rightOf(parent)
			}
			if !t.isRed(t.leftOf(w)) && !t.isRed(t.rightOf(w)) {
				if w != nilIdx {
					t.a.at(w).spRed = true
				}
				x = parent
				parent = t.parentOf(x)
			} else {
				if !t.isRed(t.rightOf(w)) {
					if t.leftOf(w) != nilIdx {
						t.a.at(t.leftOf(w)).spRed = false
					}
					t.a.at(w).spRed = true
					t.rotateRight(w)
					w = t.rightOf(parent)
				}
				t.a.at(w).spRed = t.isRed(parent)
				t.a.at(parent).spRed = false
				if t.rightOf(w) != nilIdx {
					t.a.at(t.rightOf(w)).spRed = false
				}
				t.rotateLeft(parent)
				x = t.root
				parent = nilIdx
			}
		} else {
			w := t.leftOf(parent)
			if t.isRed(w) {
				t.a.at(w).spRed = false
				t.a.at(parent).spRed = true
				t.rotateRight(parent)
				w = t.leftOf(parent)
			}
			if !t.isRed(t.rightOf(w)) && !t.isRed(t.leftOf(w)) {
				if w != nilIdx {
					t.a.at(w).spRed = true
				}
				x = parent
				parent = t.parentOf(x)
			} else {
				if !t.isRed(t.leftOf(w)) {
					if t.rightOf(w) != nilIdx {
						t.a.at(t.rightOf(w)).spRed = false
					}
					t.a.at(w).spRed = true
					t.rotateLeft(w)
					w = t.leftOf(parent)
				}
				t.a.at(w).spRed = t.isRed(parent)
				t.a.at(parent).spRed = false
				if t.leftOf(w) != nilIdx {
					t.a.at(t.leftOf(w)).spRed = false
				}
				t.rotateRight(parent)
				x = t.root
				parent = nilIdx
			}
		}
	}
	if x != nilIdx {
		t.a.at(x).spRed = false
	}
}

// search returns the point whose at exactly equals tm, or nilIdx.
func (t *spTree) search(tm int64) int {
	cur := t.root
	for cur != nilIdx {
		at := t.a.at(cur).at
		if tm == at {
			return cur
		} else if tm < at {
			cur = t.leftOf(cur)
		} else {
			cur = t.rightOf(cur)
		}
	}
	return nilIdx
}

// getState returns the point with the largest at <= target, tracking the
// most recently visited such point while descending.
func (t *spTree) getState(target int64) int {
	lastState := nilIdx
	cur := t.root
	for cur != nilIdx {
		at := t.a.at(cur).at
		switch {
		case target < at:
			cur = t.leftOf(cur)
		case target > at:
			lastState = cur
			cur = t.rightOf(cur)
		default:
			return cur
		}
	}
	return lastState
}

// minimumOfRoot returns the earliest point in the tree, or nilIdx if empty.
func (t *spTree) minimumOfRoot() int {
	if t.root == nilIdx {
		return nilIdx
	}
	return t.minimum(t.root)
}

// next returns the in-order successor of idx, or nilIdx if idx is the max.
func (t *spTree) next(idx int) int {
	if t.rightOf(idx) != nilIdx {
		return t.minimum(t.rightOf(idx))
	}
	x, p := idx, t.parentOf(idx)
	for p != nilIdx && x == t.rightOf(p) {
		x = p
		p = t.parentOf(p)
	}
	return p
}
