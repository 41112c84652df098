package planner

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSPTreeGetStateAndNext(t *testing.T) {
	a := newArena()
	tr := newSPTree(a)

	ats := []int64{0, 10, 20, 30, 40}
	idx := make(map[int64]int)
	for _, at := range ats {
		i := a.alloc(at, 0, 0)
		idx[at] = i
		tr.insert(i)
	}

	assert.Equal(t, idx[20], tr.search(20))
	assert.Equal(t, nilIdx, tr.search(25))

	assert.Equal(t, idx[20], tr.getState(25))
	assert.Equal(t, idx[0], tr.getState(5))
	assert.Equal(t, idx[40], tr.getState(1000))
	assert.Equal(t, nilIdx, tr.getState(-5))

	assert.Equal(t, idx[30], tr.next(idx[20]))
	assert.Equal(t, nilIdx, tr.next(idx[40]))
}

func TestSPTreeInsertRemoveRandom(t *testing.T) {
	a := newArena()
	tr := newSPTree(a)
	rng := rand.New(rand.NewSource(1))

	var ats []int64
	seen := map[int64]bool{}
	for len(ats) < 200 {
		v := rng.Int63n(10000)
		if seen[v] {
			continue
		}
		seen[v] = true
		ats = append(ats, v)
	}

	idx := make(map[int64]int)
	for _, at := range ats {
		i := a.alloc(at, 0, 0)
		idx[at] = i
		tr.insert(i)
	}
	assert.Equal(t, len(ats), tr.len())

	sorted := append([]int64(nil), ats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i := 0; i+1 < len(sorted); i++ {
		assert.Equal(t, idx[sorted[i+1]], tr.next(idx[sorted[i]]))
	}

	rng.Shuffle(len(ats), func(i, j int) { ats[i], ats[j] = ats[j], ats[i] })
	for _, at := range ats {
		tr.remove(idx[at])
	}
	assert.True(t, tr.empty())
}

func TestMTTreeSubtreeMinInvariant(t *testing.T) {
	a := newArena()
	tr := newMTTree(a)
	rng := rand.New(rand.NewSource(2))

	var idxs []int
	for i := 0; i < 300; i++ {
		at := rng.Int63n(100000)
		rem := rng.Int63n(1000)
		n := a.alloc(at, rem, 0)
		idxs = append(idxs, n)
		tr.insert(n)
		checkSubtreeMin(t, tr, tr.root)
	}

	rng.Shuffle(len(idxs), func(i, j int) { idxs[i], idxs[j] = idxs[j], idxs[i] })
	for _, n := range idxs[:150] {
		tr.remove(n)
		checkSubtreeMin(t, tr, tr.root)
	}
}

func checkSubtreeMin(t *testing.T, tr *mtTree, i int) int64 {
	t.Helper()
	if i == nilIdx {
		return 1<<63 - 1
	}
	n := tr.a.at(i)
	want := n.at
	if v := checkSubtreeMin(t, tr, n.mtLeft); v < want {
		want = v
	}
	if v := checkSubtreeMin(t, tr, n.mtRight); v < want {
		want = v
	}
	assert.Equal(t, want, n.subtreeMin, "subtreeMin mismatch at node with at=%d", n.at)
	return want
}

func TestMTTreeMintime(t *testing.T) {
	a := newArena()
	tr := newMTTree(a)

	type pt struct {
		at, rem int64
	}
	pts := []pt{{0, 10}, {5, 4}, {10, 8}, {15, 2}, {20, 10}}
	for _, p := range pts {
		tr.insert(a.alloc(p.at, p.rem, 0))
	}

	// request=5: qualifying points are at={0,10,20} -> earliest at=0
	got := tr.mintime(5)
	assert.Equal(t, int64(0), a.at(got).at)

	// request=9: qualifying points are at={0,20} -> earliest at=0
	got = tr.mintime(9)
	assert.Equal(t, int64(0), a.at(got).at)

	// request=11: none qualify
	assert.Equal(t, nilIdx, tr.mintime(11))
}
