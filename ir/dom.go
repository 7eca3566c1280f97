package ir

// Dominance.
//
// The analysis functions this IR carries are small, so dominance is
// computed as a plain forward dataflow over per-block dominator sets:
// dom(entry) = {entry}, dom(b) = {b} ∪ ⋂ dom(preds), iterated to a fixed
// point over a reverse postorder. Sets are bitsets over block indices,
// which makes Dominates a single bit test and the intersection a few
// word ANDs. Asymptotically worse than Lengauer-Tarjan style algorithms,
// irrelevant at the block counts a per-function range analysis sees.

// domInfo caches a block's dominance information.
type domInfo struct {
	// doms has bit i set iff block i dominates this block.
	doms bitset
	// idom is the parent in the dominator tree; nil for the entry block
	// and for blocks unreachable from it.
	idom *BasicBlock
}

// Dominates reports whether b dominates c. Both blocks must belong to a
// function whose dominator information is current.
func (b *BasicBlock) Dominates(c *BasicBlock) bool {
	return c.dom.doms.has(b.Index)
}

// Idom returns b's immediate dominator, or nil for the entry block.
func (b *BasicBlock) Idom() *BasicBlock { return b.dom.idom }

// BuildDomTree computes dominator information for f. It must be called
// after the CFG is complete and before any dominance query; blocks
// unreachable from the entry dominate nothing and are dominated by
// nothing.
func (f *Function) BuildDomTree() {
	if f.domValid {
		return
	}

	order := f.reversePostorder()
	words := (len(f.Blocks) + 63) / 64

	// Start every reachable block at "dominated by everything" except
	// the entry, which is dominated only by itself.
	all := newBitset(words)
	for _, b := range order {
		all.add(b.Index)
	}
	for _, b := range f.Blocks {
		b.dom = domInfo{doms: newBitset(words)}
	}
	entry := f.Blocks[0]
	for _, b := range order {
		if b == entry {
			b.dom.doms.add(b.Index)
		} else {
			copy(b.dom.doms, all)
		}
	}

	scratch := newBitset(words)
	for changed := true; changed; {
		changed = false
		for _, b := range order[1:] {
			copy(scratch, all)
			for _, p := range b.Preds {
				if p.dom.doms.has(p.Index) { // reachable
					scratch.intersect(p.dom.doms)
				}
			}
			scratch.add(b.Index)
			if !b.dom.doms.equal(scratch) {
				copy(b.dom.doms, scratch)
				changed = true
			}
		}
	}

	// The immediate dominator is the strict dominator that every other
	// strict dominator also dominates, i.e. the one with the largest
	// dominator set.
	for _, b := range order[1:] {
		for _, c := range order {
			if c == b || !b.dom.doms.has(c.Index) {
				continue
			}
			if b.dom.idom == nil || c.dom.doms.count() > b.dom.idom.dom.doms.count() {
				b.dom.idom = c
			}
		}
	}

	f.domValid = true
}

// reversePostorder returns the blocks reachable from the entry, ordered
// so that every block appears before its successors on forward edges.
// The walk keeps an explicit stack of partially visited blocks.
func (f *Function) reversePostorder() []*BasicBlock {
	type walk struct {
		b *BasicBlock
		i int // next successor to visit
	}
	seen := make([]bool, len(f.Blocks))
	post := make([]*BasicBlock, 0, len(f.Blocks))

	stack := []walk{{b: f.Blocks[0]}}
	seen[f.Blocks[0].Index] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.i < len(top.b.Succs) {
			succ := top.b.Succs[top.i]
			top.i++
			if !seen[succ.Index] {
				seen[succ.Index] = true
				stack = append(stack, walk{b: succ})
			}
			continue
		}
		post = append(post, top.b)
		stack = stack[:len(stack)-1]
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// A bitset is a fixed-size set of small non-negative integers.
type bitset []uint64

func newBitset(words int) bitset { return make(bitset, words) }

func (s bitset) add(i int)      { s[i/64] |= 1 << (i % 64) }
func (s bitset) has(i int) bool { return s[i/64]&(1<<(i%64)) != 0 }

func (s bitset) intersect(t bitset) {
	for i := range s {
		s[i] &= t[i]
	}
}

func (s bitset) equal(t bitset) bool {
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

func (s bitset) count() int {
	n := 0
	for _, w := range s {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}
