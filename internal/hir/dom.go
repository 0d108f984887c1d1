package hir

// ComputeDominators fills in every Block's Dominator, DominatorDepth and
// Dominates fields for fn, using the Lengauer-Tarjan algorithm (spec
// §4.2). It must run after the HIR graph is fully built (every
// predecessor/successor edge final) and before phi pruning, since later
// passes rely on the dominator tree to validate and prune phis.
func ComputeDominators(fn *Function) {
	n := len(fn.Blocks)
	if n == 0 {
		return
	}
	for _, blk := range fn.Blocks {
		blk.dfsID = -1
	}
	d := &domBuilder{
		vertex: make([]*Block, 0, n),
	}
	d.dfs(fn.Entry)

	for _, blk := range d.vertex {
		blk.Dominates = blk.Dominates[:0]
	}

	// Process vertices in decreasing DFS order, skipping the root.
	for i := len(d.vertex) - 1; i >= 1; i-- {
		w := d.vertex[i]
		for p := 0; p < w.PredCnt; p++ {
			v := w.Preds[p]
			if v.dfsID < 0 {
				continue // unreachable predecessor, e.g. a dead backedge
			}
			u := d.eval(v)
			if u.semi < w.semi {
				w.semi = u.semi
			}
		}
		semiVertex := d.vertex[w.semi]
		semiVertex.Dominates = append(semiVertex.Dominates, w)
		d.link(w.ltParent, w)

		parent := w.ltParent
		bucket := parent.Dominates
		parent.Dominates = nil
		for _, v := range bucket {
			u := d.eval(v)
			if u.semi < v.semi {
				v.Dominator = u
			} else {
				v.Dominator = parent
			}
		}
	}

	for i := 1; i < len(d.vertex); i++ {
		w := d.vertex[i]
		if w.Dominator != d.vertex[w.semi] {
			w.Dominator = w.Dominator.Dominator
		}
	}

	fn.Entry.Dominator = nil
	for _, blk := range d.vertex {
		blk.Dominates = blk.Dominates[:0]
	}
	for _, blk := range d.vertex {
		if blk == fn.Entry {
			continue
		}
		blk.Dominator.Dominates = append(blk.Dominator.Dominates, blk)
	}

	fn.Entry.DominatorDepth = 0
	var assignDepth func(blk *Block)
	assignDepth = func(blk *Block) {
		for _, c := range blk.Dominates {
			c.DominatorDepth = blk.DominatorDepth + 1
			assignDepth(c)
		}
	}
	assignDepth(fn.Entry)

	for _, blk := range fn.Blocks {
		if blk.dfsID < 0 && blk != fn.Entry {
			blk.dead = true
		}
	}
}

// Dominates reports whether dominator strictly or non-strictly dominates
// target in fn's dominator tree, as computed by ComputeDominators.
func Dominates(dominator, target *Block) bool {
	for b := target; b != nil; b = b.Dominator {
		if b == dominator {
			return true
		}
	}
	return false
}

type domBuilder struct {
	vertex []*Block
}

// dfs performs the initial preorder numbering and records each block's
// DFS-tree parent, mirroring step 1 of Lengauer-Tarjan.
func (d *domBuilder) dfs(entry *Block) {
	var visit func(blk *Block, parent *Block)
	seen := make(map[*Block]bool)
	visit = func(blk *Block, parent *Block) {
		if seen[blk] {
			return
		}
		seen[blk] = true
		blk.dfsID = len(d.vertex)
		blk.semi = blk.dfsID
		blk.ancestor = nil
		blk.label = blk
		blk.ltParent = parent
		d.vertex = append(d.vertex, blk)
		for i := 0; i < blk.SuccCnt; i++ {
			visit(blk.Succs[i], blk)
		}
	}
	visit(entry, nil)
	// Any block never reached by this DFS is dead code the builder
	// created but no control edge reaches (e.g. a join of two terminated
	// branches); it keeps dfsID < 0, and ComputeDominators marks it dead
	// from that.
}

// eval implements Tarjan's path-compressing link-eval: it returns the
// ancestor of v with minimal semidominator number along the path to the
// root of v's forest tree, compressing the path as it goes.
func (d *domBuilder) eval(v *Block) *Block {
	if v.ancestor == nil {
		return v
	}
	d.compress(v)
	return v.label
}

func (d *domBuilder) compress(v *Block) {
	if v.ancestor.ancestor == nil {
		return
	}
	d.compress(v.ancestor)
	if v.ancestor.label.semi < v.label.semi {
		v.label = v.ancestor.label
	}
	v.ancestor = v.ancestor.ancestor
}

func (d *domBuilder) link(parent, child *Block) {
	child.ancestor = parent
}
