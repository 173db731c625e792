package oocore

// TLB is a fully-associative one-hot tag array keyed by
// (virt-page[35:0] ‖ threadid[3:0]) (spec §4.5): a 40-bit tag, pseudo-LRU
// replacement identical to the cache's.
type TLB struct {
	ways []tlbWay
	mru  uint64
}

type tlbWay struct {
	valid bool
	tag   uint64
	pfn   uint64
}

const tlbTagBits = 40

func tlbTag(virtPage uint64, threadID uint8) uint64 {
	return ((virtPage & 0xFFFFFFFFF) << 4) | uint64(threadID&0xF)
}

// NewTLB creates a fully-associative TLB with the given number of ways.
func NewTLB(ways int) *TLB {
	return &TLB{ways: make([]tlbWay, ways)}
}

func (t *TLB) touch(way int) {
	t.mru |= 1 << uint(way)
	full := uint64(1)<<uint(len(t.ways)) - 1
	if t.mru == full {
		t.mru = 1 << uint(way)
	}
}

func (t *TLB) victim() int {
	for i, w := range t.ways {
		if !w.valid {
			return i
		}
	}
	for i := range t.ways {
		if t.mru&(1<<uint(i)) == 0 {
			return i
		}
	}
	return 0
}

// Probe looks up (virtPage, threadID), returning the mapped physical
// frame number on a hit.
func (t *TLB) Probe(virtPage uint64, threadID uint8) (pfn uint64, ok bool) {
	tag := tlbTag(virtPage, threadID)
	for i, w := range t.ways {
		if w.valid && w.tag == tag {
			t.touch(i)
			return w.pfn, true
		}
	}
	return 0, false
}

// Insert installs a (virtPage, threadID) -> pfn mapping, evicting a
// pseudo-LRU victim if necessary. It reports whether an existing mapping
// was replaced.
func (t *TLB) Insert(virtPage uint64, threadID uint8, pfn uint64) (replaced bool) {
	tag := tlbTag(virtPage, threadID)
	way := t.victim()
	replaced = t.ways[way].valid
	t.ways[way] = tlbWay{valid: true, tag: tag, pfn: pfn}
	t.touch(way)
	return replaced
}

// FlushAll invalidates every entry.
func (t *TLB) FlushAll() {
	for i := range t.ways {
		t.ways[i] = tlbWay{}
	}
	t.mru = 0
}

// FlushThread invalidates every entry belonging to threadID.
func (t *TLB) FlushThread(threadID uint8) {
	for i, w := range t.ways {
		if w.valid && w.tag&0xF == uint64(threadID&0xF) {
			t.ways[i] = tlbWay{}
		}
	}
}

// FlushVirt invalidates the mapping for (vaddr's page, threadID), if
// present.
func (t *TLB) FlushVirt(vaddr uint64, threadID uint8) {
	tag := tlbTag(vaddr>>12, threadID)
	for i, w := range t.ways {
		if w.valid && w.tag == tag {
			t.ways[i] = tlbWay{}
		}
	}
}
