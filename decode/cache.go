package decode

import "container/list"

// Translator decodes x86 bytes into a BasicBlock (spec §6 decoder
// boundary). The real implementation lives outside this module; this
// interface is the entire surface the core depends on.
type Translator interface {
	Translate(key RIPVirtPhys) (*BasicBlock, error)
}

// BasicBlockCache is a per-CPU cache of decoded basic blocks, keyed by
// RIPVirtPhys, with capacity-bounded LRU eviction and SMC-driven
// invalidation (spec §3 BB lifecycle).
type BasicBlockCache struct {
	translator Translator
	capacity   int

	entries map[RIPVirtPhys]*list.Element // key -> LRU list element
	lru     *list.List                    // front = most recently used

	// pageIndex maps a guest mfn to every basic block key that covers it,
	// mirroring BasicBlockChunkList: SMC invalidation walks this index.
	pageIndex map[uint64]map[RIPVirtPhys]bool
}

type cacheEntry struct {
	key RIPVirtPhys
	bb  *BasicBlock
}

// NewBasicBlockCache creates a cache backed by translator with room for
// capacity resident basic blocks.
func NewBasicBlockCache(translator Translator, capacity int) *BasicBlockCache {
	return &BasicBlockCache{
		translator: translator,
		capacity:   capacity,
		entries:    make(map[RIPVirtPhys]*list.Element),
		lru:        list.New(),
		pageIndex:  make(map[uint64]map[RIPVirtPhys]bool),
	}
}

// Fetch returns the basic block for key, translating and inserting it on a
// miss. The returned block has already had Acquire called on it; the
// caller must Release it once done fetching from it.
func (c *BasicBlockCache) Fetch(key RIPVirtPhys) (*BasicBlock, error) {
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		bb := elem.Value.(*cacheEntry).bb
		bb.Acquire()
		return bb, nil
	}

	bb, err := c.translator.Translate(key)
	if err != nil {
		return nil, err
	}

	c.insert(key, bb)
	bb.Acquire()
	return bb, nil
}

// Refetch drops key's cached block, if any, and retranslates it with the
// uop at uopIndex forced into its unaligned lo/hi split (spec §4.5:
// "re-translating into lo/hi halves"; spec §8 scenario 5: "issue returns
// NEEDS_REFETCH... retranslation emits two uops"). The returned block has
// already had Acquire called on it.
func (c *BasicBlockCache) Refetch(key RIPVirtPhys, uopIndex int) (*BasicBlock, error) {
	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}

	bb, err := c.translator.Translate(key)
	if err != nil {
		return nil, err
	}
	if err := bb.SplitUnalignedAt(uopIndex); err != nil {
		return nil, err
	}

	c.insert(key, bb)
	bb.Acquire()
	return bb, nil
}

func (c *BasicBlockCache) insert(key RIPVirtPhys, bb *BasicBlock) {
	if c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, bb: bb})
	c.entries[key] = elem

	for _, mfn := range bb.Pages() {
		if c.pageIndex[mfn] == nil {
			c.pageIndex[mfn] = make(map[RIPVirtPhys]bool)
		}
		c.pageIndex[mfn][key] = true
	}
}

func (c *BasicBlockCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
}

func (c *BasicBlockCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.lru.Remove(elem)
	delete(c.entries, entry.key)
	for _, mfn := range entry.bb.Pages() {
		delete(c.pageIndex[mfn], entry.key)
		if len(c.pageIndex[mfn]) == 0 {
			delete(c.pageIndex, mfn)
		}
	}
}

// InvalidatePage drops every basic block touching mfn, the response to a
// store detected as self-modifying code (spec §6, §8 scenario 6).
func (c *BasicBlockCache) InvalidatePage(mfn uint64, reason string) int {
	keys := c.pageIndex[mfn]
	if len(keys) == 0 {
		return 0
	}

	invalidated := 0
	for key := range keys {
		if elem, ok := c.entries[key]; ok {
			c.removeElement(elem)
			invalidated++
		}
	}
	return invalidated
}

// Size returns the number of resident basic blocks.
func (c *BasicBlockCache) Size() int { return len(c.entries) }

// Contains reports whether key is currently resident, without affecting LRU
// order or refcount.
func (c *BasicBlockCache) Contains(key RIPVirtPhys) bool {
	_, ok := c.entries[key]
	return ok
}
