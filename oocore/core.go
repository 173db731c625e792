package oocore

import (
	"github.com/sarchlab/marssx86/context"
	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/pipeline"
	"github.com/sarchlab/marssx86/uop"
)

// Core is one out-of-order pipeline (spec §4.5): fetch, rename, dispatch,
// issue, writeback and commit run in that order once per cycle over the
// shared queues between them. Each stage sees what the stages before it
// produced earlier in the same RunCycle, so one uop can go from fetch to
// commit within a single cycle; there are no per-stage latches.
type Core struct {
	Ctx       *context.Context
	BBCache   *decode.BasicBlockCache
	Predictor Predictor

	Regs      *RegFile
	ROB       *ROB
	LSQ       *LSQ
	ITLB      *TLB
	DTLB      *TLB
	Clusters  map[Cluster]*IssueQueue

	RRT       *RRT // speculative
	CommitRRT *RRT // architectural

	// Memory and CoreID wire this core's load/store uops through the
	// memory hierarchy's access(request) -> latency operation (spec §2);
	// nil Memory keeps the zero-latency behavior the package's own tests
	// rely on (no hierarchy wired).
	Memory Memory
	CoreID int

	FetchWidth  int
	CommitWidth int

	currentBB *decode.BasicBlock
	bbIndex   int

	fetchQueue      []uop.Uop
	fetchKeys       []decode.RIPVirtPhys
	pendingDispatch []*Entry

	committedInsns uint64
}

// NewCore wires a fresh out-of-order pipeline over regfile size nPhys,
// ROB depth robCapacity, and the given per-cluster issue queues.
func NewCore(ctx *context.Context, bbCache *decode.BasicBlockCache, predictor Predictor, nPhys, robCapacity, lsqCapacity, tlbWays, fetchWidth, commitWidth int) *Core {
	c := &Core{
		Ctx:         ctx,
		BBCache:     bbCache,
		Predictor:   predictor,
		Regs:        NewRegFile("int", nPhys),
		ROB:         NewROB(robCapacity),
		LSQ:         NewLSQ(lsqCapacity),
		ITLB:        NewTLB(tlbWays),
		DTLB:        NewTLB(tlbWays),
		Clusters:    map[Cluster]*IssueQueue{ClusterAll: NewIssueQueue(ClusterAll, robCapacity, 2)},
		RRT:         NewRRT(),
		CommitRRT:   NewRRT(),
		FetchWidth:  fetchWidth,
		CommitWidth: commitWidth,
	}
	return c
}

func (c *Core) clusterFor(u uop.Uop) Cluster {
	if _, ok := c.Clusters[ClusterLd]; ok && u.IsLoadStore() {
		return ClusterLd
	}
	return ClusterAll
}

// Fetch implements spec §4.5 Fetch: pull uops from the current basic
// block (decoding a new one on demand), stopping after any branch.
func (c *Core) Fetch() error {
	for len(c.fetchQueue) < c.FetchWidth {
		if c.currentBB == nil {
			mfn := c.Ctx.RIP / decode.PageSize
			if c.Ctx.IsPageDirty(mfn) {
				c.BBCache.InvalidatePage(mfn, "smc")
				c.Ctx.ClearPageDirty(mfn)
			}

			key := decode.NewRIPVirtPhys(c.Ctx.RIP, c.Ctx.RIP, 1, true, false, false)
			bb, err := c.BBCache.Fetch(key)
			if err != nil {
				return err
			}
			c.currentBB = bb
			c.bbIndex = 0
		}

		u := c.currentBB.Uops[c.bbIndex]
		if u.IsBranch() {
			u.RipTaken = c.currentBB.RipTaken
			u.RipSeq = c.currentBB.RipNotTaken
		}
		c.fetchQueue = append(c.fetchQueue, u)
		c.fetchKeys = append(c.fetchKeys, c.currentBB.Key)
		c.bbIndex++

		atEnd := c.bbIndex >= len(c.currentBB.Uops)
		if u.IsBranch() {
			target, info := c.Predictor.Predict(c.Ctx.RIP)
			if target == 0 {
				target = c.currentBB.RipNotTaken
			}
			c.Ctx.RIP = target
			_ = info
			c.releaseBB()
			return nil // any branch terminates fetch for the cycle
		}
		if atEnd {
			c.Ctx.RIP = c.currentBB.RipNotTaken
			c.releaseBB()
		}
	}
	return nil
}

func (c *Core) releaseBB() {
	c.currentBB.Release()
	c.currentBB = nil
	c.bbIndex = 0
}

// Rename implements spec §4.5 Rename: allocate a destination physreg per
// uop from the round-robin file and update the speculative RRT, stalling
// when the ROB or register file is full.
func (c *Core) Rename() {
	for len(c.fetchQueue) > 0 {
		if c.ROB.Full() {
			return
		}

		u := c.fetchQueue[0]
		key := c.fetchKeys[0]
		if u.IsLoadStore() && c.LSQ.Full() {
			return // spec §4.5: "stall if any resource (... LSQ) is full"
		}

		oldPhys := -1
		newPhys := -1
		if u.Rd != uop.NoReg {
			oldPhys = c.RRT.Get(u.Rd)
			p, ok := c.Regs.Alloc()
			if !ok {
				return // register file exhausted; stall
			}
			newPhys = p
			c.RRT.Set(u.Rd, newPhys)
		}

		c.fetchQueue = c.fetchQueue[1:]
		c.fetchKeys = c.fetchKeys[1:]
		entry := c.ROB.Dispatch(u, oldPhys, newPhys)
		entry.FetchKey = key
		if u.IsLoadStore() {
			lsqEntry := &LSQEntry{Seq: entry.Seq, IsStore: u.IsStore(), Size: u.Size}
			c.LSQ.Append(lsqEntry)
			entry.LSQEntry = lsqEntry
		}
		c.pendingDispatch = append(c.pendingDispatch, entry)
	}
}

// Dispatch implements spec §4.5 Dispatch: select a cluster per uop and
// insert it into that cluster's issue queue with its current operand
// readiness.
func (c *Core) Dispatch() {
	var stalled []*Entry
	for _, entry := range c.pendingDispatch {
		cluster := c.clusterFor(entry.Uop)
		iq, ok := c.Clusters[cluster]
		if !ok {
			iq = c.Clusters[ClusterAll]
		}
		if iq.Full() {
			stalled = append(stalled, entry)
			continue
		}

		// A source comes from the youngest older in-flight writer of its
		// register, else from the committed mapping; c.RRT already holds
		// this cycle's younger renames, so it is not read here.
		var srcPhys [2]int
		var srcReady [2]bool
		for i, r := range [2]uop.Reg{entry.Uop.Ra, entry.Uop.Rb} {
			srcPhys[i] = c.CommitRRT.Get(r)
			for _, older := range c.ROB.Entries() {
				if older.Seq >= entry.Seq {
					break
				}
				if r != uop.NoReg && older.Uop.Rd == r {
					srcPhys[i] = older.NewPhys
				}
			}
		}
		for i, p := range srcPhys {
			if p < 0 {
				srcReady[i] = true
				continue
			}
			st := c.Regs.State(p)
			srcReady[i] = st == Bypass || st == Written
		}

		iq.Insert(entry, srcPhys, srcReady)
	}
	c.pendingDispatch = stalled
}

// Issue implements spec §4.5 Issue: each cluster offers up to its width
// of ready slots; executing one broadcasts its destination tag so
// dependents wake (spec: "dependents with matching source tags unblock").
// Load/store uops generate their address, probe store-to-load forwarding,
// and enqueue the access against Memory (spec §4.5 "Load/store
// specifics"). A load/store whose Memory access reported a nonzero
// latency is left Issued until drainMemory completes it; a forwarded
// load, a zero-latency access, or one issued with no Memory wired
// completes in the cycle it issued.
func (c *Core) Issue() []pipeline.Result {
	var results []pipeline.Result

	for _, iq := range c.Clusters {
		for _, slot := range iq.SelectReady() {
			e := slot.Entry
			e.State = Issued

			if e.Uop.IsBranch() {
				results = append(results, c.resolveBranch(e))
			}

			if e.Uop.IsLoadStore() {
				ready, refetch := c.issueMemory(slot)
				if refetch {
					results = append(results, pipeline.Result{
						Kind: pipeline.Refetch, FromIndex: int(e.Seq), RedirectRIP: e.FetchKey.RIP,
					})
					continue
				}
				if !ready {
					iq.Requeue(slot) // ISSUE_NEEDS_REPLAY (spec §4.5)
					continue
				}
				if e.CyclesLeft > 0 {
					continue // completes later, via drainMemory
				}
			}

			e.State = Completed
			if e.NewPhys >= 0 {
				c.Regs.Complete(e.NewPhys, 0)
				for _, other := range c.Clusters {
					other.Wake(e.NewPhys)
				}
			}
		}
	}
	return results
}

// issueMemory drives one load/store slot's address generation, store-to-
// load forwarding check, and (if unforwarded) its Memory.Access request.
// It reports ready=false when the uop must be requeued for another issue
// attempt: an ambiguous forward (spec: "on ambiguity, load waits") or a
// full cache queue (spec §4.3 backpressure). It reports refetch=true when
// the access straddles a size boundary and must be retranslated into
// aligned lo/hi halves before it can issue at all (spec §4.5 "Unaligned
// accesses are split at translation time"; spec §8 scenario 5).
func (c *Core) issueMemory(slot *Slot) (ready, refetch bool) {
	e := slot.Entry
	lsq := e.LSQEntry
	if lsq == nil {
		return true, false
	}

	if !lsq.AddrKnown {
		base := uint64(0)
		if slot.SrcPhys[0] >= 0 {
			base = c.Regs.Value(slot.SrcPhys[0])
		}
		lsq.Addr = base + uint64(e.Uop.RbImm)
		lsq.AddrKnown = true
		if lsq.IsStore {
			lsq.Data = uint64(e.Uop.RcImm)
		}
	}

	if e.Uop.Cond == uop.AlignNormal && !e.Uop.Unaligned {
		size := uint64(e.Uop.Size.Bytes())
		if size > 1 && lsq.Addr%size != 0 {
			return false, true
		}
	}

	if !lsq.IsStore {
		switch res, data := c.LSQ.CheckForward(lsq); res {
		case Forwarded:
			lsq.Data = data
			return true, false
		case Ambiguous:
			return false, false
		}
	}

	if c.Memory == nil {
		return true, false // no hierarchy wired: complete in zero cycles
	}

	if e.MemIssued {
		return true, false // already enqueued; draining its latency
	}

	op := MemRead
	if lsq.IsStore {
		op = MemWrite
	}
	latency, ok := c.Memory.Access(c.CoreID, lsq.Addr, op)
	if !ok {
		return false, false
	}
	e.MemIssued = true
	e.CyclesLeft = int(latency)
	return true, false
}

// drainMemory counts down the cache-access latency of every in-flight
// memory uop, completing and broadcasting the ones whose access has
// finished (spec §4.5 Complete/Transfer/Writeback: "Completion broadcasts
// the physreg tag on the forwarding bus").
func (c *Core) drainMemory() {
	for _, e := range c.ROB.Entries() {
		if e.State != Issued || !e.MemIssued {
			continue
		}
		if e.CyclesLeft > 0 {
			e.CyclesLeft--
			continue
		}
		e.State = Completed
		if e.NewPhys >= 0 {
			c.Regs.Complete(e.NewPhys, 0)
			for _, other := range c.Clusters {
				other.Wake(e.NewPhys)
			}
		}
	}
}

// resolveBranch compares the uop's taken target (RipTaken) with its
// fall-through (RipSeq) and produces a Misspec result redirecting to
// RipTaken when they differ (spec §4.5 recovery kind (i): branch
// misprediction). The fetch-time prediction is not consulted.
func (c *Core) resolveBranch(e *Entry) pipeline.Result {
	if e.Uop.RipTaken == e.Uop.RipSeq {
		return pipeline.Result{Kind: pipeline.Ok}
	}
	return pipeline.Result{Kind: pipeline.Misspec, FromIndex: int(e.Seq), RedirectRIP: e.Uop.RipTaken}
}

// Writeback implements spec §4.5 Writeback: completed entries transition
// physreg state from Bypass to Written.
func (c *Core) Writeback() {
	for _, e := range c.ROB.Entries() {
		if e.State == Completed {
			e.State = Written
			if e.NewPhys >= 0 {
				c.Regs.SetWritten(e.NewPhys)
			}
		}
	}
}

// Commit implements spec §4.5 Commit: in ROB-head order, commit up to
// CommitWidth uops per cycle provided every operand is Written.
func (c *Core) Commit() int {
	committed := 0
	for committed < c.CommitWidth {
		head := c.ROB.Head()
		if head == nil || head.State != Written || head.Exception {
			break
		}

		c.ROB.CommitHead()
		if head.LSQEntry != nil {
			head.LSQEntry.Committed = true
			if head.LSQEntry.IsStore && head.LSQEntry.AddrKnown {
				c.Ctx.SetPageDirty(head.LSQEntry.Addr / decode.PageSize)
			}
			c.LSQ.Remove(head.LSQEntry)
		}
		if head.OldPhys >= 0 {
			c.Regs.Release(head.OldPhys)
		}
		if head.Uop.Rd != uop.NoReg {
			c.CommitRRT.Set(head.Uop.Rd, head.NewPhys)
		}
		if head.Uop.EOM {
			c.committedInsns++
		}
		committed++
	}
	return committed
}

// CommittedInsns reports the number of complete x86 instructions (not
// uops) committed so far, the granularity spec §6's "stopinsns" stop
// condition counts in.
func (c *Core) CommittedInsns() uint64 { return c.committedInsns }

// CurrentRIP reports the architectural RIP the core is currently fetching
// from, for spec §6's "stoprip" stop condition.
func (c *Core) CurrentRIP() uint64 { return c.Ctx.RIP }

// Recover implements spec §4.5/§9 recovery: annul every ROB entry from
// fromSeq onward, release their destination physregs, restore the
// speculative RRT from the commit RRT, and restart fetch at redirectRIP.
func (c *Core) Recover(fromSeq uint64, redirectRIP uint64) {
	for _, e := range c.ROB.AnnulFrom(fromSeq) {
		if e.NewPhys >= 0 {
			c.Regs.Release(e.NewPhys)
		}
		if e.LSQEntry != nil {
			c.LSQ.Remove(e.LSQEntry)
		}
	}
	c.RRT.CopyFrom(c.CommitRRT)
	c.fetchQueue = nil
	c.fetchKeys = nil
	c.pendingDispatch = nil
	if c.currentBB != nil {
		c.releaseBB()
	}
	c.Ctx.RIP = redirectRIP
}

// RunCycle runs one full pipeline cycle: fetch, rename, dispatch, issue,
// writeback, commit, applying any misprediction recovery Issue reports.
func (c *Core) RunCycle() error {
	if err := c.Fetch(); err != nil {
		return err
	}
	c.Rename()
	c.Dispatch()
	for _, r := range c.Issue() {
		switch r.Kind {
		case pipeline.Misspec:
			c.Recover(uint64(r.FromIndex+1), r.RedirectRIP)
		case pipeline.Refetch:
			if e := c.ROB.Find(uint64(r.FromIndex)); e != nil {
				if _, err := c.BBCache.Refetch(e.FetchKey, e.Uop.BBIndex); err != nil {
					return err
				}
			}
			// The faulting uop itself is retranslated, not replayed as-is,
			// so recovery rewinds through it rather than past it.
			c.Recover(uint64(r.FromIndex), r.RedirectRIP)
		}
	}
	c.drainMemory()
	c.Writeback()
	c.Commit()
	return nil
}
