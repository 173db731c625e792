package iocore

import (
	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/oocore"
	"github.com/sarchlab/marssx86/uop"
)

// Core is the two-wide in-order Atom-style pipeline (spec §4.6): a shared
// frontend feeds per-thread dispatch queues, issue contends for two ports
// against a 12-entry FU mask, and commit lands stores through each
// thread's store buffer.
type Core struct {
	BBCache   *decode.BasicBlockCache
	Predictor oocore.Predictor
	FU        *FUState

	Threads []*AtomThread
	running int // index into Threads currently owning the shared frontend

	currentBB *decode.BasicBlock
	bbIndex   int

	FetchWidth int

	committedInsns uint64

	// Memory and CoreID wire this core's load/store AtomOps through the
	// memory hierarchy's access(request) -> latency operation (spec §2);
	// nil Memory keeps the zero-extra-latency behavior the package's own
	// tests rely on (no hierarchy wired).
	Memory oocore.Memory
	CoreID int
}

// NewCore wires a two-thread Atom-style core over bbCache, sharing fu
// across both threads' issue attempts.
func NewCore(bbCache *decode.BasicBlockCache, predictor oocore.Predictor, fetchWidth int, threads ...*AtomThread) *Core {
	return &Core{
		BBCache:    bbCache,
		Predictor:  predictor,
		FU:         NewFUState(),
		Threads:    threads,
		FetchWidth: fetchWidth,
	}
}

func (c *Core) runningThread() *AtomThread { return c.Threads[c.running] }

// switchThread hands the shared frontend to the other thread
// cooperatively (spec §4.6: "frontend flushes to the other thread, and
// the pipeline refills"). The fixture basic-block translator resolves
// synchronously rather than through a timed icache/L2 round trip, so a
// translate miss here stands in for that icache miss and is the trigger
// this model uses to switch; a real L2-backed frontend would instead
// drive this from the interconnect reply path (left to the machine
// package's wiring).
func (c *Core) switchThread() {
	cur := c.runningThread()
	cur.WaitingForICache = true
	for i, t := range c.Threads {
		if i != c.running && !t.WaitingForICache {
			c.running = i
			return
		}
	}
}

// Fetch pulls uops for the running thread's basic block, grouping
// consecutive uops between SOM and EOM into one AtomOp before enqueuing it
// (spec §4.6: "AtomOp groups all uops of one x86 instruction").
func (c *Core) Fetch() {
	th := c.runningThread()
	if !th.CanFetch() {
		return
	}

	fetched := 0
	for fetched < c.FetchWidth && th.CanFetch() {
		if c.currentBB == nil {
			key := decode.NewRIPVirtPhys(th.Ctx.RIP, th.Ctx.RIP, 1, true, false, false)
			bb, err := c.BBCache.Fetch(key)
			if err != nil {
				c.switchThread()
				return
			}
			c.currentBB = bb
			c.bbIndex = 0
		}

		group, rip := c.nextInstructionGroup()
		if group == nil {
			break
		}
		th.Enqueue(NewAtomOp(rip, group))
		fetched++
	}
}

// nextInstructionGroup pulls uops from currentBB up through the next
// EOM-marked uop, advancing th's RIP once the block ends or a branch
// resolves its predicted target.
func (c *Core) nextInstructionGroup() ([]uop.Uop, uint64) {
	if c.currentBB == nil || c.bbIndex >= len(c.currentBB.Uops) {
		return nil, 0
	}

	th := c.runningThread()
	startRIP := th.Ctx.RIP
	var group []uop.Uop
	for c.bbIndex < len(c.currentBB.Uops) {
		u := c.currentBB.Uops[c.bbIndex]
		if u.IsBranch() {
			u.RipTaken = c.currentBB.RipTaken
			u.RipSeq = c.currentBB.RipNotTaken
		}
		group = append(group, u)
		c.bbIndex++

		atEnd := c.bbIndex >= len(c.currentBB.Uops)
		if u.IsBranch() {
			target, _ := c.Predictor.Predict(th.Ctx.RIP)
			if target == 0 {
				target = c.currentBB.RipNotTaken
			}
			th.Ctx.RIP = target
			c.releaseBB()
			return group, startRIP
		}
		if u.EOM {
			if atEnd {
				th.Ctx.RIP = c.currentBB.RipNotTaken
				c.releaseBB()
			}
			return group, startRIP
		}
		if atEnd {
			th.Ctx.RIP = c.currentBB.RipNotTaken
			c.releaseBB()
			return group, startRIP
		}
	}
	return group, startRIP
}

func (c *Core) releaseBB() {
	c.currentBB.Release()
	c.currentBB = nil
	c.bbIndex = 0
}

// Dispatch moves up to one AtomOp per thread from its dispatch queue into
// its commit buffer, in program order.
func (c *Core) Dispatch() {
	for _, th := range c.Threads {
		th.DispatchFront()
	}
}

// Issue attempts one AtomOp per port per cycle against the shared FU mask
// (spec §4.6: "Issue attempts one AtomOp per port per cycle"). It returns
// the issue result for each thread's head-of-commit-buffer AtomOp that
// was attempted this cycle.
func (c *Core) Issue() map[int]IssueResult {
	c.FU.Tick()
	results := make(map[int]IssueResult)

	ports := [2]Port{Port0, Port1}
	portIdx := 0
	for _, th := range c.Threads {
		op := th.CommitHead()
		if op == nil || op.State != OpDispatched {
			continue
		}
		if portIdx >= len(ports) {
			break
		}

		if op.IsLoadStore() && c.Memory != nil && !op.memIssued {
			addr, isStore := op.memAccess()
			memOp := oocore.MemRead
			if isStore {
				memOp = oocore.MemWrite
			}
			latency, ok := c.Memory.Access(c.CoreID, addr, memOp)
			if !ok {
				results[th.ThreadID] = IssueCacheMiss
				continue
			}
			op.memIssued = true
			op.memCyclesLeft = int(latency)
		}

		mask, portReq, pipelined, latency := op.fuRequirement()
		if portReq&ports[portIdx] == 0 {
			results[th.ThreadID] = IssueFail
			continue
		}
		if _, ok := c.FU.Reserve(mask, pipelined, latency); !ok {
			results[th.ThreadID] = IssueFail
			continue
		}

		op.State = OpIssued
		portIdx++
		if pipelined {
			results[th.ThreadID] = IssueOK
		} else {
			results[th.ThreadID] = IssueOKBlock
		}
	}
	return results
}

// Writeback advances every issued AtomOp to completed, once any in-flight
// Memory.Access latency for a load/store AtomOp has fully drained (spec
// §4.6: the AtomOp's memory request, issued in Issue, gates its own
// completion rather than the surrounding ALU/FPU latency already applied
// by FUState.Reserve).
func (c *Core) Writeback() {
	for _, th := range c.Threads {
		op := th.CommitHead()
		if op == nil || op.State != OpIssued {
			continue
		}
		if op.memIssued && op.memCyclesLeft > 0 {
			op.memCyclesLeft--
			continue
		}
		op.State = OpCompleted
	}
}

// Commit retires the head of each thread's commit buffer once completed,
// draining its store-buffer entries and releasing its memory locks (spec
// §4.6: "on commit, writes land via the host-memory store hook" and
// "locks are released by invoking the cache controller's unlock paths").
// unlock reports, for each released address, which thread released it.
func (c *Core) Commit() (committed []*AtomOp, unlock map[uint64]int) {
	unlock = make(map[uint64]int)
	for _, th := range c.Threads {
		op := th.CommitHead()
		if op == nil || op.State != OpCompleted || op.HadException {
			continue
		}

		th.PopCommitted()
		op.State = OpCommitted
		for _, addr := range op.ReleaseMemLocks() {
			unlock[addr] = th.ThreadID
		}
		committed = append(committed, op)
	}
	c.committedInsns += uint64(len(committed))
	return committed, unlock
}

// CommittedInsns reports the number of x86 instructions (AtomOps)
// committed so far across every thread, the granularity spec §6's
// "stopinsns" stop condition counts in.
func (c *Core) CommittedInsns() uint64 { return c.committedInsns }

// CurrentRIP reports the RIP of the thread currently owning the shared
// frontend, for spec §6's "stoprip" stop condition.
func (c *Core) CurrentRIP() uint64 { return c.Threads[c.running].Ctx.RIP }

// Recover annuls thread th's commit buffer from index onward (branch
// misprediction, spec §4.6 recovery kind (i)) and redirects its RIP.
func (c *Core) Recover(th *AtomThread, index int, redirectRIP uint64) (unlocked []uint64) {
	unlocked = th.AnnulFrom(index)
	th.Ctx.RIP = redirectRIP
	if c.currentBB != nil && c.runningThread() == th {
		c.releaseBB()
	}
	return unlocked
}

// RunCycle runs one fetch/dispatch/issue/writeback/commit cycle.
func (c *Core) RunCycle() {
	c.Fetch()
	c.Dispatch()
	c.Issue()
	c.Writeback()
	c.Commit()
}
