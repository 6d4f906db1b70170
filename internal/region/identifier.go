/*
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package region

import (
    `github.com/cloudwego/vecplan/internal/canon`
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/opts`
)

// Identifier selects the regions of a function worth planning. Rejection
// is always silent: unsupported or oversized structures simply produce no
// region.
type Identifier struct {
    Opts opts.Options
    TLI  *hir.TargetLibraryInfo
}

func NewIdentifier(o opts.Options, tli *hir.TargetLibraryInfo) *Identifier {
    if tli == nil {
        tli = hir.DefaultTLI()
    }
    return &Identifier { Opts: o, TLI: tli }
}

// FormRegions returns the candidate regions of fn in program order.
// Regions never overlap.
func (self *Identifier) FormRegions(fn *hir.Function) []*IRRegion {
    if fn.OptNone || len(fn.Blocks) == 0 {
        return nil
    }

    dt := hir.BuildDominatorTree(fn)
    pdt := hir.BuildPostDominatorTree(fn)
    li := hir.BuildLoopInfo(fn, &dt)
    se := &hir.ScalarEvolution { LI: li }

    /* whole-function mode when every loop qualifies and the CFG carries
     * no structure the high-level IR cannot express */
    if self.Opts.FunctionLevelRegions {
        if r := self.tryFunctionLevel(fn, &dt, &pdt, li, se); r != nil {
            return []*IRRegion { r }
        }
    }

    /* otherwise one region per maximal generable loop subtree */
    var ret []*IRRegion
    var emit func(lp *hir.Loop)

    emit = func(lp *hir.Loop) {
        if self.nestGenerable(lp, &dt, &pdt, se) {
            ret = append(ret, self.loopRegion(lp))
        } else {
            for _, c := range lp.Children {
                emit(c)
            }
        }
    }

    for _, lp := range li.Roots {
        emit(lp)
    }
    return ret
}

func (self *Identifier) tryFunctionLevel(fn *hir.Function, dt *hir.DominatorTree, pdt *hir.DominatorTree, li *hir.LoopInfo, se *hir.ScalarEvolution) *IRRegion {
    if !hir.IsReducible(fn, dt) {
        return nil
    }

    /* every loop of the function must qualify on its own */
    for _, lp := range li.PreOrder() {
        if !self.isSelfGenerable(lp, dt, pdt, se) {
            return nil
        }
    }

    /* no unsupported terminator anywhere, in or out of loops */
    for _, bb := range fn.Blocks {
        if t := bb.Term; t != nil {
            switch t.Op {
                case hir.OP_switch     : return nil
                case hir.OP_indirectbr : return nil
                case hir.OP_resume     : return nil
            }
        }
    }

    var exit *hir.BasicBlock
    if v := pdt.Root; v != nil && v.Id >= 0 {
        exit = v
    }

    return &IRRegion {
        Entry         : fn.Entry(),
        Exit          : exit,
        BBs           : fn.Blocks,
        FunctionLevel : true,
    }
}

func (self *Identifier) nestGenerable(lp *hir.Loop, dt *hir.DominatorTree, pdt *hir.DominatorTree, se *hir.ScalarEvolution) bool {
    if !self.isSelfGenerable(lp, dt, pdt, se) {
        return false
    }
    for _, c := range lp.Children {
        if !self.nestGenerable(c, dt, pdt, se) {
            return false
        }
    }
    return true
}

// isSelfGenerable applies the per-loop structural gates, then the cost
// gate unless the loop carries a SIMD directive.
func (self *Identifier) isSelfGenerable(lp *hir.Loop, dt *hir.DominatorTree, pdt *hir.DominatorTree, se *hir.ScalarEvolution) bool {
    if lp.Depth() > canon.MaxLoopNestLevel {
        return false
    }
    if !lp.IsLoopSimplifyForm() {
        return false
    }

    /* the latch condition must trace to the header IV phi */
    iv := se.IndVarPhi(lp)
    if iv == nil {
        return false
    }

    /* header and latch must sit on a path to the function exit */
    if !inPostDomTree(pdt, lp.Header) || !inPostDomTree(pdt, lp.Latch()) {
        return false
    }

    /* bound type: no i1 counters, nothing wider than 64 bits */
    if ty := iv.Ty; !ty.IsInteger() || ty.Bits <= 1 || ty.Bits > 64 {
        return false
    }

    /* no instruction forms the high-level IR refuses to carry */
    for _, bb := range lp.SortedBlocks() {
        bad := false
        bb.ForEachInstr(func(p *hir.Instr) {
            bad = bad || p.IsUnsupported()
        })
        if bad {
            return false
        }
    }

    /* several exits are tolerable only for innermost loops */
    if lp.ExitBlock() == nil && !lp.IsInnermost() {
        return false
    }

    /* directive-marked loops bypass throttling entirely */
    if lp.IsSIMD {
        return true
    }
    return self.passesCostGate(lp, dt, se)
}

// passesCostGate approximates the high-level IR cost of the loop and
// rejects it when any threshold trips.
func (self *Identifier) passesCostGate(lp *hir.Loop, dt *hir.DominatorTree, se *hir.ScalarEvolution) bool {
    stmts := 0
    ifs := 0
    depth := 0
    smallTrip := lp.IsInnermost() && se.IsSmallTripCount(lp)
    unknownTrip := false

    if _, ok := se.TripCount(lp); !ok {
        unknownTrip = true
    }

    for _, bb := range lp.SortedBlocks() {
        ok := true

        bb.ForEachInstr(func(p *hir.Instr) {
            switch {
                case p.Op == hir.OP_phi       : /* free, merged into assignments */
                case p.Op == hir.OP_directive : /* markers carry no cost */
                case p.Op.IsTerminator()      : /* charged via the if counters */
                default                       : stmts++
            }

            /* volatile accesses pin the program order, give up */
            if p.IsMemAccess() && p.Volatile {
                ok = false
            }
            if p.Op == hir.OP_call && !self.callAllowed(p, lp, smallTrip, unknownTrip) {
                ok = false
            }
        })

        if !ok {
            return false
        }

        /* conditionals other than the latch count as ifs */
        if t := bb.Term; t != nil && t.Op == hir.OP_br && bb != lp.Latch() {
            ifs++
            if d := nestedIfDepth(dt, bb, lp); d > depth {
                depth = d
            }
        }
    }

    if stmts > self.Opts.MaxStmtCount || ifs > self.Opts.MaxIfCount {
        return false
    }
    return depth <= self.Opts.NestedIfBudget(smallTrip)
}

func (self *Identifier) callAllowed(p *hir.Instr, lp *hir.Loop, smallTrip bool, unknownTrip bool) bool {
    if p.Indirect {
        return false
    }
    if hir.IsIntrinsic(p.Callee) || self.TLI.IsFunctionVectorizable(p.Callee, 0) {
        return true
    }

    /* short or opaque innermost loops at O3 keep their calls, scalarized */
    if smallTrip {
        return true
    }
    return self.Opts.OptLevel >= opts.O3 && lp.IsInnermost() && unknownTrip
}

// nestedIfDepth walks the dominator chain of bb up to the loop header,
// counting dominating in-loop conditionals.
func nestedIfDepth(dt *hir.DominatorTree, bb *hir.BasicBlock, lp *hir.Loop) int {
    d := 1
    for v := dt.IDom(bb); v != nil && v != lp.Header && lp.Contains(v); v = dt.IDom(v) {
        if t := v.Term; t != nil && t.Op == hir.OP_br && v != lp.Latch() {
            d++
        }
    }
    return d
}

func (self *Identifier) loopRegion(lp *hir.Loop) *IRRegion {
    r := &IRRegion {
        Entry : lp.Header,
        Exit  : lp.ExitBlock(),
        BBs   : lp.SortedBlocks(),
        Loop  : lp,
    }

    /* a SIMD envelope widens the region to its marker blocks */
    if lp.IsSIMD {
        if p := lp.Preheader(); p != nil {
            r.Entry = p
        }
        if e := findEndMarker(lp); e != nil {
            r.Exit = e
        }
    }
    return r
}

// findEndMarker follows the loop exit along single-successor blocks
// looking for the matching end-SIMD directive.
func findEndMarker(lp *hir.Loop) *hir.BasicBlock {
    bb := lp.ExitBlock()
    for i := 0; bb != nil && i < 8; i++ {
        if d := bb.Directive(); d != nil && d.Dir == hir.DirEndSIMD {
            return bb
        }
        if s := bb.Successors(); len(s) == 1 {
            bb = s[0]
        } else {
            bb = nil
        }
    }
    return nil
}

func inPostDomTree(pdt *hir.DominatorTree, bb *hir.BasicBlock) bool {
    if bb == nil {
        return false
    }
    if pdt.Root == bb {
        return true
    }
    return pdt.DominatedBy[bb.Id] != nil
}
