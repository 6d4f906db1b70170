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

package hir

// SmallTripThreshold is the trip count at or below which a loop is treated
// as short-running by the throttling heuristics.
const SmallTripThreshold = 16

// ScalarEvolution is a trip-count oracle over simple counted loops. It
// recognizes the canonical rotated form
//
//      header:  i = phi [start, preheader], [i.next, latch]
//      ...
//      latch:   i.next = add i, step
//               br (icmp i.next <pred> bound), header, exit
//
// with constant start, step and bound, and gives up on everything else.
type ScalarEvolution struct {
    LI *LoopInfo
}

// IndVarPhi returns the header phi driving the latch exit condition of lp,
// nil when the loop does not match the counted form.
func (self *ScalarEvolution) IndVarPhi(lp *Loop) *Instr {
    phi, _, _, _, _ := self.match(lp)
    return phi
}

// BackedgeTakenCount computes how many times the back edge of lp executes.
// The second result is false when the count cannot be computed.
func (self *ScalarEvolution) BackedgeTakenCount(lp *Loop) (int64, bool) {
    phi, start, step, bound, pred := self.match(lp)
    if phi == nil {
        return 0, false
    }

    /* loop condition compares i.next, so the first test sees start+step */
    return countIterations(start+step, step, bound, pred)
}

// TripCount is the backedge-taken count plus one.
func (self *ScalarEvolution) TripCount(lp *Loop) (int64, bool) {
    if n, ok := self.BackedgeTakenCount(lp); ok {
        return n + 1, true
    } else {
        return 0, false
    }
}

// IsSmallTripCount checks for a computable trip count at or below
// SmallTripThreshold.
func (self *ScalarEvolution) IsSmallTripCount(lp *Loop) bool {
    n, ok := self.TripCount(lp)
    return ok && n <= SmallTripThreshold
}

func (self *ScalarEvolution) match(lp *Loop) (phi *Instr, start int64, step int64, bound int64, pred CmpPred) {
    latch := lp.Latch()
    prehdr := lp.Preheader()

    /* need the simplified shape to reason at all */
    if latch == nil || prehdr == nil {
        return nil, 0, 0, 0, 0
    }

    /* latch must end in a conditional branch on an integer compare */
    br := latch.Term
    if br == nil || br.Op != OP_br {
        return nil, 0, 0, 0, 0
    }
    cmp, ok := br.Args[0].(*Instr)
    if !ok || cmp.Op != OP_icmp {
        return nil, 0, 0, 0, 0
    }

    /* one side is the increment, the other the constant bound */
    next, ok := cmp.Args[0].(*Instr)
    cbound, ok2 := cmp.Args[1].(*Const)
    if !ok || !ok2 || next.Op != OP_add {
        return nil, 0, 0, 0, 0
    }

    /* increment adds a constant step onto a header phi */
    iv, ok := next.Args[0].(*Instr)
    cstep, ok2 := next.Args[1].(*Const)
    if !ok || !ok2 || iv.Op != OP_phi || iv.Block != lp.Header {
        return nil, 0, 0, 0, 0
    }

    /* the phi must merge a constant start with the increment */
    var cstart *Const
    for _, e := range iv.Incoming {
        switch {
            case e.B == prehdr : cstart, _ = e.V.(*Const)
            case e.B == latch  : if e.V != Value(next) { return nil, 0, 0, 0, 0 }
        }
    }
    if cstart == nil {
        return nil, 0, 0, 0, 0
    }

    /* exiting edge must be the one taken while the compare holds */
    if br.Succ[0] != lp.Header {
        return nil, 0, 0, 0, 0
    }
    return iv, cstart.Iv, cstep.Iv, cbound.Iv, cmp.Pred
}

func countIterations(first int64, step int64, bound int64, pred CmpPred) (int64, bool) {
    if step == 0 {
        return 0, false
    }

    /* normalize decreasing loops into increasing ones */
    if step < 0 {
        first, step, bound = -first, -step, -bound
        switch pred {
            case CmpLT : pred = CmpGT
            case CmpLE : pred = CmpGE
            case CmpGT : pred = CmpLT
            case CmpGE : pred = CmpLE
        }
    }

    /* upper limit of values still taking the back edge */
    var last int64
    switch pred {
        case CmpLT : last = bound - 1
        case CmpLE : last = bound
        case CmpNE : if (bound-first)%step != 0 { return 0, false }; last = bound - 1
        default    : return 0, false
    }

    if last < first {
        return 0, true
    }
    return (last-first)/step + 1, true
}
