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

package canon

import (
    `sort`

    `github.com/cloudwego/vecplan/internal/hir`
)

// Utils is the canon expression arena of one planning session. Every
// expression it hands out stays alive until DestroyAll.
type Utils struct {
    Blobs *BlobTable
    objs  []*CanonExpr
}

func NewUtils(bt *BlobTable) *Utils {
    return &Utils { Blobs: bt }
}

// DestroyAll drops every expression created through this arena.
func (self *Utils) DestroyAll() {
    self.objs = nil
}

// NumLive is the number of live expressions in the arena.
func (self *Utils) NumLive() int {
    return len(self.objs)
}

func (self *Utils) alloc(e *CanonExpr) *CanonExpr {
    self.objs = append(self.objs, e)
    return e
}

/* constructors */

func (self *Utils) NewConst(ty hir.Type, k int64) *CanonExpr {
    return self.alloc(&CanonExpr { SrcType: ty, DstType: ty, K: k, Denom: 1 })
}

func (self *Utils) NewIV(ty hir.Type, level int) *CanonExpr {
    if level < 1 || level > MaxLoopNestLevel {
        panic("canon: IV level out of range")
    }
    e := &CanonExpr { SrcType: ty, DstType: ty, Denom: 1, IV: make([]IVCoeff, level) }
    e.IV[level-1] = IVCoeff { C: 1 }
    return self.alloc(e)
}

func (self *Utils) NewBlob(ty hir.Type, blob uint32) *CanonExpr {
    e := &CanonExpr { SrcType: ty, DstType: ty, Denom: 1, Blobs: []BlobCoeff {{ Blob: blob, C: 1 }} }
    self.recompute(e)
    return self.alloc(e)
}

func (self *Utils) Clone(e *CanonExpr) *CanonExpr {
    r := *e
    r.IV = append([]IVCoeff(nil), e.IV...)
    r.Blobs = append([]BlobCoeff(nil), e.Blobs...)
    return self.alloc(&r)
}

/* mergeability & arithmetic */

// Mergeable checks whether two expressions may be combined additively.
// In relaxed mode an integer constant merges with any integer expression
// whose type can hold it.
func (self *Utils) Mergeable(a *CanonExpr, b *CanonExpr, relaxed bool) bool {
    ok := a.SrcType == b.SrcType && a.DstType == b.DstType && a.SExt == b.SExt
    if !ok && relaxed {
        _, ca := a.IntConst()
        _, cb := b.IntConst()
        ok = (ca || cb) && a.DstType.IsInteger() && b.DstType.IsInteger()
    }
    return ok && (a.Denom == 1 || b.Denom == 1 || a.SignedDiv == b.SignedDiv)
}

// Add folds b into a and returns a, or nil when the two expressions
// cannot be merged. b is left intact.
func (self *Utils) Add(a *CanonExpr, b *CanonExpr) *CanonExpr {
    if !self.Mergeable(a, b, true) {
        return nil
    }

    /* blob-scaled IV slots must agree on the blob before anything is
     * mutated */
    for i := 0; i < len(b.IV) && i < len(a.IV); i++ {
        if !a.IV[i].isZero() && !b.IV[i].isZero() && a.IV[i].Blob != b.IV[i].Blob {
            return nil
        }
    }

    /* bring both sides to the lcm denominator */
    d := lcm(a.Denom, b.Denom)
    fa, fb := d/a.Denom, d/b.Denom
    self.scale(a, fa)
    a.Denom = d

    /* IV slots add coefficient-wise */
    for i := 0; i < len(b.IV); i++ {
        cb := b.IV[i]
        if cb.isZero() {
            continue
        }
        for len(a.IV) <= i {
            a.IV = append(a.IV, IVCoeff{})
        }
        if a.IV[i].isZero() {
            a.IV[i] = IVCoeff { C: cb.C * fb, Blob: cb.Blob }
        } else {
            a.IV[i].C += cb.C * fb
        }
    }

    /* merge the sorted blob term lists */
    for _, t := range b.Blobs {
        self.addBlobTerm(a, t.Blob, t.C*fb)
    }

    /* constant part, then renormalize */
    a.K += b.K * fb
    self.Simplify(a)
    self.recompute(a)
    return a
}

// Subtract computes a - b without cloning b: negate, add, negate back.
func (self *Utils) Subtract(a *CanonExpr, b *CanonExpr) *CanonExpr {
    self.Negate(b)
    r := self.Add(a, b)
    self.Negate(b)
    return r
}

// Negate flips the sign of the whole numerator in place.
func (self *Utils) Negate(e *CanonExpr) *CanonExpr {
    for i := range e.IV {
        e.IV[i].C = -e.IV[i].C
    }
    for i := range e.Blobs {
        e.Blobs[i].C = -e.Blobs[i].C
    }
    e.K = -e.K
    return e
}

// MultiplyByConstant scales the numerator by c.
func (self *Utils) MultiplyByConstant(e *CanonExpr, c int64) *CanonExpr {
    if c == 0 {
        e.IV = nil
        e.Blobs = nil
        e.K = 0
        e.Denom = 1
        self.recompute(e)
        return e
    }
    self.scale(e, c)
    self.Simplify(e)
    self.recompute(e)
    return e
}

// MultiplyByBlob multiplies the whole expression by a blob: constant IV
// coefficients pick up the blob, blob-scaled IV slots and blob terms turn
// into product blobs, the constant becomes a blob term.
func (self *Utils) MultiplyByBlob(e *CanonExpr, blob uint32) *CanonExpr {
    for i, c := range e.IV {
        if c.isZero() {
            continue
        }
        if c.Blob == 0 {
            e.IV[i].Blob = blob
        } else {
            e.IV[i].Blob = self.Blobs.Product(c.Blob, blob)
        }
    }

    /* D*b1 becomes D*(b1*b) */
    old := e.Blobs
    e.Blobs = nil
    for _, t := range old {
        self.addBlobTerm(e, self.Blobs.Product(t.Blob, blob), t.C)
    }

    /* K becomes K*b */
    if e.K != 0 {
        self.addBlobTerm(e, blob, e.K)
        e.K = 0
    }

    self.recompute(e)
    return e
}

// ReplaceIVByConstant substitutes the IV at the given level with the
// constant v. Blob-scaled coefficients fold into a blob term, plain ones
// into K.
func (self *Utils) ReplaceIVByConstant(e *CanonExpr, level int, v int64) *CanonExpr {
    c := e.IVCoeffAt(level)
    if c.isZero() {
        return e
    }
    if c.Blob != 0 {
        self.addBlobTerm(e, c.Blob, c.C*v)
    } else {
        e.K += c.C * v
    }
    e.IV[level-1] = IVCoeff{}
    self.Simplify(e)
    self.recompute(e)
    return e
}

// Shift substitutes i_level with i_level + off.
func (self *Utils) Shift(e *CanonExpr, level int, off int64) *CanonExpr {
    c := e.IVCoeffAt(level)
    if c.isZero() || off == 0 {
        return e
    }
    if c.Blob != 0 {
        self.addBlobTerm(e, c.Blob, c.C*off)
    } else {
        e.K += c.C * off
    }
    self.recompute(e)
    return e
}

// DivideBy divides the whole expression by n. Dividing by a negative n
// negates the numerator so the denominator stays positive; dividing by
// zero is a programming error.
func (self *Utils) DivideBy(e *CanonExpr, n int64) *CanonExpr {
    if n == 0 {
        panic("canon: zero denominator")
    }
    e.Denom *= n
    self.Simplify(e)
    self.recompute(e)
    return e
}

// Simplify divides numerator and denominator by their gcd.
func (self *Utils) Simplify(e *CanonExpr) *CanonExpr {
    if e.Denom == 0 {
        panic("canon: zero denominator")
    }

    /* a negative denominator moves its sign to the numerator */
    if e.Denom < 0 {
        e.Denom = -e.Denom
        self.Negate(e)
    }

    /* drop zero blob terms, dead blob-scaled IV slots and trailing zero
     * IV slots */
    for i := range e.IV {
        if e.IV[i].C == 0 {
            e.IV[i] = IVCoeff{}
        }
    }
    keep := e.Blobs[:0]
    for _, t := range e.Blobs {
        if t.C != 0 {
            keep = append(keep, t)
        }
    }
    e.Blobs = keep
    e.IV = e.IV[:e.NumIVs()]

    /* gcd over every coefficient including the denominator */
    g := e.Denom
    for _, c := range e.IV {
        g = gcd(g, c.C)
    }
    for _, t := range e.Blobs {
        g = gcd(g, t.C)
    }
    g = gcd(g, e.K)

    if g > 1 {
        for i := range e.IV {
            e.IV[i].C /= g
        }
        for i := range e.Blobs {
            e.Blobs[i].C /= g
        }
        e.K /= g
        e.Denom /= g
    }
    return e
}

// ReplaceBlob rewrites every reference to blob old with blob new.
func (self *Utils) ReplaceBlob(e *CanonExpr, old uint32, new uint32) *CanonExpr {
    for i := range e.IV {
        if e.IV[i].Blob == old {
            e.IV[i].Blob = new
        }
    }

    /* rebuild terms through addBlobTerm so indexes stay sorted and
     * merged */
    terms := e.Blobs
    e.Blobs = nil
    for _, t := range terms {
        if t.Blob == old {
            self.addBlobTerm(e, new, t.C)
        } else {
            self.addBlobTerm(e, t.Blob, t.C)
        }
    }

    self.recompute(e)
    return e
}

// ExtractBlobIndices lists every blob the expression depends on, in
// ascending order without duplicates.
func (self *Utils) ExtractBlobIndices(e *CanonExpr) []uint32 {
    seen := make(map[uint32]bool)
    var ret []uint32

    add := func(b uint32) {
        if b != 0 && !seen[b] {
            seen[b] = true
            ret = append(ret, b)
        }
    }

    for _, c := range e.IV {
        if !c.isZero() {
            add(c.Blob)
        }
    }
    for _, t := range e.Blobs {
        add(t.Blob)
    }

    sort.Slice(ret, func(i int, j int) bool { return ret[i] < ret[j] })
    return ret
}

// Equal compares two expressions, ignoring trailing zero IV slots.
func (self *Utils) Equal(a *CanonExpr, b *CanonExpr) bool {
    if a.SrcType != b.SrcType || a.DstType != b.DstType || a.SExt != b.SExt {
        return false
    }
    if a.K != b.K || a.Denom != b.Denom || len(a.Blobs) != len(b.Blobs) {
        return false
    }
    for i := range a.Blobs {
        if a.Blobs[i] != b.Blobs[i] {
            return false
        }
    }
    if a.NumIVs() != b.NumIVs() {
        return false
    }
    for i := 0; i < a.NumIVs(); i++ {
        if a.IV[i] != b.IV[i] {
            return false
        }
    }
    return true
}

/* internals */

func (self *Utils) scale(e *CanonExpr, f int64) {
    if f == 1 {
        return
    }
    for i := range e.IV {
        e.IV[i].C *= f
    }
    for i := range e.Blobs {
        e.Blobs[i].C *= f
    }
    e.K *= f
}

// addBlobTerm folds c*blob into the sorted term list.
func (self *Utils) addBlobTerm(e *CanonExpr, blob uint32, c int64) {
    if c == 0 {
        return
    }
    i := sort.Search(len(e.Blobs), func(i int) bool { return e.Blobs[i].Blob >= blob })

    /* merge into an existing term */
    if i < len(e.Blobs) && e.Blobs[i].Blob == blob {
        e.Blobs[i].C += c
        if e.Blobs[i].C == 0 {
            e.Blobs = append(e.Blobs[:i], e.Blobs[i+1:]...)
        }
        return
    }

    e.Blobs = append(e.Blobs, BlobCoeff{})
    copy(e.Blobs[i+1:], e.Blobs[i:])
    e.Blobs[i] = BlobCoeff { Blob: blob, C: c }
}

// recompute refreshes DefinedAt as the max definition level over the
// blobs still present; one non-linear blob poisons the whole expression.
func (self *Utils) recompute(e *CanonExpr) {
    lv := 0
    visit := func(b uint32) {
        if b == 0 || lv == NonLinear {
            return
        }
        if v := self.Blobs.Get(b).Level; v == NonLinear {
            lv = NonLinear
        } else if v > lv {
            lv = v
        }
    }

    for _, c := range e.IV {
        if !c.isZero() {
            visit(c.Blob)
        }
    }
    for _, t := range e.Blobs {
        visit(t.Blob)
    }
    e.DefinedAt = lv
}

func gcd(a int64, b int64) int64 {
    if a < 0 { a = -a }
    if b < 0 { b = -b }
    for b != 0 {
        a, b = b, a%b
    }
    return a
}

func lcm(a int64, b int64) int64 {
    return a / gcd(a, b) * b
}
