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
    `fmt`
    `strings`

    `github.com/cloudwego/vecplan/internal/hir`
)

// MaxLoopNestLevel is the deepest loop level a canon expression can refer
// to.
const MaxLoopNestLevel = 9

// IVCoeff is the coefficient of one induction variable. A non-zero Blob
// makes the term C * blob * iv instead of C * iv.
type IVCoeff struct {
    C    int64
    Blob uint32
}

func (self IVCoeff) isZero() bool {
    return self.C == 0
}

// BlobCoeff is one C * blob additive term.
type BlobCoeff struct {
    Blob uint32
    C    int64
}

// CanonExpr is the closed linear form
//
//      (Σ Cᵢ·iᵢ + Σ Dⱼ·bⱼ + K) / N
//
// over induction variables i₁..i₉ and blob terms. The IV slice is indexed
// by level-1 and may be shorter than the deepest level; missing slots are
// zero. Blob terms are kept sorted by blob index. The denominator is
// always positive.
type CanonExpr struct {
    SrcType   hir.Type
    DstType   hir.Type
    SExt      bool
    IV        []IVCoeff
    Blobs     []BlobCoeff
    K         int64
    Denom     int64
    SignedDiv bool
    DefinedAt int
}

// IVCoeffAt returns the coefficient at the 1-based loop level.
func (self *CanonExpr) IVCoeffAt(level int) IVCoeff {
    if level < 1 || level > len(self.IV) {
        return IVCoeff{}
    }
    return self.IV[level-1]
}

// NumIVs is the number of trailing-trimmed IV slots.
func (self *CanonExpr) NumIVs() int {
    n := len(self.IV)
    for n > 0 && self.IV[n-1].isZero() {
        n--
    }
    return n
}

// IsZero checks for the constant zero expression.
func (self *CanonExpr) IsZero() bool {
    v, ok := self.IntConst()
    return ok && v == 0
}

// IntConst reports the expression as an integer constant: no IVs, no
// blobs, unit denominator.
func (self *CanonExpr) IntConst() (int64, bool) {
    if self.NumIVs() != 0 || len(self.Blobs) != 0 || self.Denom != 1 {
        return 0, false
    }
    return self.K, true
}

// IsProperLinear checks for an expression with no blob dependences at all.
func (self *CanonExpr) IsProperLinear() bool {
    return self.DefinedAt == 0
}

// IsNonLinear checks whether some blob is defined inside the current loop.
func (self *CanonExpr) IsNonLinear() bool {
    return self.DefinedAt == NonLinear
}

func (self *CanonExpr) String() string {
    var terms []string
    for i, c := range self.IV {
        if !c.isZero() {
            if c.Blob != 0 {
                terms = append(terms, fmt.Sprintf("%d*b%d*i%d", c.C, c.Blob, i+1))
            } else {
                terms = append(terms, fmt.Sprintf("%d*i%d", c.C, i+1))
            }
        }
    }
    for _, b := range self.Blobs {
        terms = append(terms, fmt.Sprintf("%d*b%d", b.C, b.Blob))
    }
    if self.K != 0 || len(terms) == 0 {
        terms = append(terms, fmt.Sprintf("%d", self.K))
    }
    s := strings.Join(terms, " + ")
    if self.Denom != 1 {
        s = "(" + s + ")/" + fmt.Sprintf("%d", self.Denom)
    }
    return s
}
