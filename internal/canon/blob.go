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
    `github.com/cloudwego/vecplan/internal/hir`
)

// NonLinear marks a blob defined inside the loop currently being planned,
// which poisons every expression that refers to it.
const NonLinear = -1

// BlobExpr is an opaque sub-expression referenced from canon expressions
// by index. Under is never dereferenced beyond identity. Product blobs
// record the two factors they were built from.
type BlobExpr struct {
    Under   hir.Value
    Symbase int
    Level   int
    ProdL   uint32
    ProdR   uint32
}

func (self BlobExpr) sameShape(other BlobExpr) bool {
    return self.Under == other.Under &&
        self.Symbase == other.Symbase &&
        self.ProdL == other.ProdL &&
        self.ProdR == other.ProdR
}

// BlobTable is the append-only blob registry of one planning session.
// Indices start at 1, index 0 always means "no blob".
type BlobTable struct {
    exprs []BlobExpr
}

func NewBlobTable() *BlobTable {
    return new(BlobTable)
}

// Insert registers be and returns its index. A blob structurally equal to
// an existing one gets the existing index back.
func (self *BlobTable) Insert(be BlobExpr) uint32 {
    for i, v := range self.exprs {
        if v.sameShape(be) {
            return uint32(i + 1)
        }
    }
    self.exprs = append(self.exprs, be)
    return uint32(len(self.exprs))
}

// Get resolves a blob index.
func (self *BlobTable) Get(i uint32) BlobExpr {
    if i == 0 || int(i) > len(self.exprs) {
        panic("canon: invalid blob index")
    }
    return self.exprs[i-1]
}

func (self *BlobTable) Count() int {
    return len(self.exprs)
}

// Product returns the blob standing for x * y, inserting it on first use.
// The product is non-linear as soon as either factor is.
func (self *BlobTable) Product(x uint32, y uint32) uint32 {
    if y < x {
        x, y = y, x
    }

    /* the product lives wherever the later-defined factor lives */
    lv := self.Get(x).Level
    if v := self.Get(y).Level; v == NonLinear || lv == NonLinear {
        lv = NonLinear
    } else if v > lv {
        lv = v
    }

    return self.Insert(BlobExpr {
        Level : lv,
        ProdL : x,
        ProdR : y,
    })
}
