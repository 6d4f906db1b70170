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

package hlir

import (
    `github.com/cloudwego/vecplan/internal/canon`
    `github.com/cloudwego/vecplan/internal/hir`
)

// RegDDRef wraps one value-carrying operand: a canon expression plus
// optional GEP base and offset, naming a storage location through its
// symbase. A RegDDRef is attached to at most one node at a time.
type RegDDRef struct {
    CE      *canon.CanonExpr
    Symbase int
    GEPBase hir.Value
    GEPOff  *canon.CanonExpr
    node    *HLDDNode
    blobs   []*BlobDDRef
}

func NewRegDDRef(ce *canon.CanonExpr, symbase int) *RegDDRef {
    return &RegDDRef { CE: ce, Symbase: symbase }
}

// Node returns the owning node, nil when detached.
func (self *RegDDRef) Node() *HLDDNode {
    return self.node
}

// BlobDDRefs lists the blob-induced dependence edges of this reference.
func (self *RegDDRef) BlobDDRefs() []*BlobDDRef {
    return self.blobs
}

// PopulateBlobDDRefs rebuilds the blob edge list from the blobs still
// referenced by the canon expression and the GEP offset.
func (self *RegDDRef) PopulateBlobDDRefs(u *canon.Utils) {
    self.blobs = self.blobs[:0]
    add := func(ce *canon.CanonExpr) {
        if ce == nil {
            return
        }
        for _, idx := range u.ExtractBlobIndices(ce) {
            self.blobs = append(self.blobs, &BlobDDRef {
                Blob  : idx,
                CE    : u.NewBlob(ce.SrcType, idx),
                owner : self,
            })
        }
    }
    add(self.CE)
    add(self.GEPOff)
}

// BlobDDRef exposes one blob of its owning RegDDRef as a dependence edge
// of its own.
type BlobDDRef struct {
    Blob  uint32
    CE    *canon.CanonExpr
    owner *RegDDRef
}

// Owner returns the RegDDRef this blob edge belongs to.
func (self *BlobDDRef) Owner() *RegDDRef {
    return self.owner
}
