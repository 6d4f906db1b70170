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
    `github.com/cloudwego/vecplan/internal/hir`
)

// IRRegion is one candidate for high-level loop optimization: an SESE
// slice of the function CFG, either a loop nest or the whole function.
type IRRegion struct {
    Entry         *hir.BasicBlock
    Exit          *hir.BasicBlock
    BBs           []*hir.BasicBlock
    Loop          *hir.Loop
    FunctionLevel bool
}

// Contains checks whether bb belongs to the region.
func (self *IRRegion) Contains(bb *hir.BasicBlock) bool {
    for _, v := range self.BBs {
        if v == bb {
            return true
        }
    }
    return false
}

// NumBlocks is the block count of the region body.
func (self *IRRegion) NumBlocks() int {
    return len(self.BBs)
}
