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

// IsReducible checks that every retreating edge of the CFG targets a block
// that dominates the edge source, which holds exactly for reducible flow
// graphs.
func IsReducible(fn *Function, dom *DominatorTree) bool {
    state := make(map[int]int, len(fn.Blocks))
    const (
        white = 0
        gray  = 1
        black = 2
    )

    var visit func(bb *BasicBlock) bool
    visit = func(bb *BasicBlock) bool {
        state[bb.Id] = gray
        for _, s := range bb.Successors() {
            switch state[s.Id] {
                case white:
                    if !visit(s) {
                        return false
                    }
                case gray:
                    if !dom.Dominates(s, bb) {
                        return false
                    }
            }
        }
        state[bb.Id] = black
        return true
    }

    return visit(fn.Entry())
}
