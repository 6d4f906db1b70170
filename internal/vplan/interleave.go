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

package vplan

import (
    `github.com/cloudwego/vecplan/internal/hlir`
    `github.com/cloudwego/vecplan/internal/vls`
)

// LowerInterleaveGroups rewrites the one-by-one recipes of grouped
// memory accesses into interleave recipes: the group leader's recipe
// becomes one Interleave carrying every member, the recipes of the
// other members disappear. groups maps each grouped access to its
// group, leaders marks the member standing first in the group.
func LowerInterleaveGroups(p *VPlan, groups map[*hlir.HLInst]*vls.Group, leaders map[*hlir.HLInst]bool) {
    if len(groups) == 0 {
        return
    }

    /* members in recipe order, one list per group */
    members := make(map[*vls.Group][]*hlir.HLInst)
    lead := make(map[*vls.Group]bool)

    for _, bb := range p.BasicBlocks() {
        for _, rc := range bb.Recipes {
            n := soleIngredient(rc)
            if n == nil || groups[n] == nil {
                continue
            }
            members[groups[n]] = append(members[groups[n]], n)
            if leaders[n] {
                lead[groups[n]] = true
            }
        }
    }

    for _, bb := range p.BasicBlocks() {
        out := bb.Recipes[:0]
        for _, rc := range bb.Recipes {
            n := soleIngredient(rc)

            /* a group without its leader in the plan stays one-by-one */
            if n == nil || groups[n] == nil || !lead[groups[n]] {
                out = append(out, rc)
                continue
            }

            if leaders[n] {
                g := groups[n]
                il := &Interleave { Group: g, Members: members[g] }
                p.MapRecipe(il, members[g]...)
                out = append(out, il)
            }
        }
        bb.Recipes = out
    }
}

func soleIngredient(rc Recipe) *hlir.HLInst {
    v, ok := rc.(*VectorizeOneByOne)
    if !ok || len(v.Ingredients) != 1 {
        return nil
    }
    return v.Ingredients[0]
}
