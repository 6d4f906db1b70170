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

package vecplan

import (
    `github.com/cloudwego/vecplan/internal/cost`
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/opts`
    `github.com/cloudwego/vecplan/internal/region`
    `github.com/cloudwego/vecplan/internal/scenario`
    `github.com/cloudwego/vecplan/internal/vplan`
)

// The public surface of the planner. Callers build functions through the
// Builder, hand them to BuildPlans and get one Result per candidate
// region back.
type (
    Function        = hir.Function
    Builder         = hir.Builder
    Region          = region.IRRegion
    Plan            = vplan.VPlan
    Costs           = cost.Costs
    Result          = scenario.PlanResult
    TargetCostQuery = cost.TargetCostQuery
)

// NewFunctionBuilder starts an empty function named name.
func NewFunctionBuilder(name string) *Builder {
    return hir.CreateBuilder(name)
}

// NewHostQuery probes the running machine for its widest vector unit and
// returns the matching cost query.
func NewHostQuery() TargetCostQuery {
    return cost.NewAMD64Query()
}

// BuildPlans identifies the vectorizable regions of fn and returns the
// best plan found for each, priced for the host CPU. A region that does
// not pay for itself comes back with a nil Plan and VF 1.
func BuildPlans(fn *Function, options ...Option) []Result {
    return BuildPlansForTarget(fn, cost.NewAMD64Query(), options...)
}

// BuildPlansForTarget is BuildPlans with an explicit target cost query,
// for cross builds and for tests that must not depend on the host CPU.
func BuildPlansForTarget(fn *Function, query TargetCostQuery, options ...Option) []Result {
    o := opts.DefaultOptions()
    for _, set := range options {
        set(&o)
    }

    rs := region.NewIdentifier(o, nil).FormRegions(fn)
    if len(rs) == 0 {
        return nil
    }

    dt := hir.BuildDominatorTree(fn)
    li := hir.BuildLoopInfo(fn, &dt)
    ev := &scenario.Evaluator {
        Query : query,
        Opts  : o,
        LI    : li,
        SE    : &hir.ScalarEvolution { LI: li },
    }

    ret := make([]Result, 0, len(rs))
    for _, r := range rs {
        ret = append(ret, ev.GetBestPlan(fn.Name, r))
    }
    return ret
}
