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

package opts

import (
    `github.com/xyproto/env/v2`
)

// OptLevel is the host optimization level the planner was invoked at.
type OptLevel int

const (
    O1 OptLevel = iota + 1
    O2
    O3
)

// Throttling and behavior knobs, overridable through the environment for
// experiments without rebuilding the host.
var (
    // MaxStmtCount rejects loops with more statements than this.
    MaxStmtCount = env.Int(`VECPLAN_MAX_STMT_COUNT`, 200)

    // MaxIfCount rejects loops with more conditionals than this.
    MaxIfCount = env.Int(`VECPLAN_MAX_IF_COUNT`, 7)

    // MaxNestedIfs is the nested-if depth budget at O2.
    MaxNestedIfs = env.Int(`VECPLAN_MAX_NESTED_IFS`, 2)

    // O3NestedIfs is the nested-if depth budget at O3 and above.
    O3NestedIfs = env.Int(`VECPLAN_O3_NESTED_IFS`, 3)

    // DefaultVF forces a vectorization factor on every region when
    // non-zero, unless a SIMD directive forces its own.
    DefaultVF = uint32(env.Int(`VECPLAN_DEFAULT_VF`, 0))

    // EnableVLS turns the load/store grouping engine on.
    EnableVLS = env.Int(`VECPLAN_ENABLE_VLS`, 1) != 0

    // DisableCastCost charges every cast a flat 1 when set.
    DisableCastCost = env.Int(`VECPLAN_DISABLE_CAST_COST`, 0) != 0

    // ForcedVFKeepsVLS keeps computing memref grouping on the forced-VF
    // path even though its cost is never compared.
    ForcedVFKeepsVLS = env.Int(`VECPLAN_FORCED_VF_KEEPS_VLS`, 1) != 0
)

// Options carries the per-invocation settings of one planning run.
type Options struct {
    OptLevel             OptLevel
    ForceVF              uint32
    EnableVLS            bool
    DisableCastCost      bool
    FunctionLevelRegions bool
    MaxStmtCount         int
    MaxIfCount           int
    MaxNestedIfs         int
    O3NestedIfs          int
}

// DefaultOptions seeds an Options from the environment-backed knobs.
func DefaultOptions() Options {
    return Options {
        OptLevel        : O2,
        ForceVF         : DefaultVF,
        EnableVLS       : EnableVLS,
        DisableCastCost : DisableCastCost,
        MaxStmtCount    : MaxStmtCount,
        MaxIfCount      : MaxIfCount,
        MaxNestedIfs    : MaxNestedIfs,
        O3NestedIfs     : O3NestedIfs,
    }
}

// NestedIfBudget is the nested-if depth allowance at the given level.
func (self Options) NestedIfBudget(relaxed bool) int {
    if self.OptLevel >= O3 || relaxed {
        return self.O3NestedIfs
    } else {
        return self.MaxNestedIfs
    }
}
