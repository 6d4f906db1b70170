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
    `fmt`

    `github.com/cloudwego/vecplan/internal/opts`
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithOptLevel sets the host optimization level the planner runs at.
//
// Higher levels relax the shape limits on candidate loops, most notably
// the nested-if depth budget.
//
// The default value of this option is "2".
func WithOptLevel(level int) Option {
    if level < int(opts.O1) || level > int(opts.O3) {
        panic(fmt.Sprintf("vecplan: invalid optimization level: %d", level))
    } else {
        return func(o *opts.Options) { o.OptLevel = opts.OptLevel(level) }
    }
}

// WithForcedVF forces every region to the given vectorization factor,
// skipping the cost race. A SIMD directive in the source still takes
// precedence over this option.
//
// Set this option to "0" to let the cost model pick the factor.
//
// The default value of this option is "0".
func WithForcedVF(vf uint32) Option {
    if vf & (vf - 1) != 0 {
        panic(fmt.Sprintf("vecplan: vectorization factor is not a power of two: %d", vf))
    } else {
        return func(o *opts.Options) { o.ForceVF = vf }
    }
}

// WithVLS enables or disables the load / store grouping engine.
//
// Grouping finds interleaved accesses that a shuffle sequence can serve
// with fewer wide memory operations. Turning it off prices every access
// on its own.
//
// The default value of this option is "true".
func WithVLS(enable bool) Option {
    return func(o *opts.Options) { o.EnableVLS = enable }
}

// WithCastCost enables or disables per-width cast pricing. When disabled
// every cast charges a flat 1.
//
// The default value of this option is "true".
func WithCastCost(enable bool) Option {
    return func(o *opts.Options) { o.DisableCastCost = !enable }
}

// WithFunctionLevelRegions lets the identifier try one region spanning
// the whole function before falling back to per-loop regions.
//
// The default value of this option is "false".
func WithFunctionLevelRegions(enable bool) Option {
    return func(o *opts.Options) { o.FunctionLevelRegions = enable }
}

// WithMaxStmtCount sets the statement budget above which a loop is not
// considered for planning.
//
// The default value of this option is "200".
func WithMaxStmtCount(n int) Option {
    if n <= 0 {
        panic(fmt.Sprintf("vecplan: invalid statement budget: %d", n))
    } else {
        return func(o *opts.Options) { o.MaxStmtCount = n }
    }
}

// WithMaxIfCount sets the conditional budget above which a loop is not
// considered for planning.
//
// The default value of this option is "7".
func WithMaxIfCount(n int) Option {
    if n <= 0 {
        panic(fmt.Sprintf("vecplan: invalid conditional budget: %d", n))
    } else {
        return func(o *opts.Options) { o.MaxIfCount = n }
    }
}
