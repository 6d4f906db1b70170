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

import (
    `strings`
)

// TargetLibraryInfo answers whether a library call has a vector variant on
// the target.
type TargetLibraryInfo struct {
    vecfns map[string]uint32
}

// DefaultTLI lists the math routines with SIMD variants in common vector
// math libraries, with the widest lane count each supports.
func DefaultTLI() *TargetLibraryInfo {
    return &TargetLibraryInfo {
        vecfns: map[string]uint32 {
            "sinf"  : 16,
            "cosf"  : 16,
            "expf"  : 16,
            "logf"  : 16,
            "powf"  : 16,
            "sqrtf" : 16,
            "sin"   : 8,
            "cos"   : 8,
            "exp"   : 8,
            "log"   : 8,
            "pow"   : 8,
            "sqrt"  : 8,
            "fmaf"  : 16,
            "fma"   : 8,
            "fabsf" : 16,
            "fabs"  : 8,
        },
    }
}

// IsFunctionVectorizable checks whether fn has a vector variant at the
// given lane count. A vf of zero asks whether any variant exists.
func (self *TargetLibraryInfo) IsFunctionVectorizable(fn string, vf uint32) bool {
    max, ok := self.vecfns[fn]
    return ok && vf <= max
}

// IsIntrinsic checks for compiler intrinsics, which never constrain
// vectorization by themselves.
func IsIntrinsic(fn string) bool {
    return strings.HasPrefix(fn, "llvm.") || strings.HasPrefix(fn, "__builtin_")
}
