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
    `fmt`

    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/hlir`
    `github.com/cloudwego/vecplan/internal/vls`
)

// RecipeKind discriminates the recipe sum-type.
type RecipeKind uint8

const (
    RkVectorizeOneByOne RecipeKind = iota + 1
    RkScalarizeOneByOne
    RkWidenIntInduction
    RkBuildScalarSteps
    RkInterleave
    RkExtractMaskBit
    RkMergeScalarizeBranch
    RkUniformConditionBit
    RkNonUniformConditionBit
    RkCmpConditionBit
    RkLiveInConditionBit
    RkAllOnes
    RkBlockPredicate
    RkIfTrue
    RkIfFalse
    RkMaskGeneration
    RkBranchIfNotAllZero
    RkNonUniformBranch
)

var _RecipeNames = map[RecipeKind]string {
    RkVectorizeOneByOne      : "vectorize-1x1",
    RkScalarizeOneByOne      : "scalarize-1x1",
    RkWidenIntInduction      : "widen-int-induction",
    RkBuildScalarSteps       : "build-scalar-steps",
    RkInterleave             : "interleave",
    RkExtractMaskBit         : "extract-mask-bit",
    RkMergeScalarizeBranch   : "merge-scalarize-branch",
    RkUniformConditionBit    : "uniform-cond-bit",
    RkNonUniformConditionBit : "non-uniform-cond-bit",
    RkCmpConditionBit        : "cmp-cond-bit",
    RkLiveInConditionBit     : "live-in-cond-bit",
    RkAllOnes                : "all-ones",
    RkBlockPredicate         : "block-predicate",
    RkIfTrue                 : "if-true",
    RkIfFalse                : "if-false",
    RkMaskGeneration         : "mask-generation",
    RkBranchIfNotAllZero     : "branch-if-not-all-zero",
    RkNonUniformBranch       : "non-uniform-branch",
}

func (self RecipeKind) String() string {
    if s, ok := _RecipeNames[self]; ok {
        return s
    }
    return fmt.Sprintf("recipe(%d)", self)
}

// Recipe is one plan node: how a set of ingredients will be emitted in
// the vectorized version.
type Recipe interface {
    Kind() RecipeKind
    String() string
}

// ConditionBit is the subset of recipes usable as a two-way branch
// condition.
type ConditionBit interface {
    Recipe
    conditionBit()
}

// Predicate is the subset of recipes usable as a block or edge predicate.
type Predicate interface {
    Recipe
    predicate()
}

// VectorizeOneByOne widens each ingredient to VF lanes, one instruction
// per ingredient.
type VectorizeOneByOne struct {
    Ingredients []*hlir.HLInst
}

// ScalarizeOneByOne replicates each ingredient VF times; when Predicated
// the replicas execute under per-lane mask extracts.
type ScalarizeOneByOne struct {
    Ingredients []*hlir.HLInst
    Predicated  bool
}

// WidenIntInduction emits the canonical vector IV for one induction phi.
type WidenIntInduction struct {
    Phi   *hlir.HLInst
    Start hir.Value
    Step  hir.Value
}

// BuildScalarSteps materializes the per-lane scalar values of a widened
// induction for consumers that stay scalar.
type BuildScalarSteps struct {
    Induction *WidenIntInduction
}

// Interleave emits one VLS group as wide loads plus shuffles. Members
// lists the ingredient accesses in group order.
type Interleave struct {
    Group   *vls.Group
    Members []*hlir.HLInst
}

// ExtractMaskBit pulls the live-lane bits of a predicate mask so the
// scalar replicas of the block can test them one by one.
type ExtractMaskBit struct {
    Mask Predicate
}

// MergeScalarizeBranch folds the per-lane results of a predicated
// scalarized region back into one vector phi.
type MergeScalarizeBranch struct {
    Phi *hlir.HLInst
}

// UniformConditionBit guards a branch whose condition is the same for
// every lane; the branch stays a branch and produces no mask.
type UniformConditionBit struct {
    Cond *hlir.HLInst
}

// NonUniformConditionBit guards a divergent branch.
type NonUniformConditionBit struct {
    Cond *hlir.HLInst
}

// CmpConditionBit is a condition produced by an in-region compare.
type CmpConditionBit struct {
    Cmp *hlir.HLInst
}

// LiveInConditionBit is a condition flowing in from outside the region.
type LiveInConditionBit struct {
    Val hir.Value
}

// AllOnes is the unconditional predicate. One instance exists per plan.
type AllOnes struct{}

// BlockPredicate is the predicate of one block: the union of its
// incoming edge predicates, or a header phi over them when IsPhi.
type BlockPredicate struct {
    Incoming []Predicate
    IsPhi    bool
}

// IfTrue is an edge predicate: source predicate AND condition.
type IfTrue struct {
    Cond ConditionBit
    Pred Predicate
}

// IfFalse is an edge predicate: source predicate AND NOT condition.
type IfFalse struct {
    Cond ConditionBit
    Pred Predicate
}

// MaskGeneration materializes a predicate as a vector mask value.
type MaskGeneration struct {
    Pred Predicate
}

// BranchIfNotAllZero branches only when at least one lane of the mask
// is live.
type BranchIfNotAllZero struct {
    Mask *MaskGeneration
}

// NonUniformBranch replaces a divergent branch during predication.
type NonUniformBranch struct {
    Cond ConditionBit
}

func (*VectorizeOneByOne) Kind() RecipeKind      { return RkVectorizeOneByOne }
func (*ScalarizeOneByOne) Kind() RecipeKind      { return RkScalarizeOneByOne }
func (*WidenIntInduction) Kind() RecipeKind      { return RkWidenIntInduction }
func (*BuildScalarSteps) Kind() RecipeKind       { return RkBuildScalarSteps }
func (*Interleave) Kind() RecipeKind             { return RkInterleave }
func (*ExtractMaskBit) Kind() RecipeKind         { return RkExtractMaskBit }
func (*MergeScalarizeBranch) Kind() RecipeKind   { return RkMergeScalarizeBranch }
func (*UniformConditionBit) Kind() RecipeKind    { return RkUniformConditionBit }
func (*NonUniformConditionBit) Kind() RecipeKind { return RkNonUniformConditionBit }
func (*CmpConditionBit) Kind() RecipeKind        { return RkCmpConditionBit }
func (*LiveInConditionBit) Kind() RecipeKind     { return RkLiveInConditionBit }
func (*AllOnes) Kind() RecipeKind                { return RkAllOnes }
func (*BlockPredicate) Kind() RecipeKind         { return RkBlockPredicate }
func (*IfTrue) Kind() RecipeKind                 { return RkIfTrue }
func (*IfFalse) Kind() RecipeKind                { return RkIfFalse }
func (*MaskGeneration) Kind() RecipeKind         { return RkMaskGeneration }
func (*BranchIfNotAllZero) Kind() RecipeKind     { return RkBranchIfNotAllZero }
func (*NonUniformBranch) Kind() RecipeKind       { return RkNonUniformBranch }

func (*UniformConditionBit) conditionBit()    {}
func (*NonUniformConditionBit) conditionBit() {}
func (*CmpConditionBit) conditionBit()        {}
func (*LiveInConditionBit) conditionBit()     {}

func (*AllOnes) predicate()        {}
func (*BlockPredicate) predicate() {}
func (*IfTrue) predicate()         {}
func (*IfFalse) predicate()        {}

func (self *VectorizeOneByOne) String() string {
    return fmt.Sprintf("%s x%d", self.Kind(), len(self.Ingredients))
}

func (self *ScalarizeOneByOne) String() string {
    if self.Predicated {
        return fmt.Sprintf("%s x%d (predicated)", self.Kind(), len(self.Ingredients))
    }
    return fmt.Sprintf("%s x%d", self.Kind(), len(self.Ingredients))
}

func (self *WidenIntInduction) String() string {
    return fmt.Sprintf("%s %s", self.Kind(), self.Phi.Inst)
}

func (self *BuildScalarSteps) String() string     { return self.Kind().String() }
func (self *ExtractMaskBit) String() string       { return self.Kind().String() }
func (self *MergeScalarizeBranch) String() string { return self.Kind().String() }
func (self *UniformConditionBit) String() string  { return self.Kind().String() }
func (self *NonUniformConditionBit) String() string { return self.Kind().String() }
func (self *CmpConditionBit) String() string      { return self.Kind().String() }
func (self *LiveInConditionBit) String() string   { return self.Kind().String() }
func (self *AllOnes) String() string              { return self.Kind().String() }
func (self *MaskGeneration) String() string       { return self.Kind().String() }
func (self *BranchIfNotAllZero) String() string   { return self.Kind().String() }
func (self *NonUniformBranch) String() string     { return self.Kind().String() }

func (self *Interleave) String() string {
    return fmt.Sprintf("%s x%d", self.Kind(), len(self.Members))
}

func (self *BlockPredicate) String() string {
    if self.IsPhi {
        return fmt.Sprintf("%s phi/%d", self.Kind(), len(self.Incoming))
    }
    return fmt.Sprintf("%s /%d", self.Kind(), len(self.Incoming))
}

func (self *IfTrue) String() string  { return self.Kind().String() }
func (self *IfFalse) String() string { return self.Kind().String() }
