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
)

// VPValue is the base of every plan-level value: an identity plus the
// instructions using it.
type VPValue struct {
    Id    int
    Users []*VPInstruction
}

func (self *VPValue) addUser(p *VPInstruction) {
    self.Users = append(self.Users, p)
}

func (self *VPValue) String() string {
    return fmt.Sprintf("vp%%%d", self.Id)
}

// VPInstruction is a plan-level instruction: an opcode over VPValues,
// optionally tied to the underlying value it models.
type VPInstruction struct {
    VPValue
    Op       hir.Op
    Operands []*VPValue
    Under    hir.Value
}

func (self *VPInstruction) String() string {
    return fmt.Sprintf("vp%%%d = %s/%d", self.Id, self.Op, len(self.Operands))
}

// VPConstant is a plan-level constant.
type VPConstant struct {
    VPValue
    Val *hir.Const
}

func (self *VPConstant) String() string {
    return self.Val.String()
}
