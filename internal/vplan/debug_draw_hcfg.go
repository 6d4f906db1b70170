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
    `os`

    `github.com/ajstarks/svgo`
)

// DrawHCFG renders the plan's blocks and recipes as a plain SVG column
// layout, one box per basic block. Debugging aid only.
func DrawHCFG(fn string, p *VPlan) {
    bbs := p.BasicBlocks()
    maxw := len(p.Name)
    rows := 0

    for _, bb := range bbs {
        rows += len(bb.Recipes) + 2
        if len(bb.Name()) > maxw {
            maxw = len(bb.Name())
        }
        for _, r := range bb.Recipes {
            if n := len(r.String()); n > maxw {
                maxw = n
            }
        }
    }

    fp, err := os.OpenFile(fn, os.O_RDWR | os.O_CREATE | os.O_TRUNC, 0644)
    if err != nil {
        panic(err)
    }
    defer fp.Close()

    w := maxw * 9 + 64
    v := svg.New(fp)
    v.Start(w + 40, rows * 24 + 80)
    if _, err = fp.WriteString(`<rect width="100%" height="100%" fill="white" />` + "\n"); err != nil {
        panic(err)
    }

    v.Text(16, 32, fmt.Sprintf("%s (VF=%d)", p.Name, p.VF), "fill:black;font-size:16px;font-family:monospace")
    y := 56
    for _, bb := range bbs {
        top := y
        y += 24
        v.Text(28, y, bb.Name(), "fill:gray;font-size:16px;font-family:monospace")
        for _, r := range bb.Recipes {
            y += 24
            v.Text(44, y, r.String(), "fill:black;font-size:16px;font-family:monospace")
        }
        y += 12
        v.Rect(20, top, w, y - top, "fill:none;stroke:lightgray")
        y += 12
    }
    v.End()
}
