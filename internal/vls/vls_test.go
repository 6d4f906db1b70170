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

package vls

import (
    `testing`

    `github.com/brianvoe/gofakeit/v6`
    `github.com/stretchr/testify/require`
)

func sload(id uint32, base int, off int64, stride int64, ty VecType) *ClientMemref {
    return &ClientMemref {
        Id     : id,
        AccTy  : SLoad,
        Ty     : ty,
        Base   : base,
        Offset : off,
        Stride : stride,
        Loc    : int(id),
    }
}

var i32x4 = VecType { ElemBits: 32, NumElems: 4 }

// interleave3 is the classic a[3i], a[3i+1], a[3i+2] pattern.
func interleave3() []Memref {
    return []Memref {
        sload(1, 0, 0, 12, i32x4),
        sload(2, 0, 4, 12, i32x4),
        sload(3, 0, 8, 12, i32x4),
    }
}

// evalLanes resolves every lane of an instruction result to the byte
// address it came from, relative to the group leader. -1 is undefined.
func evalLanes(i Instruction) []int64 {
    switch v := i.(type) {
        case *Load: {
            out := make([]int64, v.Ty.NumElems)
            eb := int64(v.Ty.ElemBytes())
            for k := range out {
                out[k] = v.Off + int64(k) * eb
            }
            return out
        }
        case *Shuffle: {
            a := evalLanes(v.Op1)
            var b []int64
            if v.Op2 != nil {
                b = evalLanes(v.Op2)
            }
            out := make([]int64, len(v.Mask))
            for k, m := range v.Mask {
                switch {
                    case m < 0        : out[k] = -1
                    case m < len(a)   : out[k] = a[m]
                    default           : out[k] = b[m - len(a)]
                }
            }
            return out
        }
        default: {
            return nil
        }
    }
}

func checkMembers(t *testing.T, g *Group, mvals map[Memref]Instruction) {
    stride, _ := g.Stride()
    if stride < 0 {
        stride = -stride
    }
    for _, m := range g.Members {
        ins := mvals[m.Mrf]
        require.NotNil(t, ins)
        lanes := evalLanes(ins)
        require.Len(t, lanes, int(m.Mrf.Type().NumElems))
        for i, got := range lanes {
            require.Equal(t, int64(i) * stride + m.Dist, got)
        }
    }
}

func TestGetGroups_Interleave(t *testing.T) {
    ms := interleave3()
    gs, gmap := GetGroups(ms, 64)

    require.Len(t, gs, 1)
    g := gs[0]
    require.Equal(t, 3, g.Size())
    require.Equal(t, uint64(0xfff), g.AccessMask)
    require.Equal(t, uint64(0b111), g.ElemMask)
    require.True(t, g.IsContiguous())
    for _, m := range ms {
        require.Same(t, g, gmap[m])
    }
}

func TestGetGroups_WindowOverflow(t *testing.T) {
    /* second memref sits past the window, must open its own group */
    ms := []Memref {
        sload(1, 0, 0, 128, i32x4),
        sload(2, 0, 80, 128, i32x4),
    }
    gs, _ := GetGroups(ms, 64)
    require.Len(t, gs, 2)
}

func TestGetGroups_MoveBarrier(t *testing.T) {
    a := sload(1, 0, 0, 12, i32x4)
    b := sload(2, 0, 4, 12, i32x4)
    b.Deny = map[uint32]bool { 1: true }

    gs, _ := GetGroups([]Memref { a, b }, 64)
    require.Len(t, gs, 2)
}

func TestGetSequence_OneWideLoad(t *testing.T) {
    gs, _ := GetGroups(interleave3(), 64)
    seq, mvals, ok := GetSequence(gs[0], FlatCostModel { GatherWeight: 4 }, 100)

    require.True(t, ok)
    require.Len(t, seq, 4)

    ld, isLoad := seq[0].(*Load)
    require.True(t, isLoad)
    require.Equal(t, VecType { ElemBits: 32, NumElems: 12 }, ld.Ty)
    require.Equal(t, int64(0), ld.Off)

    /* three single-source shuffles picking every third lane */
    want := map[uint32][]int {
        1: { 0, 3, 6, 9 },
        2: { 1, 4, 7, 10 },
        3: { 2, 5, 8, 11 },
    }
    for m, ins := range mvals {
        sh, isShuf := ins.(*Shuffle)
        require.True(t, isShuf)
        require.Same(t, ld, sh.Op1)
        require.Nil(t, sh.Op2)
        require.Equal(t, want[m.ID()], sh.Mask)
    }
    checkMembers(t, gs[0], mvals)
}

func TestGetSequence_NarrowVector(t *testing.T) {
    /* with a 16-byte window the stream needs several loads and the
     * gathers need source reduction, the lanes must still line up */
    gs, _ := GetGroups(interleave3(), 16)
    require.Len(t, gs, 1)

    seq, mvals, ok := GetSequence(gs[0], FlatCostModel { GatherWeight: 4 }, 0)
    require.True(t, ok)
    checkMembers(t, gs[0], mvals)

    for _, ins := range seq {
        if sh, isShuf := ins.(*Shuffle); isShuf {
            srcLanes := int(sh.Op1.Type().NumElems)
            if sh.Op2 != nil {
                srcLanes += int(sh.Op2.Type().NumElems)
            }
            require.Len(t, sh.Mask, int(sh.Ty.NumElems))
            for _, v := range sh.Mask {
                require.GreaterOrEqual(t, v, -1)
                require.Less(t, v, srcLanes)
            }
        }
    }
}

func TestGetSequence_GapUnsupported(t *testing.T) {
    /* a[4i] and a[4i+2]: a hole in the access mask */
    ms := []Memref {
        sload(1, 0, 0, 16, i32x4),
        sload(2, 0, 8, 16, i32x4),
    }
    gs, _ := GetGroups(ms, 64)
    require.Len(t, gs, 1)
    require.False(t, gs[0].IsContiguous())

    _, _, ok := GetSequence(gs[0], nil, 0)
    require.False(t, ok)

    /* cost falls back to per-member gathers */
    cm := FlatCostModel { GatherWeight: 4 }
    require.Equal(t, int64(2 * 4 * 4), GetGroupCost(gs[0], cm))
}

func TestGetSequence_OverlapUnsupported(t *testing.T) {
    /* rounds 8 bytes apart but 12 bytes used: they overlap */
    ms := []Memref {
        sload(1, 0, 0, 8, i32x4),
        sload(2, 0, 4, 8, i32x4),
        sload(3, 0, 8, 8, i32x4),
    }
    gs, _ := GetGroups(ms, 64)
    require.Len(t, gs, 1)
    require.False(t, IsSupported(gs[0]))
}

func TestGetGroupCost_PrefersCheaperSide(t *testing.T) {
    gs, _ := GetGroups(interleave3(), 64)

    /* expensive gathers: the shuffle sequence wins */
    cheapSeq := GetGroupCost(gs[0], FlatCostModel { GatherWeight: 100 })

    /* nearly free gathers win instead */
    cheapGather := GetGroupCost(gs[0], FlatCostModel { GatherWeight: 0 })
    require.Less(t, cheapGather, cheapSeq)
}

func TestStoreGroupFallback(t *testing.T) {
    ms := []Memref {
        &ClientMemref { Id: 1, AccTy: SStore, Ty: i32x4, Base: 0, Offset: 0, Stride: 8 },
        &ClientMemref { Id: 2, AccTy: SStore, Ty: i32x4, Base: 0, Offset: 4, Stride: 8 },
    }
    gs, _ := GetGroups(ms, 64)
    require.Len(t, gs, 1)
    require.False(t, IsSupported(gs[0]))

    /* no sequence and no gathers: members times lanes */
    require.Equal(t, int64(8), GetGroupCost(gs[0], FlatCostModel {}))
}

func TestGetGroups_PartitionInvariants(t *testing.T) {
    faker := gofakeit.New(0x5eed)
    kinds := []AccessKind { SLoad, SStore, ILoad, IStore }

    for round := 0; round < 32; round++ {
        n := faker.Number(1, 24)
        ms := make([]Memref, n)
        for i := range ms {
            ms[i] = &ClientMemref {
                Id     : uint32(i + 1),
                AccTy  : kinds[faker.Number(0, 3)],
                Ty     : VecType { ElemBits: 32, NumElems: uint32(faker.RandomInt([]int { 2, 4, 8 })) },
                Base   : faker.Number(0, 2),
                Offset : int64(4 * faker.Number(0, 32)),
                Stride : int64(4 * faker.Number(1, 8)),
                Loc    : i,
            }
        }

        gs, gmap := GetGroups(ms, 64)

        /* every memref lands in exactly one group */
        require.Len(t, gmap, n)
        total := 0
        for _, g := range gs {
            total += g.Size()
            for _, m := range g.Members {
                require.Same(t, g, gmap[m.Mrf])
                require.Equal(t, g.Kind, m.Mrf.Kind())
                require.Equal(t, g.NumElems(), m.Mrf.Type().NumElems)
                require.GreaterOrEqual(t, m.Dist, int64(0))
                require.LessOrEqual(t, m.Dist + int64(m.Mrf.Type().ElemBytes()), int64(64))
            }
        }
        require.Equal(t, n, total)

        /* sequences, where they exist, reproduce the member lanes */
        for _, g := range gs {
            if seq, mvals, ok := GetSequence(g, FlatCostModel { GatherWeight: 2 }, 0); ok {
                require.NotEmpty(t, seq)
                checkMembers(t, g, mvals)
            }
            require.Greater(t, GetGroupCost(g, FlatCostModel { GatherWeight: 2 }), int64(0))
        }
    }
}
