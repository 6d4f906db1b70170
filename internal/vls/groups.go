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
    `github.com/google/btree`
)

type _RelMrf struct {
    dist int64
    seq  int
    mrf  Memref
}

func relMrfLess(a _RelMrf, b _RelMrf) bool {
    if a.dist != b.dist {
        return a.dist < b.dist
    }
    return a.seq < b.seq
}

// _AdjSet collects every memref at a known constant distance from one
// leader, kept sorted by that distance.
type _AdjSet struct {
    leader Memref
    mrfs   *btree.BTreeG[_RelMrf]
}

func newAdjSet(leader Memref) *_AdjSet {
    s := &_AdjSet { leader: leader, mrfs: btree.NewG(8, relMrfLess) }
    s.mrfs.ReplaceOrInsert(_RelMrf { mrf: leader })
    return s
}

func (self *_AdjSet) accepts(mrf Memref) (int64, bool) {
    if mrf.Kind() != self.leader.Kind() || !mrf.HaveSameNumElems(self.leader) {
        return 0, false
    }
    return mrf.IsAConstDistanceFrom(self.leader)
}

func (self *_AdjSet) add(mrf Memref, dist int64) {
    self.mrfs.ReplaceOrInsert(_RelMrf { dist: dist, seq: self.mrfs.Len(), mrf: mrf })
}

// GetGroups partitions the memrefs into groups of same-kind accesses that
// sit within one vlen-byte window of each other and can legally move to
// their group leader. Every input memref lands in exactly one group, a
// lone memref forms a singleton. The returned map gives each memref its
// group.
func GetGroups(mrfs []Memref, vlen uint32) ([]*Group, map[Memref]*Group) {
    if vlen == 0 || vlen > MaxVectorLength {
        vlen = MaxVectorLength
    }

    /* linear scan: attach each memref to the first adjacency set whose
     * leader it is a constant distance from */
    var sets []*_AdjSet
    scan: for _, m := range mrfs {
        for _, s := range sets {
            if d, ok := s.accepts(m); ok {
                s.add(m, d)
                continue scan
            }
        }
        sets = append(sets, newAdjSet(m))
    }

    /* greedy left-to-right grouping inside each set */
    var ret []*Group
    gmap := make(map[Memref]*Group, len(mrfs))

    for _, s := range sets {
        var grp *Group
        var base int64

        s.mrfs.Ascend(func(it _RelMrf) bool {
            eb := it.mrf.Type().ElemBytes()

            /* close the group when the next member would overflow the
             * window or cannot be moved to the leader */
            if grp != nil {
                if it.dist - base + int64(eb) > int64(vlen) || !it.mrf.CanMoveTo(grp.First()) {
                    grp = nil
                }
            }

            if grp == nil {
                grp = newGroup(it.mrf.Kind(), vlen)
                base = it.dist
                ret = append(ret, grp)
            }

            grp.insert(it.mrf, it.dist - base)
            gmap[it.mrf] = grp
            return true
        })
    }
    return ret, gmap
}
