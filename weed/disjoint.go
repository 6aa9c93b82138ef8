// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package weed

// disjointSet is a union-find over candidate indexes with path compression
// and union by size.
type disjointSet struct {
	parent []int
	size   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range ds.parent {
		ds.parent[i] = i
		ds.size[i] = 1
	}

	return ds
}

func (ds *disjointSet) find(i int) int {
	root := i
	for ds.parent[root] != root {
		root = ds.parent[root]
	}

	for ds.parent[i] != root {
		ds.parent[i], i = root, ds.parent[i]
	}

	return root
}

func (ds *disjointSet) union(a, b int) {
	ra, rb := ds.find(a), ds.find(b)
	if ra == rb {
		return
	}

	if ds.size[ra] < ds.size[rb] {
		ra, rb = rb, ra
	}

	ds.parent[rb] = ra
	ds.size[ra] += ds.size[rb]
}

// componentSize returns the size of the set holding i.
func (ds *disjointSet) componentSize(i int) int {
	return ds.size[ds.find(i)]
}
