// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import "testing"

func TestSemVersionCompare(t *testing.T) {
	a, err := NewSemVersion("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSemVersion("1.3.0")
	if err != nil {
		t.Fatal(err)
	}
	if a.Compare(b) >= 0 {
		t.Errorf("1.2.3 should compare less than 1.3.0")
	}
	if b.Compare(a) <= 0 {
		t.Errorf("1.3.0 should compare greater than 1.2.3")
	}
	if a.Compare(a) != 0 {
		t.Errorf("a version should compare equal to itself")
	}
}

func TestUnboundedSemVersionComparesGreatest(t *testing.T) {
	v, err := NewSemVersion("999.999.999")
	if err != nil {
		t.Fatal(err)
	}
	inf := UnboundedSemVersion()
	if inf.Compare(v) <= 0 {
		t.Error("unbounded sentinel should compare greater than any concrete version")
	}
	if v.Compare(inf) >= 0 {
		t.Error("any concrete version should compare less than the unbounded sentinel")
	}
	if inf.Compare(UnboundedSemVersion()) != 0 {
		t.Error("two unbounded sentinels should compare equal")
	}
}

func TestSemVersionZeroValueIsZero(t *testing.T) {
	var z SemVersion
	if !z.IsZero() {
		t.Error("zero-value SemVersion should report IsZero")
	}
	if UnboundedSemVersion().IsZero() {
		t.Error("the unbounded sentinel is not the zero value")
	}
	if z.String() != "" {
		t.Errorf("zero-value SemVersion should stringify empty, got %q", z.String())
	}
}

func TestRequirementExactMatchesOnlyItsOwnVersion(t *testing.T) {
	v, err := NewSemVersion("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	req := Exact(v)
	if !req.Matches(v) {
		t.Error("an exact requirement must match the version it pins")
	}

	other, err := NewSemVersion("1.2.4")
	if err != nil {
		t.Fatal(err)
	}
	if req.Matches(other) {
		t.Error("an exact requirement must not match a different version")
	}
}

func TestRequirementRangeHalfOpen(t *testing.T) {
	lo, _ := NewSemVersion("1.0.0")
	hi, _ := NewSemVersion("2.0.0")
	req := Range(lo, hi)

	if !req.Matches(lo) {
		t.Error("range lower bound is inclusive")
	}
	if req.Matches(hi) {
		t.Error("range upper bound is exclusive")
	}
}

func TestRequirementRangeWithEqualBoundsIsEmpty(t *testing.T) {
	v, _ := NewSemVersion("1.0.0")
	req := Range(v, v)
	if !req.IsEmpty() {
		t.Error("range(v, v) should be empty per spec boundary behavior")
	}
}

func TestRequirementIntersect(t *testing.T) {
	lo1, _ := NewSemVersion("1.0.0")
	hi1, _ := NewSemVersion("2.0.0")
	lo2, _ := NewSemVersion("1.5.0")
	hi2, _ := NewSemVersion("3.0.0")

	got, ok := Range(lo1, hi1).Intersect(Range(lo2, hi2))
	if !ok {
		t.Fatal("overlapping ranges should intersect")
	}
	v, _ := NewSemVersion("1.6.0")
	if !got.Matches(v) {
		t.Error("intersection should admit a version inside both ranges")
	}
	v2, _ := NewSemVersion("1.2.0")
	if got.Matches(v2) {
		t.Error("intersection should exclude a version outside the narrower range")
	}
}

func TestRequirementIntersectDisjointConflicts(t *testing.T) {
	lo1, _ := NewSemVersion("1.0.0")
	hi1, _ := NewSemVersion("2.0.0")
	lo2, _ := NewSemVersion("3.0.0")
	hi2, _ := NewSemVersion("4.0.0")

	if _, ok := Range(lo1, hi1).Intersect(Range(lo2, hi2)); ok {
		t.Error("disjoint ranges must not intersect")
	}
}
