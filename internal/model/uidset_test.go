package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUIDSet_EqualIgnoresOrderAndDuplicates(t *testing.T) {
	a := NewUIDSet("x", "y")
	b := NewUIDSet("y", "x", "y")

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.Equal(t, 2, b.Len())
}

func TestUIDSet_Minus(t *testing.T) {
	a := NewUIDSet("U1", "U2")
	c := NewUIDSet("U1", "U3")

	assert.Equal(t, []string{"U2"}, a.Minus(c).Sorted())
	assert.Equal(t, []string{"U3"}, c.Minus(a).Sorted())
	assert.False(t, a.Equal(c))
	assert.True(t, a.Intersects(c))
	assert.False(t, a.Intersects(NewUIDSet("U9")))
}

func TestUIDSet_Intersect(t *testing.T) {
	a := NewUIDSet("U1", "U2", "U3")
	b := NewUIDSet("U2", "U3", "U4")

	assert.Equal(t, []string{"U2", "U3"}, a.Intersect(b).Sorted())
	assert.True(t, a.Intersects(b))
	assert.Zero(t, a.Intersect(NewUIDSet()).Len())
}

func TestUIDSet_EmptySets(t *testing.T) {
	assert.True(t, NewUIDSet().Equal(UIDSet{}))
	assert.Empty(t, NewUIDSet().Sorted())
}

func TestApprovalRemovable(t *testing.T) {
	for a := range ValidApprovals {
		assert.Equal(t, a == UnApproved, a.Removable(), string(a))
	}
}

func TestDemographicsDICOMFields(t *testing.T) {
	d := Demographics{FirstName: " Jane ", LastName: "Doe"}
	assert.Equal(t, "Doe^Jane", d.DICOMName())
	assert.Equal(t, "", d.DICOMBirthDate())
}

func TestReportFailed(t *testing.T) {
	ok := ReconciliationReport{FoundExpectedContainer: true, ExactMatch: true}
	assert.False(t, ok.Failed())

	ok.CrossListedIn = map[string][]string{"U1": {"C1"}}
	assert.True(t, ok.Failed())

	assert.True(t, ReconciliationReport{ExactMatch: true}.Failed())
}
