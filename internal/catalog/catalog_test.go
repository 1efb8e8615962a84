package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranches(t *testing.T) {
	branches := Branches()
	require.Len(t, branches, 6)
	assert.Equal(t, "CSE", branches[0].ID)
	assert.Equal(t, "Artificial Intelligence & ML", branches[5].Name)
}

func TestSubjects(t *testing.T) {
	t.Run("every branch covers every semester", func(t *testing.T) {
		for _, branch := range Branches() {
			for _, sem := range Semesters() {
				assert.NotEmpty(t, Subjects(branch.ID, sem), "%s sem %d", branch.ID, sem)
			}
		}
	})

	t.Run("known combination", func(t *testing.T) {
		subjects := Subjects("CSE", 5)
		require.Len(t, subjects, 5)
		assert.Equal(t, "22CS52", subjects[1].Code)
		assert.Equal(t, "Computer Networks", subjects[1].Name)
	})

	t.Run("unknown branch or semester", func(t *testing.T) {
		assert.Nil(t, Subjects("EEE", 3))
		assert.Nil(t, Subjects("CSE", 8))
	})
}

func TestLookup(t *testing.T) {
	subject, ok := Lookup("22IS53")
	require.True(t, ok)
	assert.Equal(t, "Web Technology and its Applications", subject.Name)

	_, ok = Lookup("99XX00")
	assert.False(t, ok)
}
