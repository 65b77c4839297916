package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestForm_NormalizeTags(t *testing.T) {
	form := &Form{Tags: []string{"Finance", "OPS", "legal"}}
	form.NormalizeTags()
	require.Equal(t, []string{"finance", "ops", "legal"}, form.Tags)
}

func TestForm_SharedWith(t *testing.T) {
	form := &Form{FormAccesses: []FormAccess{
		{OrganisationID: "org-a", FullOrganisationID: "root_org-a"},
		{OrganisationID: "org-b", FullOrganisationID: "root_org-b"},
	}}

	require.True(t, form.SharedWith([]string{"org-b"}))
	require.True(t, form.SharedWith([]string{"org-c", "org-a"}))
	require.False(t, form.SharedWith([]string{"org-c"}))
	require.False(t, form.SharedWith(nil))
}

func TestForm_Clone(t *testing.T) {
	deadline := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	form := &Form{
		ID:       "f1",
		Title:    "Weekly Report",
		Deadline: &deadline,
		Tags:     []string{"finance"},
		Columns: []Column{
			{Name: "Status", Reference: "status", DataType: ColumnTypeDropdown, DropdownOptions: []string{"open"}},
		},
		Rows: [][]CellValue{
			{OptionValue("open")},
		},
		FormAccesses: []FormAccess{
			{OrganisationID: "org-a", FullOrganisationID: "root_org-a"},
		},
	}

	clone := form.Clone()
	require.Equal(t, form, clone)

	clone.Tags[0] = "mutated"
	clone.Columns[0].DropdownOptions[0] = "mutated"
	clone.Rows[0][0] = TextValue("mutated")
	clone.FormAccesses[0].OrganisationID = "mutated"

	require.Equal(t, "finance", form.Tags[0])
	require.Equal(t, "open", form.Columns[0].DropdownOptions[0])
	require.Equal(t, OptionValue("open"), form.Rows[0][0])
	require.Equal(t, "org-a", form.FormAccesses[0].OrganisationID)
}

func TestColumn_Accepts(t *testing.T) {
	t.Run("kind must match the column type", func(t *testing.T) {
		col := Column{DataType: ColumnTypeNumber}
		require.True(t, col.Accepts(NumberValue(5)))
		require.False(t, col.Accepts(TextValue("5")))
	})

	t.Run("numeric bounds", func(t *testing.T) {
		min, max := 1.0, 10.0
		col := Column{DataType: ColumnTypeNumber, Min: &min, Max: &max}
		require.True(t, col.Accepts(NumberValue(5)))
		require.False(t, col.Accepts(NumberValue(0)))
		require.False(t, col.Accepts(NumberValue(11)))
	})

	t.Run("text length bounds", func(t *testing.T) {
		minLen, maxLen := 2, 4
		col := Column{DataType: ColumnTypeText, MinLength: &minLen, MaxLength: &maxLen}
		require.True(t, col.Accepts(TextValue("abc")))
		require.False(t, col.Accepts(TextValue("a")))
		require.False(t, col.Accepts(TextValue("abcde")))
	})

	t.Run("absent length bounds leave text unbounded", func(t *testing.T) {
		zero := 0
		unbounded := Column{DataType: ColumnTypeText}
		capped := Column{DataType: ColumnTypeText, MaxLength: &zero}
		require.True(t, unbounded.Accepts(TextValue(strings.Repeat("x", 500))))
		require.False(t, capped.Accepts(TextValue("x")))
	})

	t.Run("dropdown membership", func(t *testing.T) {
		col := Column{DataType: ColumnTypeDropdown, DropdownOptions: []string{"open", "closed"}}
		require.True(t, col.Accepts(OptionValue("open")))
		require.False(t, col.Accepts(OptionValue("pending")))
	})

	t.Run("empty values follow the required flag", func(t *testing.T) {
		optional := Column{DataType: ColumnTypeText}
		required := Column{DataType: ColumnTypeText, IsRequired: true}
		require.True(t, optional.Accepts(EmptyValue()))
		require.False(t, required.Accepts(EmptyValue()))
	})
}

func TestCellValue_Compare(t *testing.T) {
	t.Run("numbers order numerically", func(t *testing.T) {
		require.Negative(t, NumberValue(1).Compare(NumberValue(2)))
		require.Positive(t, NumberValue(3).Compare(NumberValue(2)))
		require.Zero(t, NumberValue(2).Compare(NumberValue(2)))
	})

	t.Run("dates order chronologically", func(t *testing.T) {
		early := DateValue(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		late := DateValue(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		require.Negative(t, early.Compare(late))
	})

	t.Run("mixed kinds stay totally ordered", func(t *testing.T) {
		a := NumberValue(1)
		b := TextValue("x")
		require.Equal(t, -a.Compare(b), b.Compare(a))
		require.NotZero(t, a.Compare(b))
	})
}
