package models

import (
	"slices"
	"strings"
	"time"
)

// ColumnDataType identifies the kind of value a column holds.
// Stored as a string so documents remain readable in the store.
type ColumnDataType string

const (
	ColumnTypeText     ColumnDataType = "text"
	ColumnTypeNumber   ColumnDataType = "number"
	ColumnTypeDate     ColumnDataType = "date"
	ColumnTypeDropdown ColumnDataType = "dropdown"
	ColumnTypeFile     ColumnDataType = "file"
	ColumnTypeCheckbox ColumnDataType = "checkbox"
)

// Form is a user-authored document: metadata, a tabular schema with rows,
// attachments and the organisations the form is shared with.
// Forms are partitioned by OwnerID in the document store.
type Form struct {
	ID        string `json:"id" bson:"_id,omitempty"`
	OwnerID   string `json:"ownerId" bson:"ownerId"`
	OwnerName string `json:"ownerName" bson:"ownerName"`

	CreatedDate  time.Time  `json:"createdDate" bson:"createdDate"`
	ModifiedDate *time.Time `json:"modifiedDate,omitempty" bson:"modifiedDate,omitempty"`

	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Deadline    *time.Time `json:"deadline,omitempty" bson:"deadline,omitempty"`

	IsLocked          bool       `json:"isLocked" bson:"isLocked"`
	LockedUntilDate   *time.Time `json:"lockedUntilDate,omitempty" bson:"lockedUntilDate,omitempty"`
	RowAppendDisabled bool       `json:"rowAppendDisabled" bson:"rowAppendDisabled"`

	IsRecurrent    bool   `json:"isRecurrent" bson:"isRecurrent"`
	CronExpression string `json:"cronExpression,omitempty" bson:"cronExpression,omitempty"`

	IsPinned        bool       `json:"isPinned" bson:"isPinned"`
	PinnedUntilDate *time.Time `json:"pinnedUntilDate,omitempty" bson:"pinnedUntilDate,omitempty"`

	Tags        []string     `json:"tags,omitempty" bson:"tags,omitempty"`
	Columns     []Column     `json:"columns,omitempty" bson:"columns,omitempty"`
	Rows        [][]CellValue `json:"rows,omitempty" bson:"rows,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" bson:"attachments,omitempty"`

	FormAccesses []FormAccess `json:"formAccesses,omitempty" bson:"formAccesses,omitempty"`

	// SendEmailNotifications is a transient input flag controlling the email
	// channel on the notification fan-out. It is not a delivery record.
	SendEmailNotifications bool `json:"sendEmailNotifications,omitempty" bson:"-"`
}

// Column describes one field of the tabular schema.
// Reference keys the row values for this column.
type Column struct {
	Name              string         `json:"name" bson:"name"`
	DataType          ColumnDataType `json:"dataType" bson:"dataType"`
	IsRequired        bool           `json:"isRequired" bson:"isRequired"`
	IsFrozen          bool           `json:"isFrozen" bson:"isFrozen"`
	IsHidden          bool           `json:"isHidden" bson:"isHidden"`
	MultipleValues    bool           `json:"multipleValues" bson:"multipleValues"`
	DropdownOptions   []string       `json:"dropdownOptions,omitempty" bson:"dropdownOptions,omitempty"`
	AllowedExtensions []string       `json:"allowedExtensions,omitempty" bson:"allowedExtensions,omitempty"`
	Reference         string         `json:"reference" bson:"reference"`
	Min               *float64       `json:"min,omitempty" bson:"min,omitempty"`
	Max               *float64       `json:"max,omitempty" bson:"max,omitempty"`
	MinLength         *int           `json:"minLength,omitempty" bson:"minLength,omitempty"`
	MaxLength         *int           `json:"maxLength,omitempty" bson:"maxLength,omitempty"`
}

// FormAccess grants read visibility of a form to one organisation.
// Accesses are owned by the form: created with it and replaced wholesale
// on update, never diffed.
type FormAccess struct {
	OrganisationID     string     `json:"organisationId" bson:"organisationId"`
	FullOrganisationID string     `json:"fullOrganisationId" bson:"fullOrganisationId"`
	SeenDate           *time.Time `json:"seenDate,omitempty" bson:"seenDate,omitempty"`
}

// Attachment references a file stored externally.
type Attachment struct {
	ID       string `json:"id" bson:"id"`
	Filename string `json:"filename" bson:"filename"`
}

// NormalizeTags lower-cases all tags in place. Tag matching is
// case-insensitive, so tags are always stored lower-cased.
func (f *Form) NormalizeTags() {
	for i, t := range f.Tags {
		f.Tags[i] = strings.ToLower(t)
	}
}

// SharedWith reports whether any of the form's accesses reference one of
// the given organisation ids.
func (f *Form) SharedWith(orgIDs []string) bool {
	for _, fa := range f.FormAccesses {
		if slices.Contains(orgIDs, fa.OrganisationID) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so store implementations can hand out
// documents without sharing slices with callers.
func (f *Form) Clone() *Form {
	clone := *f
	clone.Tags = slices.Clone(f.Tags)
	clone.Columns = cloneColumns(f.Columns)
	clone.Attachments = slices.Clone(f.Attachments)
	clone.FormAccesses = slices.Clone(f.FormAccesses)
	if f.Rows != nil {
		clone.Rows = make([][]CellValue, len(f.Rows))
		for i, row := range f.Rows {
			clone.Rows[i] = slices.Clone(row)
		}
	}
	return &clone
}

func cloneColumns(cols []Column) []Column {
	if cols == nil {
		return nil
	}
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c
		out[i].DropdownOptions = slices.Clone(c.DropdownOptions)
		out[i].AllowedExtensions = slices.Clone(c.AllowedExtensions)
	}
	return out
}
