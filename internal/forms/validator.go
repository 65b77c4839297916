package forms

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/formdesk/formdesk/internal/models"
)

const (
	titleMinLength = 6

	// cronTopOfHourPrefix pins recurrent schedules to the top of the hour.
	cronTopOfHourPrefix = "0 0 "

	// cronProbeWindow is how far ahead a recurrent schedule is probed; more
	// than one occurrence inside it means a sub-minute schedule.
	cronProbeWindow = 30 * time.Second
)

// cronParser accepts standard five-field expressions plus an optional
// leading seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Validator checks a candidate form payload and reports every failing rule
// at once, keyed the way clients translate them.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator using the given clock for the cron
// occurrence probe.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate applies the full rule set. Returns a *ValidationError listing
// all failures, or nil when the payload is acceptable.
func (v *Validator) Validate(form *models.Form) error {
	var errs ValidationError

	switch {
	case form.Title == "":
		errs.add("title", "forms.formDto.titleRequired")
	case len(form.Title) < titleMinLength:
		errs.add("title", "forms.formDto.titleTooShort|chars:6")
	}

	if form.IsRecurrent {
		v.validateCron(form.CronExpression, &errs)
	}

	for i, att := range form.Attachments {
		if att.ID == "" {
			errs.addf("forms.formDto.attachmentIdRequired", "attachments[%d].id", i)
		}
		if att.Filename == "" {
			errs.addf("forms.formDto.attachmentFilenameRequired", "attachments[%d].filename", i)
		}
	}

	for i, col := range form.Columns {
		if col.Name == "" {
			errs.addf("forms.formDto.columnNameRequired", "columns[%d].name", i)
		}
		if col.Reference == "" {
			errs.addf("forms.formDto.columnReferenceRequired", "columns[%d].reference", i)
		}
		if col.DataType == models.ColumnTypeDropdown && len(col.DropdownOptions) == 0 {
			errs.addf("forms.formDto.dropdownOptionsRequired", "columns[%d].dropdownOptions", i)
		}
	}

	v.validateRows(form, &errs)

	for i, fa := range form.FormAccesses {
		if fa.OrganisationID == "" {
			errs.addf("forms.formDto.accessOrganisationRequired", "formAccesses[%d].organisationId", i)
		}
		if fa.FullOrganisationID == "" {
			errs.addf("forms.formDto.accessOrganisationRequired", "formAccesses[%d].fullOrganisationId", i)
		}
	}

	return errs.orNil()
}

// validateCron enforces the strict recurrence rules: the expression must
// parse, start at the top of the hour, and produce at most one occurrence
// within the probe window starting now.
func (v *Validator) validateCron(expr string, errs *ValidationError) {
	if expr == "" {
		errs.add("cronExpression", "forms.formDto.cronExpressionRequired")
		return
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		errs.add("cronExpression", "forms.formDto.invalidCronExpression")
		return
	}

	if !strings.HasPrefix(expr, cronTopOfHourPrefix) {
		errs.add("cronExpression", "forms.formDto.invalidCronExpression")
		return
	}

	now := v.now()
	deadline := now.Add(cronProbeWindow)
	occurrences := 0
	for t := schedule.Next(now); !t.IsZero() && !t.After(deadline); t = schedule.Next(t) {
		occurrences++
		if occurrences > 1 {
			errs.add("cronExpression", "forms.formDto.invalidCronExpression")
			return
		}
	}
}

// validateRows enforces row-to-column arity and per-cell type rules
// whenever any row is present.
func (v *Validator) validateRows(form *models.Form, errs *ValidationError) {
	if len(form.Rows) == 0 {
		return
	}

	for i, row := range form.Rows {
		if len(row) != len(form.Columns) {
			errs.addf("forms.formDto.allRowValuesMustMatchColumnCount", "rows[%d]", i)
			continue
		}
		for j, cell := range row {
			if !form.Columns[j].Accepts(cell) {
				errs.addf("forms.formDto.invalidRowValue", "rows[%d][%d]", i, j)
			}
		}
	}
}
