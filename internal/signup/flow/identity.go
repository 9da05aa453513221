package flow

import (
	"context"
	"fmt"
	"time"

	"xclone/internal/signup/models"
	"xclone/internal/signup/validate"
	dErrors "xclone/pkg/domain-errors"
)

const (
	InvalidEmailMessage     = "Please enter a valid email."
	InvalidBirthDateMessage = "Please enter a valid date of birth."
)

// IdentityEdit is a batch of identity form changes. Nil fields are left
// alone.
type IdentityEdit struct {
	Name       *string
	Email      *string
	BirthYear  *int
	BirthMonth *int
	BirthDay   *int
}

// EditIdentity applies every field of e or, when one of them is refused,
// none. Year and month apply before the day; a selected day the new month
// or year does not have (Feb 29 outside a leap year) is cleared. A changed
// email drops the registration error attached to the step, since it was
// about the previous address.
func (m *Machine) EditIdentity(e IdentityEdit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(models.StepIdentity, "edit identity"); err != nil {
		return err
	}

	draft := m.draft
	if e.Name != nil {
		draft.Name = *e.Name
	}
	if e.Email != nil {
		draft.Email = *e.Email
	}
	b := draft.BirthDate
	if e.BirthYear != nil {
		// zero clears the selection
		now := m.clock()
		if year := *e.BirthYear; year != 0 && !validate.BirthYear(year, now) {
			first, last := validate.BirthYears(now)
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("year must be between %d and %d", first, last))
		}
		b.Year = *e.BirthYear
		b = validate.ClampDay(b)
	}
	if e.BirthMonth != nil {
		if month := *e.BirthMonth; month < 0 || month > 12 {
			return dErrors.New(dErrors.CodeInvalidInput, "month out of range")
		}
		b.Month = *e.BirthMonth
		b = validate.ClampDay(b)
	}
	if e.BirthDay != nil {
		if day := *e.BirthDay; day < 0 || day > validate.DaysInMonth(b.Month, b.Year) {
			return dErrors.New(dErrors.CodeInvalidInput, "day out of range")
		}
		b.Day = *e.BirthDay
	}
	draft.BirthDate = b

	m.draft = draft
	if e.Email != nil {
		m.identityErr = nil
	}
	return nil
}

func (m *Machine) SetName(name string) error {
	return m.EditIdentity(IdentityEdit{Name: &name})
}

func (m *Machine) SetEmail(email string) error {
	return m.EditIdentity(IdentityEdit{Email: &email})
}

// SetBirthYear selects the year; zero clears it. Only the last
// validate.BirthYearSpan years are offered.
func (m *Machine) SetBirthYear(year int) error {
	return m.EditIdentity(IdentityEdit{BirthYear: &year})
}

// SetBirthMonth selects the month (1-12, zero clears).
func (m *Machine) SetBirthMonth(month int) error {
	return m.EditIdentity(IdentityEdit{BirthMonth: &month})
}

// SetBirthDay selects the day. Only days offered for the selected month and
// year are accepted.
func (m *Machine) SetBirthDay(day int) error {
	return m.EditIdentity(IdentityEdit{BirthDay: &day})
}

// CanAdvance reports whether Next is enabled on the identity step.
func (m *Machine) CanAdvance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step == models.StepIdentity && !m.pending && m.identityCompleteLocked(m.clock()) == nil
}

// Next moves from identity to consent once the identity form is complete.
func (m *Machine) Next(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(models.StepIdentity, "next"); err != nil {
		return err
	}
	if err := m.identityCompleteLocked(m.clock()); err != nil {
		return err
	}
	m.transitionLocked(ctx, models.StepConsent)
	return nil
}

func (m *Machine) identityCompleteLocked(now time.Time) error {
	if res := validate.Name(m.draft.Name); !res.Valid {
		return dErrors.New(dErrors.CodeValidation, res.Error)
	}
	if !validate.Email(m.draft.Email) {
		return dErrors.New(dErrors.CodeValidation, InvalidEmailMessage)
	}
	if !validate.BirthDate(m.draft.BirthDate) || !validate.BirthYear(m.draft.BirthDate.Year, now) {
		return dErrors.New(dErrors.CodeValidation, InvalidBirthDateMessage)
	}
	if m.identityErr != nil && m.identityErr.Exception == models.ExceptionEmailAlreadyTaken {
		return dErrors.New(dErrors.CodeConflict, m.identityErr.Message)
	}
	return nil
}

func (m *Machine) identityViewLocked(now time.Time) *models.IdentityView {
	first, last := validate.BirthYears(now)
	v := &models.IdentityView{
		FirstYear:   first,
		LastYear:    last,
		Name:        m.draft.Name,
		Email:       m.draft.Email,
		BirthDate:   m.draft.BirthDate,
		DaysInMonth: validate.DaysInMonth(m.draft.BirthDate.Month, m.draft.BirthDate.Year),
	}
	if m.draft.Name != "" {
		if res := validate.Name(m.draft.Name); !res.Valid {
			v.NameError = res.Error
		}
	}
	if m.draft.Email != "" && !validate.Email(m.draft.Email) {
		v.EmailError = InvalidEmailMessage
	}
	if m.identityErr != nil {
		e := *m.identityErr
		v.Error = &e
	}
	return v
}
