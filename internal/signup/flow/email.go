package flow

import (
	"context"
	"fmt"
	"time"

	"xclone/internal/signup/models"
	"xclone/internal/signup/validate"
	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/requestcontext"
)

const (
	RegistrationFailedMessage      = "Registration failed. Please try again."
	EmailConfirmationFailedMessage = "Email confirmation failed. Please try again or request a new code."
	ResendFailedMessage            = "We couldn't send a new code. Please try again."

	resendWaitingText   = "Check your spam inbox"
	resendAvailableText = "Didn't receive an email?"
)

// Register submits the identity draft from the consent step. On success the
// backend-assigned username is kept and a confirmation code is sent; the
// wizard moves to email_code. When only the email delivery fails the wizard
// still moves on and shows the fallback code. Every other failure returns to
// identity with the error attached.
func (m *Machine) Register(ctx context.Context) error {
	m.mu.Lock()
	if err := m.guardLocked(models.StepConsent, "register"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.pending = true
	name, email, birthDate := m.draft.Name, m.draft.Email, m.draft.BirthDate
	m.mu.Unlock()

	user, regErr := m.users.RegisterUser(ctx, name, email, birthDate)
	var sendErr error
	if regErr == nil {
		sendErr = m.users.SendEmailConfirmationCode(ctx, user.Username)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.settleLocked(); err != nil {
		return err
	}

	if regErr != nil {
		m.remoteFailureLocked(ctx, "register_user", regErr)
		m.failRegistrationLocked(ctx, regErr)
		return nil
	}

	m.draft.Username = user.Username
	m.checker.SetCurrent(user.Username)

	m.fallback = false
	if sendErr != nil {
		m.remoteFailureLocked(ctx, "send_email_confirmation_code", sendErr)
		if models.ExceptionOf(sendErr) != models.ExceptionEmailFailedToSend {
			m.failRegistrationLocked(ctx, sendErr)
			return nil
		}
		m.fallback = true
		m.metrics.IncFallbackCode()
	}

	m.identityErr = nil
	m.code = ""
	m.codeErr = ""
	m.resendAfter = requestcontext.Now(ctx).Add(m.resendCooldown)
	m.transitionLocked(ctx, models.StepEmailCode)
	return nil
}

func (m *Machine) failRegistrationLocked(ctx context.Context, err error) {
	exception := models.ExceptionOf(err)
	stepErr := &models.StepError{
		Message:   remoteMessage(err, RegistrationFailedMessage),
		Exception: exception,
	}
	if exception == models.ExceptionEmailAlreadyTaken {
		stepErr.LoginPath = LoginPath
	}
	m.identityErr = stepErr
	m.transitionLocked(ctx, models.StepIdentity)
}

// SetCode records the entered confirmation code and clears its field error.
// The field takes up to six digits.
func (m *Machine) SetCode(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(models.StepEmailCode, "set code"); err != nil {
		return err
	}
	if len(code) > validate.CodeLength {
		return dErrors.New(dErrors.CodeInvalidInput, "code is at most 6 digits")
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return dErrors.New(dErrors.CodeInvalidInput, "code must be numeric")
		}
	}
	m.code = code
	m.codeErr = ""
	return nil
}

// VerifyCode checks the entered code with the backend. A rejected code stays
// in the field next to the error.
func (m *Machine) VerifyCode(ctx context.Context) error {
	m.mu.Lock()
	if err := m.guardLocked(models.StepEmailCode, "verify code"); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.code == "" {
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, "Enter the 6-digit code we sent you.")
	}
	m.pending = true
	code, username := m.code, m.draft.Username
	m.mu.Unlock()

	err := m.users.VerifyEmailConfirmationCode(ctx, code, username)

	m.mu.Lock()
	defer m.mu.Unlock()
	if serr := m.settleLocked(); serr != nil {
		return serr
	}
	if err != nil {
		m.remoteFailureLocked(ctx, "verify_email_confirmation_code", err)
		m.codeErr = remoteMessage(err, EmailConfirmationFailedMessage)
		return nil
	}
	m.codeErr = ""
	m.fallback = false
	m.transitionLocked(ctx, models.StepPassword)
	return nil
}

// ResendCode sends a new confirmation code once the cooldown has elapsed.
// Before that it does nothing and reports false. The cooldown restarts with
// every attempt, whether or not the email goes out.
func (m *Machine) ResendCode(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if err := m.guardLocked(models.StepEmailCode, "resend code"); err != nil {
		m.mu.Unlock()
		return false, err
	}
	now := requestcontext.Now(ctx)
	if now.Before(m.resendAfter) {
		m.mu.Unlock()
		return false, nil
	}
	m.resendAfter = now.Add(m.resendCooldown)
	m.pending = true
	username := m.draft.Username
	m.mu.Unlock()

	err := m.users.SendEmailConfirmationCode(ctx, username)

	m.mu.Lock()
	defer m.mu.Unlock()
	if serr := m.settleLocked(); serr != nil {
		return false, serr
	}
	if err != nil {
		m.remoteFailureLocked(ctx, "send_email_confirmation_code", err)
		if models.ExceptionOf(err) == models.ExceptionEmailFailedToSend {
			m.fallback = true
			m.metrics.IncFallbackCode()
			return true, nil
		}
		m.codeErr = remoteMessage(err, ResendFailedMessage)
		return true, nil
	}
	m.fallback = false
	m.codeErr = ""
	return true, nil
}

// CooldownRemaining is the time left before another code can be requested.
func (m *Machine) CooldownRemaining(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cooldownRemainingLocked(now)
}

func (m *Machine) cooldownRemainingLocked(now time.Time) time.Duration {
	if m.resendAfter.IsZero() || !now.Before(m.resendAfter) {
		return 0
	}
	return m.resendAfter.Sub(now)
}

// FormatCooldown renders a countdown as m:ss, rounding partial seconds up.
func FormatCooldown(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func (m *Machine) emailCodeViewLocked(now time.Time) *models.EmailCodeView {
	remaining := m.cooldownRemainingLocked(now)
	v := &models.EmailCodeView{
		Email:           m.draft.Email,
		Code:            m.code,
		Error:           m.codeErr,
		ResendAvailable: remaining == 0,
		ResendText:      resendAvailableText,
	}
	if remaining > 0 {
		v.ResendIn = FormatCooldown(remaining)
		v.ResendInSeconds = int((remaining + time.Second - 1) / time.Second)
		v.ResendText = resendWaitingText
	}
	if m.fallback {
		v.FallbackCode = m.fallbackCode
		v.EmailTemplatePath = EmailTemplatePath
	}
	return v
}
