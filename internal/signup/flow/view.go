package flow

import (
	"time"

	"xclone/internal/signup/models"
)

// View renders the flow as of now. Progression is disabled while a
// collaborator call is pending.
func (m *Machine) View(now time.Time) models.View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := models.View{
		FlowID:    m.id.String(),
		Step:      m.step,
		Mode:      m.mode,
		ClosePath: m.mode.ClosePath(),
		Pending:   m.pending,
		CanGoBack: !m.pending && (m.step == models.StepConsent || m.step == models.StepUsername),
		Username:  m.draft.Username,
	}

	switch m.step {
	case models.StepIdentity:
		v.Identity = m.identityViewLocked(now)
		v.CanContinue = !m.pending && m.identityCompleteLocked(now) == nil
	case models.StepConsent:
		v.Consent = &models.ConsentView{
			Name:      m.draft.Name,
			Email:     m.draft.Email,
			BirthDate: m.draft.BirthDate.String(),
		}
		v.CanContinue = !m.pending
	case models.StepEmailCode:
		v.EmailCode = m.emailCodeViewLocked(now)
		v.CanContinue = !m.pending && m.code != ""
	case models.StepPassword:
		v.Password = &models.PasswordView{Error: m.passwordErr}
		v.CanContinue = !m.pending
	case models.StepProfilePicture:
		pv := &models.ProfilePictureView{Error: m.pictureErr, Action: actionSkip}
		if m.draft.ProfilePicture != nil {
			p := *m.draft.ProfilePicture
			pv.Picture = &p
			pv.Action = actionContinue
		}
		v.ProfilePicture = pv
		v.CanContinue = !m.pending
	case models.StepUsername:
		v.UsernameStep = m.usernameViewLocked()
		v.CanContinue = !m.pending && !m.usernameBlockedLocked()
	case models.StepDone:
		v.NextPath = HomePath
	}
	return v
}
