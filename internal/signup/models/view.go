package models

// View is the render snapshot of a signup flow. Exactly one of the step
// sections is populated, matching Step.
type View struct {
	FlowID      string `json:"flow_id"`
	Step        Step   `json:"step"`
	Mode        Mode   `json:"mode"`
	ClosePath   string `json:"close_path"`
	NextPath    string `json:"next_path,omitempty"`
	Pending     bool   `json:"pending"`
	CanContinue bool   `json:"can_continue"`
	CanGoBack   bool   `json:"can_go_back"`
	Username    string `json:"username,omitempty"`

	Identity       *IdentityView       `json:"identity,omitempty"`
	Consent        *ConsentView        `json:"consent,omitempty"`
	EmailCode      *EmailCodeView      `json:"email_code,omitempty"`
	Password       *PasswordView       `json:"password,omitempty"`
	ProfilePicture *ProfilePictureView `json:"profile_picture,omitempty"`
	UsernameStep   *UsernameView       `json:"username_step,omitempty"`
}

type IdentityView struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	BirthDate   BirthDate  `json:"birth_date"`
	DaysInMonth int        `json:"days_in_month"`
	// FirstYear and LastYear bound the selectable birth years.
	FirstYear   int        `json:"first_year"`
	LastYear    int        `json:"last_year"`
	NameError   string     `json:"name_error,omitempty"`
	EmailError  string     `json:"email_error,omitempty"`
	Error       *StepError `json:"error,omitempty"`
}

type ConsentView struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	BirthDate string `json:"birth_date"`
}

type EmailCodeView struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Error string `json:"error,omitempty"`
	// FallbackCode is shown when the confirmation email could not be sent.
	FallbackCode      string `json:"fallback_code,omitempty"`
	EmailTemplatePath string `json:"email_template_path,omitempty"`
	ResendIn          string `json:"resend_in,omitempty"`
	ResendInSeconds   int    `json:"resend_in_seconds"`
	ResendAvailable   bool   `json:"resend_available"`
	ResendText        string `json:"resend_text"`
}

type PasswordView struct {
	Error string `json:"error,omitempty"`
}

type ProfilePictureView struct {
	Picture *Picture `json:"picture,omitempty"`
	Error   string   `json:"error,omitempty"`
	// Action is the label of the progression button.
	Action string `json:"action"`
}

type UsernameView struct {
	Current   string        `json:"current"`
	Candidate string        `json:"candidate"`
	Check     UsernameCheck `json:"check"`
	Error     string        `json:"error,omitempty"`
	Action    string        `json:"action"`
}
