package leadform

// State enumerates the submission states.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// User-facing outcome texts.
const (
	SuccessTitle       = "Formulaire soumis"
	SuccessDescription = "Votre demande a été envoyée avec succès. Nous vous contacterons bientôt."
	FailureTitle       = "Erreur"
	FailureDescription = "Une erreur s'est produite lors de l'envoi du formulaire. Veuillez réessayer plus tard."
)

// Status is the tagged submission state. Message is set only for the
// terminal states.
type Status struct {
	State   State
	Message string
}

func idle() Status       { return Status{State: StateIdle} }
func submitting() Status { return Status{State: StateSubmitting} }
func succeeded() Status  { return Status{State: StateSucceeded, Message: SuccessDescription} }
func failed() Status     { return Status{State: StateFailed, Message: FailureDescription} }

// Terminal reports whether the status closes a submission attempt.
func (s Status) Terminal() bool {
	return s.State == StateSucceeded || s.State == StateFailed
}

// Dialog is the modal shown once an attempt finishes.
type Dialog struct {
	Title       string
	Description string
	IsError     bool
}

// Dialog returns the outcome modal for terminal states.
func (s Status) Dialog() (Dialog, bool) {
	switch s.State {
	case StateSucceeded:
		return Dialog{Title: SuccessTitle, Description: s.Message}, true
	case StateFailed:
		return Dialog{Title: FailureTitle, Description: s.Message, IsError: true}, true
	default:
		return Dialog{}, false
	}
}
