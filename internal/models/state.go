package models

// Phase is the coarse workflow phase of an orchestrator.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseWorking Phase = "working"
	PhaseError   Phase = "error"
)

// Stage is the step of the pipeline currently executing while working.
type Stage string

const (
	StageNone       Stage = ""
	StageReading    Stage = "reading"
	StageDeriving   Stage = "deriving"
	StageEncrypting Stage = "encrypting"
	StageWriting    Stage = "writing"
)

// Verb returns the stage as used in error messages.
func (s Stage) Verb() string {
	switch s {
	case StageReading:
		return "read"
	case StageDeriving:
		return "derive key"
	case StageEncrypting:
		return "encrypt"
	case StageWriting:
		return "write output"
	default:
		return "submit"
	}
}

// WorkflowState is a snapshot of an orchestrator's workflow.
type WorkflowState struct {
	Phase   Phase  `json:"phase"`
	Stage   Stage  `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`

	// Form inputs. Zeroed as soon as a pipeline starts.
	PasswordInput string `json:"-"`
	RetypeInput   string `json:"-"`

	// ActiveFile is the file awaiting (or undergoing) encryption.
	ActiveFile *SourceFile `json:"-"`
}

// NewWorkflowState creates an idle workflow state.
func NewWorkflowState() WorkflowState {
	return WorkflowState{Phase: PhaseIdle}
}

// IsWorking reports whether a pipeline is running.
func (s WorkflowState) IsWorking() bool {
	return s.Phase == PhaseWorking
}

// HasError reports whether the last attempt failed.
func (s WorkflowState) HasError() bool {
	return s.Phase == PhaseError
}

// SetError moves the state into the error phase.
func (s *WorkflowState) SetError(err error) {
	s.Phase = PhaseError
	s.Stage = StageNone
	if err != nil {
		s.Message = err.Error()
	} else {
		s.Message = "unknown error"
	}
}

// ClearInputs zeroes the password form fields.
func (s *WorkflowState) ClearInputs() {
	s.PasswordInput = ""
	s.RetypeInput = ""
}
