package domain

// OutcomeKind is the classification of a single generation call.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RateLimited
	EmptyResponse
	GenericError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case EmptyResponse:
		return "empty_response"
	case GenericError:
		return "generic_error"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of a generation call. Text always holds what
// should be shown to the user: the generated text on Success, the fixed
// notice otherwise. Cause keeps the provider error for logging.
type Outcome struct {
	Kind  OutcomeKind
	Text  string
	Cause error
}

func (o Outcome) OK() bool {
	return o.Kind == Success
}
