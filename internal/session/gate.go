package session

// DecisionKind is what a gated view should do next.
type DecisionKind int

const (
	// DecisionPending means the store has not settled; render a neutral
	// pending indicator and nothing else.
	DecisionPending DecisionKind = iota
	// DecisionAllow means render the protected content.
	DecisionAllow
	// DecisionRedirect means send the visitor to the sign-in route.
	DecisionRedirect
	// DecisionError means initialization failed; show a retry surface
	// instead of redirecting, which would hide the real problem.
	DecisionError
)

// Decision is the gate's verdict for one navigation attempt.
type Decision struct {
	Kind DecisionKind

	// Redirect fields.
	To             string
	From           string
	Message        string
	ReplaceHistory bool

	// Error surface fields.
	Err      string
	CanRetry bool
}

// SignInRoute is where anonymous visitors are sent.
const SignInRoute = "/login"

// Decide gates one navigation to a protected destination. While the
// store is loading the answer is pending, never the protected content.
// A settled anonymous store redirects to sign-in carrying the intended
// destination, replacing the history entry so back-navigation does not
// land on the gate again.
func Decide(snap Snapshot, destination string) Decision {
	switch snap.Phase {
	case PhaseUninitialized, PhaseLoading:
		return Decision{Kind: DecisionPending}
	case PhaseError:
		return Decision{Kind: DecisionError, Err: snap.Err, CanRetry: true}
	case PhaseAuthenticated:
		if snap.IsAuthenticated() {
			return Decision{Kind: DecisionAllow}
		}
	}
	return Decision{
		Kind:           DecisionRedirect,
		To:             SignInRoute,
		From:           destination,
		Message:        "please sign in to access this page",
		ReplaceHistory: true,
	}
}
