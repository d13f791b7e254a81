package billing

// Transition graphs per document type. A document starts in DRAFT and only
// moves forward: once it leaves DRAFT there is no path back.
var invoiceTransitions = map[Status][]Status{
	StatusDraft:      {StatusSent, StatusDownloaded, StatusCancelled, StatusPaid},
	StatusSent:       {StatusPaid, StatusCancelled, StatusOverdue},
	StatusDownloaded: {StatusPaid, StatusCancelled, StatusOverdue},
	StatusOverdue:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusCancelled},
}

var quoteTransitions = map[Status][]Status{
	StatusDraft:    {StatusSent, StatusAccepted, StatusRefused},
	StatusSent:     {StatusAccepted, StatusRefused, StatusInvoiced},
	StatusAccepted: {StatusInvoiced, StatusRefused},
	StatusRefused:  {StatusAccepted},
}

var invoiceTerminal = map[Status]bool{
	StatusCancelled: true,
	StatusArchived:  true,
}

var quoteTerminal = map[Status]bool{
	StatusInvoiced: true,
	StatusArchived: true,
}

// System-managed statuses are set by the send/download side effects, never
// by direct user choice.
var systemManaged = map[DocumentType]map[Status]bool{
	TypeInvoice: {StatusSent: true, StatusDownloaded: true},
	TypeQuote:   {StatusSent: true},
}

// TransitionResult reports whether a status change is allowed and, if not,
// which rule rejected it.
type TransitionResult struct {
	Allowed bool
	Reason  ErrorKind
}

func allowed() TransitionResult {
	return TransitionResult{Allowed: true}
}

func rejected(reason ErrorKind) TransitionResult {
	return TransitionResult{Reason: reason}
}

// IsTerminal reports whether status is terminal for the given type.
// Terminal documents accept no further transitions.
func IsTerminal(t DocumentType, status Status) bool {
	if t == TypeQuote {
		return quoteTerminal[status]
	}
	return invoiceTerminal[status]
}

// CheckTransition validates a user-requested status change. Same-status
// requests are always allowed so an unrelated field save does not trip the
// machine.
func CheckTransition(t DocumentType, from, to Status) TransitionResult {
	if from == to {
		return allowed()
	}
	if IsTerminal(t, from) {
		return rejected(KindTerminalState)
	}
	if systemManaged[t][to] {
		return rejected(KindSystemManagedStatus)
	}
	return checkEdge(t, from, to)
}

// CheckSystemTransition validates a transition requested by a side-effect
// collaborator (send, download, overdue sweep). System origins may set the
// system-managed statuses but follow the same graph otherwise.
func CheckSystemTransition(t DocumentType, from, to Status) TransitionResult {
	if from == to {
		return allowed()
	}
	if IsTerminal(t, from) {
		return rejected(KindTerminalState)
	}
	return checkEdge(t, from, to)
}

func checkEdge(t DocumentType, from, to Status) TransitionResult {
	if to == StatusDraft {
		return rejected(KindBackwardTransition)
	}
	// Archiving is reachable from any non-terminal state.
	if to == StatusArchived {
		return allowed()
	}
	graph := invoiceTransitions
	if t == TypeQuote {
		graph = quoteTransitions
	}
	for _, next := range graph[from] {
		if next == to {
			return allowed()
		}
	}
	// Both machines are monotone, so a missing edge is a regression toward
	// an earlier lifecycle stage.
	return rejected(KindBackwardTransition)
}

// TransitionError converts a rejected result into a typed error naming both
// endpoints of the attempted change.
func TransitionError(res TransitionResult, from, to Status) error {
	if res.Allowed {
		return nil
	}
	switch res.Reason {
	case KindTerminalState:
		return Errorf(KindTerminalState, "status %s is terminal, cannot change to %s", from, to)
	case KindSystemManagedStatus:
		return Errorf(KindSystemManagedStatus, "status %s is set by the system and cannot be chosen directly", to)
	default:
		return Errorf(KindBackwardTransition, "cannot change status from %s to %s", from, to)
	}
}
