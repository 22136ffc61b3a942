package model

// Order is the opaque handle returned by the ACME client wrapper (C4) for
// one certificate request: the authorization URLs to walk and the
// finalization URL the certificate request eventually targets.
type Order struct {
	AuthorizationURLs []string
	FinalizeURL       string

	// Identifiers is the identifier set placed on the order, carried
	// alongside it so the renewal and cache-service code does not need to
	// recompute it from the sub-targets a second time.
	Identifiers []string

	// Opaque is the underlying acme.ExtendedOrder (or equivalent); kept as an
	// untyped handle so this package stays free of the acmeclient
	// dependency.
	Opaque any
}

// ChallengeStatus mirrors RFC 8555 authorization/challenge status strings.
type ChallengeStatus string

const (
	StatusPending ChallengeStatus = "pending"
	StatusValid   ChallengeStatus = "valid"
	StatusInvalid ChallengeStatus = "invalid"
)

// Challenge is one CA-offered proof method for an identifier.
type Challenge struct {
	Type   string
	URL    string
	Status ChallengeStatus
	Error  string

	// Token is copied from the CA's challenge object. KeyAuthorization is
	// not filled in by the ACME client wrapper: the key authorization
	// returned by get_challenge_details reaches the validation plugin
	// through plugin.ChallengeDetails instead.
	Token            string
	KeyAuthorization string
}

// IsTerminal reports whether the challenge has reached a final state.
func (c Challenge) IsTerminal() bool {
	return c.Status == StatusValid || c.Status == StatusInvalid
}

// Authorization is the CA's permission-to-issue proof state for one
// identifier.
type Authorization struct {
	URL        string
	Status     ChallengeStatus
	Identifier string
	Challenges []Challenge
}

// ChallengeByType returns the first challenge of the given type, and
// whether one was found.
func (a Authorization) ChallengeByType(challengeType string) (Challenge, bool) {
	for _, c := range a.Challenges {
		if c.Type == challengeType {
			return c, true
		}
	}
	return Challenge{}, false
}
