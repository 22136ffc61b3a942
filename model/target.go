// Package model holds the data types shared across the renewal engine:
// targets, scheduled renewals, orders/authorizations, and certificate
// records. None of these types carry behavior that talks to the network or
// disk — that belongs to the plugin, acmeclient and registry packages.
package model

// Target (aka Binding) describes a prospective certificate subject: a
// primary host, its alternative names, and the plugin coordinates needed to
// validate and install it.
type Target struct {
	// PrimaryHost is the certificate's main subject name.
	PrimaryHost string

	// AlternativeNames is the ordered list of additional DNS names. It is
	// mutated by the renewal driver after a target split (§4.6 step 2).
	AlternativeNames []string

	// TargetPluginName names the TargetPlugin factory that produced this
	// Target and that must be consulted again on refresh/split.
	TargetPluginName string

	// ValidationPluginName names the ValidationPluginFactory to use.
	ValidationPluginName string

	// ChallengeType qualifies ValidationPluginName (e.g. "http-01",
	// "dns-01") when a factory supports more than one challenge type.
	ChallengeType string

	// InstallationPluginNames is the ordered list of installation
	// factories selected for this target.
	InstallationPluginNames []string

	// SSLPort and SSLIPAddress are optional installation parameters for
	// plugins that bind a certificate to a local listener.
	SSLPort      int
	SSLIPAddress string

	// ValidationPort is the local port validation plugins bind to while
	// answering challenges (e.g. the http-01 webroot server).
	ValidationPort int
}

// Identity is the equality key the renewal registry matches on: primary
// host plus plugin coordinates. Two targets with the same Identity refer to
// the same scheduled renewal.
func (t Target) Identity() string {
	return t.PrimaryHost + "|" + t.TargetPluginName + "|" + t.ValidationPluginName + "|" + t.ChallengeType
}

// Clone returns a deep copy safe to mutate independently of t.
func (t Target) Clone() Target {
	c := t
	c.AlternativeNames = append([]string(nil), t.AlternativeNames...)
	c.InstallationPluginNames = append([]string(nil), t.InstallationPluginNames...)
	return c
}

// GetHosts returns the identifier set for this target. When
// includePrimaryOnly is false (the common case used to build an ACME
// order) the primary host is included alongside the alternative names;
// when true, only the primary host is returned. The distinction exists so
// that a sub-target produced by a plugin split can represent "just this
// alt name" without re-including the primary host in every sub-target's
// own view.
func (t Target) GetHosts(includePrimaryOnly bool) []string {
	if includePrimaryOnly {
		return []string{t.PrimaryHost}
	}
	hosts := make([]string, 0, 1+len(t.AlternativeNames))
	hosts = append(hosts, t.PrimaryHost)
	hosts = append(hosts, t.AlternativeNames...)
	return hosts
}
