package model

import "testing"

func TestTargetIdentityDistinguishesPluginCoordinates(t *testing.T) {
	a := Target{PrimaryHost: "example.com", TargetPluginName: "manual", ValidationPluginName: "http-01", ChallengeType: "http-01"}
	b := Target{PrimaryHost: "example.com", TargetPluginName: "manual", ValidationPluginName: "dns-01", ChallengeType: "dns-01"}

	if a.Identity() == b.Identity() {
		t.Fatalf("expected different Identity for different validation plugin coordinates")
	}

	c := Target{PrimaryHost: "example.com", TargetPluginName: "manual", ValidationPluginName: "http-01", ChallengeType: "http-01"}
	if a.Identity() != c.Identity() {
		t.Fatalf("expected identical Target values to share Identity")
	}
}

func TestTargetCloneIsIndependent(t *testing.T) {
	orig := Target{
		PrimaryHost:             "example.com",
		AlternativeNames:        []string{"www.example.com"},
		InstallationPluginNames: []string{"script"},
	}
	clone := orig.Clone()
	clone.AlternativeNames[0] = "mutated.example.com"
	clone.InstallationPluginNames[0] = "mutated"

	if orig.AlternativeNames[0] != "www.example.com" {
		t.Fatalf("mutating the clone's AlternativeNames affected the original")
	}
	if orig.InstallationPluginNames[0] != "script" {
		t.Fatalf("mutating the clone's InstallationPluginNames affected the original")
	}
}

func TestTargetGetHosts(t *testing.T) {
	target := Target{PrimaryHost: "example.com", AlternativeNames: []string{"www.example.com", "api.example.com"}}

	full := target.GetHosts(false)
	if len(full) != 3 || full[0] != "example.com" {
		t.Fatalf("GetHosts(false) = %v, want [example.com www.example.com api.example.com]", full)
	}

	primaryOnly := target.GetHosts(true)
	if len(primaryOnly) != 1 || primaryOnly[0] != "example.com" {
		t.Fatalf("GetHosts(true) = %v, want [example.com]", primaryOnly)
	}
}
