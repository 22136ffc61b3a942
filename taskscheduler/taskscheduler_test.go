package taskscheduler

import "testing"

func TestFilterManagedRemovesOnlyMarkedLines(t *testing.T) {
	lines := []string{
		"0 4 * * * /usr/bin/backup.sh",
		"0 3 * * * /opt/acmerenew --renew " + marker,
		"*/5 * * * * /usr/bin/heartbeat.sh",
	}

	got := filterManaged(lines)

	if len(got) != 2 {
		t.Fatalf("filterManaged() kept %d lines, want 2", len(got))
	}
	for _, l := range got {
		if l == "0 3 * * * /opt/acmerenew --renew "+marker {
			t.Fatalf("filterManaged() failed to remove the managed line")
		}
	}
}

func TestFilterManagedLeavesUnrelatedLinesUntouched(t *testing.T) {
	lines := []string{"0 4 * * * /usr/bin/backup.sh"}
	got := filterManaged(lines)
	if len(got) != 1 || got[0] != lines[0] {
		t.Fatalf("filterManaged() = %v, want unchanged %v", got, lines)
	}
}

func TestNonEmptyDropsBlankLines(t *testing.T) {
	lines := []string{"a", "", "  ", "b"}
	got := nonEmpty(lines)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("nonEmpty() = %v, want [a b]", got)
	}
}
