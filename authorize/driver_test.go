package authorize

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/caasmo/acmerenew/model"
	"github.com/caasmo/acmerenew/scope"
)

func testScope() *scope.RenewalScope {
	return &scope.RenewalScope{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestAuthorizeSkipsAlreadyValidAuthorizationOutsideTestMode(t *testing.T) {
	d := New(nil, 0)
	authz := model.Authorization{Status: model.StatusValid}

	got := d.Authorize(context.Background(), testScope(), model.Target{}, "example.com", false, authz)

	if got.Status != model.StatusValid {
		t.Fatalf("Authorize() status = %v, want %v", got.Status, model.StatusValid)
	}
}

func TestInvalidHelperSetsStatusAndMessage(t *testing.T) {
	c := invalid("boom")
	if c.Status != model.StatusInvalid {
		t.Fatalf("invalid() status = %v, want %v", c.Status, model.StatusInvalid)
	}
	if c.Error != "boom" {
		t.Fatalf("invalid() message = %q, want %q", c.Error, "boom")
	}
}
