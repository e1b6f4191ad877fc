package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresTypeAndSubject(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{UserID: "u"}); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeLogout}); err == nil {
		t.Fatalf("expected error for missing user and email")
	}
}

func TestService_FailedLoginKeyedByEmail(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogLoginFailed(context.Background(), "dev@example.com", "1.2.3.4", "cli/1.0"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.Type != EventTypeLoginFailed || e.Success {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.UserID != "" || e.Email != "dev@example.com" {
		t.Fatalf("failed login must be keyed by email, got %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAuthorizationFailure(context.Background(), "user-1", "1.2.3.4", "cli/1.0", `{"resource":"projects","action":"delete"}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogLoginSuccess(context.Background(), "user-1", "1.2.3.4", "cli/1.0"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	denied := repo.ByType(EventTypeAuthorizationFailure)
	if len(denied) != 1 {
		t.Fatalf("expected 1 denial event")
	}
	if denied[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if denied[0].Success {
		t.Fatalf("denial must not be marked successful")
	}
}
