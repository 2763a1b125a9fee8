package auth

import (
	"net/http"
	"testing"
)

func TestHasAtLeast(t *testing.T) {
	if !HasAtLeast([]string{"viewer"}, RoleViewer) {
		t.Fatalf("viewer should satisfy viewer")
	}
	if HasAtLeast([]string{"viewer"}, RoleOperator) {
		t.Fatalf("viewer should not satisfy operator")
	}
	if !HasAtLeast([]string{" Operator "}, RoleViewer) {
		t.Fatalf("operator should satisfy viewer")
	}
	if !HasAtLeast([]string{"admin"}, RoleOperator) {
		t.Fatalf("admin should satisfy operator")
	}
	if HasAtLeast([]string{"admin"}, "root") {
		t.Fatalf("unknown required role should never be satisfied")
	}
}

func TestRequiredRoleForRequest(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if got := RequiredRoleForRequest(req); got != RoleViewer {
		t.Fatalf("RequiredRoleForRequest(GET)=%q, want viewer", got)
	}
	req.Method = http.MethodPost
	if got := RequiredRoleForRequest(req); got != RoleOperator {
		t.Fatalf("RequiredRoleForRequest(POST)=%q, want operator", got)
	}
}
