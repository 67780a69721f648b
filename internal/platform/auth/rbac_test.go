package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func callWithRoles(mw echo.MiddlewareFunc, roles []string) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(context.Background(), Actor{DentistID: "d", OfficeID: "o"}, roles))
	c := e.NewContext(req, httptest.NewRecorder())
	return mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		mw      echo.MiddlewareFunc
		roles   []string
		allowed bool
	}{
		{"dentist writes", WriteRoles(), []string{RoleDentist}, true},
		{"assistant cannot write", WriteRoles(), []string{RoleAssistant}, false},
		{"assistant reads", ReadRoles(), []string{RoleAssistant}, true},
		{"admin bypasses", WriteRoles(), []string{RoleAdmin}, true},
		{"no roles", ReadRoles(), nil, false},
		{"unrelated role", ReadRoles(), []string{"receptionist"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := callWithRoles(tt.mw, tt.roles)
			if tt.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tt.allowed {
				httpErr, ok := err.(*echo.HTTPError)
				if !ok || httpErr.Code != http.StatusForbidden {
					t.Errorf("expected 403, got %v", err)
				}
			}
		})
	}
}
