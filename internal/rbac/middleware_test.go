package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"edu-crm/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(role string, allowed ...string) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serveWithRole(RoleAdmin, "nobody"); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesOtherRoles(t *testing.T) {
	if code := serveWithRole("guest", RoleSalesperson); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveWithRole(RoleSalesperson, RoleSalesperson); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_RoleRequired(t *testing.T) {
	if code := serveWithRole("", RoleSalesperson); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestCanAccessProspect(t *testing.T) {
	sp := auth.Identity{UserID: "u", Role: RoleSalesperson, ProspectAccess: []string{"p1"}}
	if !CanAccessProspect(sp, "p1") || CanAccessProspect(sp, "p2") || CanAccessProspect(sp, "") {
		t.Fatalf("unexpected salesperson access")
	}
	if !CanAccessProspect(auth.Identity{Role: RoleAdmin}, "anything") {
		t.Fatalf("expected admin access")
	}
}

func TestCanAccessCall(t *testing.T) {
	sp := auth.Identity{UserID: "sp-1", Role: RoleSalesperson, ProspectAccess: []string{"p1"}}
	cases := []struct {
		name     string
		owner    string
		prospect string
		want     bool
	}{
		{"own call", "sp-1", "p9", true},
		{"granted prospect", "sp-2", "p1", true},
		{"someone else's call", "sp-2", "p2", false},
		{"no ownership recorded", "", "", false},
	}
	for _, tc := range cases {
		if got := CanAccessCall(sp, tc.owner, tc.prospect); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
	if !CanAccessCall(auth.Identity{Role: RoleAdmin}, "", "") {
		t.Fatalf("expected admin access")
	}
}
