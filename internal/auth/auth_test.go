package auth

import "testing"

func TestHashAndComparePassword(t *testing.T) {
	s := NewService(Config{JWTSecret: "test-secret"})

	hash, err := s.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := s.ComparePassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("expected matching password to compare clean, got %v", err)
	}
	if err := s.ComparePassword(hash, "wrong password"); err == nil {
		t.Error("expected a mismatched password to fail comparison")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	s := NewService(Config{JWTSecret: "test-secret"})

	token, err := s.GenerateToken(1, "dutypilot1", RoleDutyPilot)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 1 || claims.Username != "dutypilot1" || claims.Role != RoleDutyPilot {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	s := NewService(Config{JWTSecret: "secret-a"})
	other := NewService(Config{JWTSecret: "secret-b"})

	token, err := s.GenerateToken(1, "user", RoleViewer)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("expected a token signed with a different secret to fail validation")
	}
}

func TestHasRoleHierarchy(t *testing.T) {
	cases := []struct {
		userRole, requiredRole string
		want                   bool
	}{
		{RoleAdmin, RoleDutyPilot, true},
		{RoleDutyPilot, RoleAdmin, false},
		{RoleViewer, RoleViewer, true},
		{RoleGuest, RoleViewer, false},
		{RoleAdmin, RoleGuest, true},
	}
	for _, c := range cases {
		if got := HasRole(c.userRole, c.requiredRole); got != c.want {
			t.Errorf("HasRole(%q, %q) = %v, want %v", c.userRole, c.requiredRole, got, c.want)
		}
	}
}

func TestCanManageContexts(t *testing.T) {
	if !CanManageContexts(RoleAdmin) {
		t.Error("expected admin to manage contexts")
	}
	if !CanManageContexts(RoleDutyPilot) {
		t.Error("expected duty pilot to manage contexts")
	}
	if CanManageContexts(RoleViewer) {
		t.Error("expected viewer not to manage contexts")
	}
}

func TestCanManageUsers(t *testing.T) {
	if !CanManageUsers(RoleAdmin) {
		t.Error("expected admin to manage users")
	}
	if CanManageUsers(RoleDutyPilot) {
		t.Error("expected duty pilot not to manage users")
	}
}

func TestCanManageAttachment(t *testing.T) {
	cases := []struct {
		name                 string
		role                 string
		requesterID, ownerID int
		want                 bool
	}{
		{"admin manages anyone's attachment", RoleAdmin, 2, 1, true},
		{"owning duty pilot manages their own", RoleDutyPilot, 1, 1, true},
		{"duty pilot cannot manage another's attachment", RoleDutyPilot, 2, 1, false},
		{"duty pilot can claim an unowned attachment", RoleDutyPilot, 2, 0, true},
		{"viewer can never manage an attachment", RoleViewer, 1, 1, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CanManageAttachment(c.role, c.requesterID, c.ownerID); got != c.want {
				t.Errorf("CanManageAttachment(%q, %d, %d) = %v, want %v", c.role, c.requesterID, c.ownerID, got, c.want)
			}
		})
	}
}
