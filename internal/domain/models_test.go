package domain

import (
	"reflect"
	"strings"
	"testing"
)

func TestUserModelTagsAndDefaults(t *testing.T) {
	typ := reflect.TypeOf(User{})

	email, ok := typ.FieldByName("Email")
	if !ok {
		t.Fatal("missing User.Email field")
	}
	if got := email.Tag.Get("json"); got != "email" {
		t.Fatalf("User.Email json tag mismatch: %q", got)
	}
	if !strings.Contains(email.Tag.Get("gorm"), "uniqueIndex") {
		t.Fatalf("User.Email gorm tag missing uniqueIndex: %q", email.Tag.Get("gorm"))
	}

	for _, field := range []string{"IsPremium", "IsAdmin"} {
		f, ok := typ.FieldByName(field)
		if !ok {
			t.Fatalf("missing User.%s field", field)
		}
		if !strings.Contains(f.Tag.Get("gorm"), "default:false") {
			t.Fatalf("User.%s gorm tag missing default:false: %q", field, f.Tag.Get("gorm"))
		}
	}

	profile, ok := typ.FieldByName("Profile")
	if !ok {
		t.Fatal("missing User.Profile field")
	}
	if !strings.Contains(profile.Tag.Get("gorm"), "foreignKey:UserID") {
		t.Fatalf("User.Profile gorm tag mismatch: %q", profile.Tag.Get("gorm"))
	}
}

func TestFeatureFlagTargetingIsUniquePerFlagKey(t *testing.T) {
	typ := reflect.TypeOf(FeatureFlagTargeting{})
	key, ok := typ.FieldByName("FlagKey")
	if !ok {
		t.Fatal("missing FeatureFlagTargeting.FlagKey")
	}
	if !strings.Contains(key.Tag.Get("gorm"), "uniqueIndex") {
		t.Fatalf("FeatureFlagTargeting.FlagKey should be unique indexed: %q", key.Tag.Get("gorm"))
	}
	mode, ok := typ.FieldByName("TargetMode")
	if !ok {
		t.Fatal("missing FeatureFlagTargeting.TargetMode")
	}
	if !strings.Contains(mode.Tag.Get("gorm"), "default:ALL") {
		t.Fatalf("FeatureFlagTargeting.TargetMode should default to ALL: %q", mode.Tag.Get("gorm"))
	}
}

func TestFeatureFlagUserHasCompositeUniqueIndex(t *testing.T) {
	typ := reflect.TypeOf(FeatureFlagUser{})
	for _, field := range []string{"FlagKey", "UserID"} {
		f, ok := typ.FieldByName(field)
		if !ok {
			t.Fatalf("missing FeatureFlagUser.%s", field)
		}
		if !strings.Contains(f.Tag.Get("gorm"), "idx_flag_user,unique") {
			t.Fatalf("FeatureFlagUser.%s gorm tag missing unique pair index: %q", field, f.Tag.Get("gorm"))
		}
	}
}

func TestParseTargetMode(t *testing.T) {
	cases := map[string]bool{
		"ALL":         true,
		"PREMIUM":     true,
		"NON_PREMIUM": true,
		"CUSTOM":      true,
		"all":         false,
		"":            false,
		"EVERYONE":    false,
	}
	for in, want := range cases {
		mode, ok := ParseTargetMode(in)
		if ok != want {
			t.Fatalf("ParseTargetMode(%q) ok=%v want=%v", in, ok, want)
		}
		if ok && string(mode) != in {
			t.Fatalf("ParseTargetMode(%q) returned %q", in, mode)
		}
	}
	if TargetMode("bogus").Valid() {
		t.Fatal("expected bogus mode to be invalid")
	}
	if len(TargetModes()) != 4 {
		t.Fatalf("expected 4 target modes, got %d", len(TargetModes()))
	}
}

func TestUserAttributes(t *testing.T) {
	u := &User{ID: 9, IsPremium: true}
	attrs := u.Attributes()
	if attrs.UserID != 9 || !attrs.IsPremium || attrs.IsAdmin {
		t.Fatalf("unexpected attributes: %+v", attrs)
	}
}
