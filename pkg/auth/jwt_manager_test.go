package auth

import (
	"net/http"
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate("42b7f7a5-7b53-4f2e-9f6a-0d2b8a9a1c10")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "42b7f7a5-7b53-4f2e-9f6a-0d2b8a9a1c10" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Issuer != "pulse" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).Generate("user")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewJWTManager("secret-b", time.Hour).Verify(token); err == nil {
		t.Fatal("token signed with a different secret must not verify")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, err := m.Generate("user")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestExpiryMatchesDuration(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate("user")
	if err != nil {
		t.Fatal(err)
	}

	exp, err := m.Expiry(token)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Now().Add(time.Hour)
	if exp.Before(want.Add(-time.Minute)) || exp.After(want.Add(time.Minute)) {
		t.Errorf("expiry = %v, want ~%v", exp, want)
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc.def.ghi", "abc.def.ghi", true},
		{"abc.def.ghi", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}

		got, err := ExtractTokenFromHeader(r)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("header %q: got %q, err %v", tc.header, got, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("header %q: expected an error", tc.header)
		}
	}
}
