package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/glicbridge/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "empty input denied", stored: "abc", input: "", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
			log.Debug().Str("case", tc.name).AnErr("result", err).Msg("auth/static-token")
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
	if err := AllowAll.Validate(""); err != nil {
		t.Fatalf("AllowAll rejected empty token: %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer   abc ", want: "abc", ok: true},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer  ", ok: false},
		{header: "", ok: false},
	}
	for _, tc := range tests {
		got, ok := BearerToken(tc.header)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("BearerToken(%q) = %q,%v want %q,%v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCheckRequest(t *testing.T) {
	v := StaticToken{Token: "secret"}

	r := httptest.NewRequest("GET", "/glic/ws", nil)
	r.Header.Set("Authorization", "Bearer secret")
	if err := CheckRequest(v, r); err != nil {
		t.Fatalf("header token rejected: %v", err)
	}

	r = httptest.NewRequest("GET", "/glic/ws?access_token=secret", nil)
	if err := CheckRequest(v, r); err != nil {
		t.Fatalf("query token rejected: %v", err)
	}

	r = httptest.NewRequest("GET", "/glic/ws", nil)
	if err := CheckRequest(v, r); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing token accepted: %v", err)
	}
}
