package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/mainino/core/people"
)

func Test_authApi_login(t *testing.T) {
	a := setup(t)

	// deactivated student
	ctx := context.Background()
	inactive := false
	_, err := a.pplSvc.UpdateStudent(ctx, a.kid2.ID, people.UpdateStudent{IsActive: &inactive})
	die(t, err)

	tests := []httpTest{
		{
			name:     "parent logs in with username",
			body:     marchallObj(t, map[string]string{"username": "jdoe", "password": "LeP@ssword123"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "parent logs in with email",
			body:     marchallObj(t, map[string]string{"username": "JDoe@Test.com", "password": "LeP@ssword123"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password fails",
			body:     marchallObj(t, map[string]string{"username": "jdoe", "password": "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, "authentication failed"),
		},
		{
			name:     "unknown username fails the same way",
			body:     marchallObj(t, map[string]string{"username": "ghost", "password": "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, "authentication failed"),
		},
		{
			name:     "deactivated account is refused",
			body:     marchallObj(t, map[string]string{"username": "kim", "password": "irrelevant"}),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, "authentication failed"),
		},
		{
			name:     "missing fields get a field error map",
			body:     marchallObj(t, map[string]string{"username": "jdoe"}),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, map[string]string{"password": "this field is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", tt.body)
			a.server.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp struct {
				Success bool `json:"success"`
				Data    struct {
					Token string `json:"token"`
				} `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshalling login response: %v", err)
			}
			if !resp.Success || resp.Data.Token == "" {
				t.Errorf("failed! expected a token; body %s", rec.Body.String())
			}
		})
	}
}

func Test_authApi_studentLogin(t *testing.T) {
	a := setup(t)

	// students get their password from the admin; set a known one
	ctx := context.Background()
	s, err := a.pplSvc.GetStudentByID(ctx, a.kid1.ID)
	die(t, err)
	die(t, s.SetPassword("S@mSecret123"))
	_, err = a.pplSvc.SetStudentLastLogin(ctx, s) // persists the hash
	die(t, err)

	req, rec := newRequest(http.MethodPost, "/v1/auth/login",
		marchallObj(t, map[string]string{"username": "sam", "password": "S@mSecret123"}))
	a.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
}

func Test_authApi_tokenRefresh(t *testing.T) {
	a := setup(t)

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: errMissingToken,
		},
		{
			name:     "valid token is refreshed",
			token:    getParentToken(t, a.parent),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", tt.token)
			a.server.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func Test_authApi_passwordReset(t *testing.T) {
	a := setup(t)

	msg := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."

	tests := []httpTest{
		{
			name:     "known email",
			body:     marchallObj(t, map[string]string{"email": "jdoe@test.com"}),
			wantCode: http.StatusOK,
			wantData: okData(t, map[string]string{"message": msg}),
		},
		{
			name:     "unknown email gets the same response",
			body:     marchallObj(t, map[string]string{"email": "ghost@test.com"}),
			wantCode: http.StatusOK,
			wantData: okData(t, map[string]string{"message": msg}),
		},
		{
			name:     "invalid email is rejected",
			body:     marchallObj(t, map[string]string{"email": "not-an-email"}),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, map[string]string{"email": "email must be a valid email address"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset", tt.body)
			a.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
