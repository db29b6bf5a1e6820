package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HelixClient {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	hc := NewHelixClient(context.Background(), "test-client-id", UserTokenSource("oauth:test-token"))
	hc.BaseURL = server.URL
	return hc
}

func TestHelixClient_GetUserID(t *testing.T) {
	tests := []struct {
		response    interface{}
		name        string
		login       string
		wantUserID  string
		errContains string
		statusCode  int
		wantErr     bool
	}{
		{
			name:  "successful user lookup",
			login: "testuser",
			response: map[string]interface{}{
				"data": []map[string]string{
					{"id": "12345", "login": "testuser"},
				},
			},
			statusCode: http.StatusOK,
			wantUserID: "12345",
		},
		{
			name:  "user not found",
			login: "nonexistent",
			response: map[string]interface{}{
				"data": []map[string]string{},
			},
			statusCode:  http.StatusOK,
			wantErr:     true,
			errContains: "user not found",
		},
		{
			name:        "unauthorized",
			login:       "testuser",
			response:    map[string]string{"error": "Unauthorized"},
			statusCode:  http.StatusUnauthorized,
			wantErr:     true,
			errContains: "unexpected status 401",
		},
		{
			name:        "empty login",
			login:       "",
			wantErr:     true,
			errContains: "login empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/users" {
					t.Errorf("path = %s, want /users", r.URL.Path)
				}
				if r.Header.Get("Client-Id") != "test-client-id" {
					t.Errorf("missing or wrong Client-Id header")
				}
				if r.Header.Get("Authorization") != "Bearer test-token" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				if r.URL.Query().Get("login") != tt.login {
					t.Errorf("login query param = %s, want %s", r.URL.Query().Get("login"), tt.login)
				}
				w.WriteHeader(tt.statusCode)
				if tt.response != nil {
					_ = json.NewEncoder(w).Encode(tt.response)
				}
			})

			userID, err := client.GetUserID(context.Background(), tt.login)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("GetUserID() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetUserID() unexpected error = %v", err)
			}
			if userID != tt.wantUserID {
				t.Errorf("GetUserID() = %s, want %s", userID, tt.wantUserID)
			}
		})
	}
}

func TestHelixClient_SendWhisper(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/whispers" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("from_user_id") != "1" || q.Get("to_user_id") != "2" {
			t.Errorf("query = %v", q)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.SendWhisper(context.Background(), "1", "2", "hello there"); err != nil {
		t.Fatalf("SendWhisper() error = %v", err)
	}
	if gotBody != `{"message":"hello there"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestHelixClient_SendWhisperErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"recipient blocks whispers"}`, http.StatusBadRequest)
	})

	err := client.SendWhisper(context.Background(), "1", "2", "hi")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest || !strings.Contains(se.Body, "blocks") {
		t.Errorf("SendWhisper() error = %v", err)
	}
	if err := client.SendWhisper(context.Background(), "", "2", "hi"); err == nil {
		t.Error("empty sender accepted")
	}
}
