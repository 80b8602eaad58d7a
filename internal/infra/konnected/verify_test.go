package konnected_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"gdo-bridge/internal/domain"
	"gdo-bridge/internal/infra/konnected"
)

func TestVerifyConnection(t *testing.T) {
	tests := []struct {
		name       string
		deviceAuth bool
		restStatus int
		username   string
		password   string
		want       domain.VerificationResult
	}{
		{"open device", false, http.StatusOK, "", "", domain.VerificationSuccess},
		{"valid credentials", true, http.StatusOK, "admin", "secret", domain.VerificationSuccess},
		{"credentials missing", true, http.StatusOK, "", "", domain.VerificationAuthenticationRequired},
		{"only username", true, http.StatusOK, "admin", "", domain.VerificationAuthenticationRequired},
		{"wrong password", true, http.StatusOK, "admin", "nope", domain.VerificationInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDevice(t)
			if tt.deviceAuth {
				d.requireAuth("admin", "secret")
			}
			d.setRESTStatus(tt.restStatus)
			id := d.identity()

			got, err := konnected.VerifyConnection(context.Background(), id.Address, id.Port, tt.username, tt.password)
			if err != nil {
				t.Fatalf("VerifyConnection error: %v", err)
			}
			if got != tt.want {
				t.Errorf("result: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifyConnection_ReadsDeviceID(t *testing.T) {
	d := newFakeDevice(t)
	id := d.identity()

	if _, err := konnected.VerifyConnection(context.Background(), id.Address, id.Port, "", ""); err != nil {
		t.Fatalf("VerifyConnection error: %v", err)
	}

	reqs := d.recorded()
	if len(reqs) != 1 {
		t.Fatalf("requests: got %d, want 1", len(reqs))
	}
	if reqs[0].Method != http.MethodGet || reqs[0].Path != string(konnected.DeviceID) {
		t.Errorf("request: got %s %s, want GET %s", reqs[0].Method, reqs[0].Path, konnected.DeviceID)
	}
	if d.attempts() != 0 {
		t.Errorf("event stream attempts: got %d, want 0", d.attempts())
	}
}

func TestVerifyConnection_UnexpectedStatus(t *testing.T) {
	d := newFakeDevice(t)
	d.setRESTStatus(http.StatusInternalServerError)
	id := d.identity()

	got, err := konnected.VerifyConnection(context.Background(), id.Address, id.Port, "", "")
	if !errors.Is(err, konnected.ErrRequestFailed) {
		t.Errorf("error: got %v, want ErrRequestFailed", err)
	}
	if got != "" {
		t.Errorf("result: got %q, want empty", got)
	}
}

func TestVerifyConnection_Unreachable(t *testing.T) {
	d := newFakeDevice(t)
	id := d.identity()
	d.server.Close()

	if _, err := konnected.VerifyConnection(context.Background(), id.Address, id.Port, "", ""); err == nil {
		t.Error("expected error for unreachable device")
	}
}
