package services

import (
	"context"
	"errors"
	"testing"
)

func TestDisabledGateways(t *testing.T) {
	ctx := context.Background()

	sms := NewDisabledSMSGateway()
	if sms.IsEnabled() {
		t.Error("disabled gateway reports enabled")
	}
	if err := sms.Send(ctx, "+15551234567", "hi"); !errors.Is(err, ErrSMSDisabled) {
		t.Errorf("Send() error = %v, want ErrSMSDisabled", err)
	}

	push, err := NewPushService("", "", "", "", false)
	if err != nil {
		t.Fatalf("NewPushService() error = %v", err)
	}
	if err := push.Push(ctx, "token", "title", "body"); !errors.Is(err, ErrPushDisabled) {
		t.Errorf("Push() error = %v, want ErrPushDisabled", err)
	}

	if _, err := NewPushService("/does/not/exist.p8", "KEY", "TEAM", "com.example.santa", false); err == nil {
		t.Error("NewPushService() with a missing key file should fail")
	}
}
