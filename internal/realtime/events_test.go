package realtime

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDecodeInbound(t *testing.T) {
	rideID := primitive.NewObjectID()

	frame, err := EncodeInbound(&SendMessage{RideID: rideID, Text: "hi", CorrelationID: "c-1"})
	if err != nil {
		t.Fatalf("EncodeInbound: %v", err)
	}

	ev, err := DecodeInbound(frame)
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}

	msg, ok := ev.(*SendMessage)
	if !ok {
		t.Fatalf("decoded %T, want *SendMessage", ev)
	}
	if msg.RideID != rideID || msg.Text != "hi" || msg.CorrelationID != "c-1" {
		t.Errorf("decoded %+v", msg)
	}
}

func TestDecodeInboundRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", "{nope"},
		{"unknown event", `{"event":"do-the-thing"}`},
		{"server event on inbound path", `{"event":"new-message"}`},
		{"bad payload", `{"event":"send-message","data":"not-an-object"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeInbound([]byte(tt.frame)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeOutboundRoundTrip(t *testing.T) {
	rideID := primitive.NewObjectID()

	frame, err := EncodeOutbound(&ChatError{RideID: rideID, Reason: ReasonNotAuthorized})
	if err != nil {
		t.Fatalf("EncodeOutbound: %v", err)
	}

	ev, err := DecodeOutbound(frame)
	if err != nil {
		t.Fatalf("DecodeOutbound: %v", err)
	}

	chatErr, ok := ev.(*ChatError)
	if !ok {
		t.Fatalf("decoded %T, want *ChatError", ev)
	}
	if chatErr.RideID != rideID || chatErr.Reason != ReasonNotAuthorized {
		t.Errorf("decoded %+v", chatErr)
	}
}

func TestEncodeOmitsEmptyCorrelationID(t *testing.T) {
	frame, err := EncodeOutbound(&NewMessage{})
	if err != nil {
		t.Fatalf("EncodeOutbound: %v", err)
	}

	if strings.Contains(string(frame), "correlation_id") {
		t.Errorf("frame %s carries an empty correlation id", frame)
	}
}
