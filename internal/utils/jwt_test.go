package utils

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	userID := primitive.NewObjectID()

	token, err := GenerateAccessToken(userID, "Ada", "acme", testSecret)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user id = %s, want %s", claims.UserID.Hex(), userID.Hex())
	}
	if claims.Name != "Ada" {
		t.Errorf("name = %q, want Ada", claims.Name)
	}
	if claims.CohortKey != "acme" {
		t.Errorf("cohort key = %q, want acme", claims.CohortKey)
	}
	if claims.Subject != userID.Hex() {
		t.Errorf("subject = %q, want %s", claims.Subject, userID.Hex())
	}
}

func TestValidateTokenRejectsBadInput(t *testing.T) {
	userID := primitive.NewObjectID()
	good, err := GenerateAccessToken(userID, "Ada", "acme", testSecret)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"garbage", "not-a-token", testSecret},
		{"empty", "", testSecret},
		{"wrong secret", good, "other-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.token, tt.secret); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestExtractUserIDFromToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := GenerateAccessToken(userID, "Ada", "", testSecret)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	got, err := ExtractUserIDFromToken(token, testSecret)
	if err != nil {
		t.Fatalf("ExtractUserIDFromToken: %v", err)
	}
	if got != userID {
		t.Errorf("user id = %s, want %s", got.Hex(), userID.Hex())
	}
}
