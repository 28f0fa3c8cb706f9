package iam

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// GeneratePatientID derives the human-readable patient ID from the first
// word of the name plus a random four digit suffix, e.g. "PRIYA-4821".
// It is not collision free; callers retry on unique violations.
func GeneratePatientID(name string) (string, error) {
	fields := strings.Fields(name)
	first := "PATIENT"
	if len(fields) > 0 {
		first = strings.ToUpper(fields[0])
	}

	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("failed to generate patient ID suffix: %w", err)
	}

	return fmt.Sprintf("%s-%d", first, 1000+n.Int64()), nil
}

// NewQRToken returns an opaque, unguessable public view token
func NewQRToken() string {
	return uuid.New().String()
}
