package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenIDBytes gives 256 bits of entropy; the ID is the entire authorization
// for a download, so it must be infeasible to predict or enumerate.
const tokenIDBytes = 32

func generateTokenID() (string, error) {
	bytes := make([]byte, tokenIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
