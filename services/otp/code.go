package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mileusna/useragent"
)

const (
	codeFloor = 100000
	codeSpan  = 900000
)

// GenerateCode returns a uniformly random code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeFloor), nil
}

// DescribeDevice turns a User-Agent header into a short label for messages.
func DescribeDevice(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	ua := useragent.Parse(userAgent)
	name := ua.Name
	if name == "" {
		name = "Unknown browser"
	}
	if ua.OS == "" {
		return name
	}
	return fmt.Sprintf("%s on %s", name, ua.OS)
}
