package middleware

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

// ValidateAnalyzerType checks if the analyzer name is in the allowed list
func ValidateAnalyzerType(analyzer string) error {
	allowed := map[string]bool{
		"bias": true,
		"pii":  true,
	}

	if !allowed[strings.ToLower(analyzer)] {
		return fmt.Errorf("invalid analyzer type: %s (allowed: bias, pii)", analyzer)
	}
	return nil
}

// ValidateObjectKey validates object storage keys
func ValidateObjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key cannot be empty")
	}

	// Clean the key
	cleaned := path.Clean(key)

	// Block path traversal attempts
	if strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, "/") {
		return fmt.Errorf("path traversal detected")
	}

	// Block dangerous patterns
	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(key, d) {
			return fmt.Errorf("invalid characters in object key")
		}
	}

	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}

	// Allow alphanumeric, dash, underscore (max 64 chars)
	pattern := `^[a-zA-Z0-9_-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, tenant)
	if !matched {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}

	return nil
}

// ValidateAnalysisID validates analysis ID format
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("analysis ID cannot be empty")
	}

	pattern := `^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`
	matched, _ := regexp.MatchString(pattern, id)
	if !matched {
		return fmt.Errorf("invalid analysis ID format")
	}

	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
