package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAnalyzerType(t *testing.T) {
	assert.NoError(t, ValidateAnalyzerType("bias"))
	assert.NoError(t, ValidateAnalyzerType("PII"))
	assert.Error(t, ValidateAnalyzerType("regression"))
	assert.Error(t, ValidateAnalyzerType(""))
}

func TestValidateTenantID(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme-corp_01"))
	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID("bad tenant"))
	assert.Error(t, ValidateTenantID("tenant/../../etc"))
}

func TestValidateObjectKey(t *testing.T) {
	assert.NoError(t, ValidateObjectKey("uploads/2026/data.csv"))
	assert.Error(t, ValidateObjectKey(""))
	assert.Error(t, ValidateObjectKey("../secrets.csv"))
	assert.Error(t, ValidateObjectKey("/etc/passwd"))
	assert.Error(t, ValidateObjectKey("a;rm -rf"))
}

func TestValidateLimitAndDays(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(500))
	assert.Equal(t, 42, ValidateLimit(42))

	assert.Equal(t, 7, ValidateDays(-1))
	assert.Equal(t, 365, ValidateDays(1000))
	assert.Equal(t, 30, ValidateDays(30))
}
