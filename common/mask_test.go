package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskURL_RedactsTokenQueryParam(t *testing.T) {
	masked := MaskURL("https://pos.example.com/api/products?session_token=abcdefghijklmnop&page=2")
	assert.Contains(t, masked, "page=2")
	assert.NotContains(t, masked, "abcdefghijklmnop")
}

func TestMaskURL_LeavesPlainURLUnchanged(t *testing.T) {
	masked := MaskURL("https://pos.example.com/api/products?page=2")
	assert.Equal(t, "https://pos.example.com/api/products?page=2", masked)
}

func TestIsSecretLike(t *testing.T) {
	assert.True(t, IsSecretLike("POS_API_TOKEN"))
	assert.True(t, IsSecretLike("cloud_webhook_secret"))
	assert.False(t, IsSecretLike("POS_BASE_URL"))
}
