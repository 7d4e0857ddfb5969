package dexscreener

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
)

// This test uses go-vcr to record/replay a real TokenPairs call.
// It skips by default if cassette is absent and RECORD_CASSETTES != 1.
func TestClient_TokenPairs_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "dexscreener_tokens.yaml")
	if _, err := os.Stat(cassette); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		// Ensure parent directory exists for recording
		err := os.MkdirAll(filepath.Dir(cassette), 0o755)
		assert.NoError(t, err, "mkdir cassettes dir should succeed")
	}

	r, err := recorder.New(cassette)
	assert.NoError(t, err, "recorder.New should not error")
	assert.NotNil(t, r, "recorder should not be nil")
	defer func() { _ = r.Stop() }()

	httpClient := &http.Client{Transport: r}
	client := NewClient(WithHTTPClient(httpClient))
	ctx := context.Background()
	pairs, err := client.TokenPairs(ctx, []string{"So11111111111111111111111111111111111111112"})
	assert.NoError(t, err, "TokenPairs should not error")
	assert.NotEmpty(t, pairs, "a major token should have at least one pair")
	if len(pairs) > 0 {
		assert.NotEmpty(t, pairs[0].BaseToken.Symbol, "base token symbol should not be empty")
		assert.Greater(t, pairs[0].price(), 0.0, "price should be positive")
	}
}
