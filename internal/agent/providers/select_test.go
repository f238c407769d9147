package providers

import (
	"errors"
	"strings"
	"testing"

	"github.com/vizlab-ai/vizchat/internal/config"
)

func TestSelectOpenAI(t *testing.T) {
	p, err := Select(config.ProviderConfig{
		Name:         "openai",
		OpenAIAPIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("provider name = %q", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("openai should support tools")
	}
}

func TestSelectOpenAIMissingKey(t *testing.T) {
	_, err := Select(config.ProviderConfig{Name: "openai"})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error = %q, want mention of OPENAI_API_KEY", err.Error())
	}
}

func TestSelectCaseInsensitive(t *testing.T) {
	p, err := Select(config.ProviderConfig{
		Name:         "OpenAI",
		OpenAIAPIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("provider name = %q", p.Name())
	}
}

func TestSelectBedrockMissingCredentials(t *testing.T) {
	_, err := Select(config.ProviderConfig{Name: "bedrock"})
	if err == nil {
		t.Fatal("expected error for missing AWS credentials")
	}
	if !strings.Contains(err.Error(), "AWS_ACCESS_KEY_ID") {
		t.Errorf("error = %q, want mention of AWS_ACCESS_KEY_ID", err.Error())
	}

	_, err = Select(config.ProviderConfig{Name: "bedrock", AWSAccessKeyID: "AKIAEXAMPLE"})
	if err == nil {
		t.Fatal("expected error for missing secret key")
	}
	if !strings.Contains(err.Error(), "AWS_SECRET_ACCESS_KEY") {
		t.Errorf("error = %q, want mention of AWS_SECRET_ACCESS_KEY", err.Error())
	}
}

func TestSelectAWSAlias(t *testing.T) {
	p, err := Select(config.ProviderConfig{
		Name:               "aws",
		AWSAccessKeyID:     "AKIAEXAMPLE",
		AWSSecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Name() != "bedrock" {
		t.Errorf("provider name = %q, want bedrock", p.Name())
	}
}

func TestSelectUnsupported(t *testing.T) {
	_, err := Select(config.ProviderConfig{Name: "cohere"})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	for _, want := range []string{"cohere", "openai", "bedrock"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err.Error(), want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want FailureReason
	}{
		{errors.New("request timeout"), FailureTimeout},
		{errors.New("429 too many requests"), FailureRateLimit},
		{errors.New("401 unauthorized"), FailureAuth},
		{errors.New("model not found"), FailureModelUnavailable},
		{errors.New("503 service unavailable"), FailureServerError},
		{errors.New("something odd"), FailureUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestProviderErrorRoundTrip(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("openai", "gpt-4.1", cause).WithStatus(503)

	if !IsProviderError(err) {
		t.Error("IsProviderError = false")
	}
	got, ok := GetProviderError(err)
	if !ok {
		t.Fatal("GetProviderError failed")
	}
	if got.Reason != FailureServerError {
		t.Errorf("reason = %v, want server_error", got.Reason)
	}
	if !IsRetryable(err) {
		t.Error("503 should be retryable")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved in chain")
	}
}
