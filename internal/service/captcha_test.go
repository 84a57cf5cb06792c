package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const testVerifyURL = "https://turnstile.test/siteverify"

func TestTurnstileVerifier(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testVerifyURL, func(req *http.Request) (*http.Response, error) {
		if err := req.ParseForm(); err != nil {
			return nil, err
		}
		if req.PostForm.Get("secret") != "top-secret" {
			return httpmock.NewStringResponse(http.StatusForbidden, "bad secret"), nil
		}
		success := req.PostForm.Get("response") == "good-token"
		return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"success": success})
	})

	verifier := NewTurnstileVerifier(client, "top-secret", testVerifyURL)
	ctx := context.Background()

	ok, err := verifier.Verify(ctx, "good-token", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = verifier.Verify(ctx, "bad-token", "")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = verifier.Verify(ctx, "", "")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 2, httpmock.GetTotalCallCount(), "blank tokens never reach the network")

	wrongSecret := NewTurnstileVerifier(client, "nope", testVerifyURL)
	_, err = wrongSecret.Verify(ctx, "good-token", "")
	require.Error(t, err)
}
