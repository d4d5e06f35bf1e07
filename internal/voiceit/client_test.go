package voiceit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{APIKey: "key_abc", APIToken: "tok_xyz", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{APIKey: "key"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestCreateUser_SendsBasicAuthAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_abc", user)
		assert.Equal(t, "tok_xyz", pass)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"responseCode":"SUCC","userId":"usr_49c6","status":201}`))
	})

	res, err := c.CreateUser(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "usr_49c6", res.UserID)
}

func TestEnrollVoiceByURL_SerializesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enrollments/voice/byUrl", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var got map[string]string
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, map[string]string{
			"userId":          "usr_1",
			"contentLanguage": "en-US",
			"phrase":          "my face and voice identify me",
			"fileUrl":         "https://rec.example/1.flac",
		}, got)

		_, _ = w.Write([]byte(`{"responseCode":"SUCC","id":7}`))
	})

	res, err := c.EnrollVoiceByURL(context.Background(), VoiceRequest{
		UserID:          "usr_1",
		ContentLanguage: "en-US",
		Phrase:          "my face and voice identify me",
		FileURL:         "https://rec.example/1.flac",
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.EqualValues(t, 7, res.ID)
}

func TestVerifyVoiceByURL_BusinessFailureIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responseCode":"FAIL","confidence":41.5}`))
	})

	res, err := c.VerifyVoiceByURL(context.Background(), VoiceRequest{UserID: "usr_1"})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.InDelta(t, 41.5, res.Confidence, 0.001)
}

func TestRequest_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"responseCode":"UNAC"}`))
	})

	_, err := c.CreateUser(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "UNAC")
}

func TestRequest_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.CreateUser(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRequest_WrongFieldTypeIsDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"responseCode":"SUCC","userId":5}`))
	})

	_, err := c.CreateUser(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRequest_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := New(Config{APIKey: "k", APIToken: "t", BaseURL: srv.URL})
	require.NoError(t, err)
	srv.Close()

	_, err = c.CreateUser(context.Background())
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestRequest_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responseCode":"SUCC"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.VerifyVoiceByURL(ctx, VoiceRequest{})
	assert.Error(t, err)
}

func TestHealthCheck_EscapesLanguage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/phrases/en-US", r.URL.Path)
		_, _ = w.Write([]byte(`{"responseCode":"SUCC"}`))
	})
	assert.NoError(t, c.HealthCheck(context.Background(), "en-US"))
}
