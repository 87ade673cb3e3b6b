package sms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
	"github.com/gosuda/orkestra/internal/transport/sms"
)

func TestTransport_Send(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotForm map[string]string
		gotUser string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		assert.NoError(t, r.ParseForm())
		gotForm = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	t.Cleanup(srv.Close)

	tr := sms.New(sms.Config{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "tok", From: "+15550001111"})

	err := tr.Send(context.Background(), "+21612345678", notify.Message{SMS: "Delay: Project 'Apollo' - 3 days. Supervise."})
	require.NoError(t, err)
	assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", gotPath)
	assert.Equal(t, "AC1", gotUser)
	assert.Equal(t, map[string]string{
		"To":   "+21612345678",
		"From": "+15550001111",
		"Body": "Delay: Project 'Apollo' - 3 days. Supervise.",
	}, gotForm)
}

func TestTransport_SendAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	t.Cleanup(srv.Close)

	tr := sms.New(sms.Config{BaseURL: srv.URL, AccountSID: "AC1"})

	err := tr.Send(context.Background(), "+21612345678", notify.Message{SMS: "x"})
	require.ErrorIs(t, err, domain.ErrDelivery)
	assert.Contains(t, err.Error(), "21211")
}

func TestTransport_Address(t *testing.T) {
	t.Parallel()

	tr := sms.New(sms.Config{})

	addr, ok, err := tr.Address(&domain.User{Phone: "12345678"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "+21612345678", addr)

	_, ok, err = tr.Address(&domain.User{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tr.Address(&domain.User{Phone: "+4915112345678"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, ok)
}
