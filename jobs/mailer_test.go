package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing"
)

type fakeDirectory struct {
	emails map[string]string
}

func (f *fakeDirectory) Email(_ context.Context, _ string, clientID string) (string, error) {
	email, ok := f.emails[clientID]
	if !ok {
		return "", errors.New("unknown client")
	}
	return email, nil
}

func TestSMTPDelivererBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	d := NewSMTPDeliverer(MailerConfig{Host: "127.0.0.1", Port: 1025, From: "billing@test.local"},
		&fakeDirectory{emails: map[string]string{"client-1": "acme@client.local"}})
	d.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	doc := &billing.Document{
		ID: "inv-1", Number: "00000042", Type: billing.TypeInvoice,
		ScopeID: "ws-1", ClientID: "client-1",
		Totals: billing.Totals{TTC: 960},
	}
	require.NoError(t, d.Deliver(context.Background(), doc))
	require.Equal(t, "127.0.0.1:1025", gotAddr)
	require.Equal(t, "billing@test.local", gotFrom)
	require.Equal(t, []string{"acme@client.local"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Invoice 00000042")
	require.Contains(t, string(gotMsg), "960.00")
}

func TestSMTPDelivererRequiresClient(t *testing.T) {
	d := NewSMTPDeliverer(MailerConfig{}, &fakeDirectory{})
	require.Error(t, d.Deliver(context.Background(), &billing.Document{ID: "inv-1"}))
	require.Error(t, d.Deliver(context.Background(), &billing.Document{ID: "inv-1", ClientID: "missing"}))
}
