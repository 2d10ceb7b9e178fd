package receipt

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/ledger"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/notify"
	"github.com/xelth-com/eckposgo/internal/store"
	"github.com/xelth-com/eckposgo/internal/testutil"
)

func closedOrder(t *testing.T) (*store.Store, *models.Order) {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t).DB
	st := store.New(db)

	require.True(t, st.Settings.UpsertOne(ctx, &models.Settings{
		ID: models.SettingsID, RestaurantName: "Gasthaus Eck", Address: "Hauptstraße 1",
		TaxRate: decimal.RequireFromString("0.19"), TaxIncluded: true, Currency: "EUR",
	}).Success)
	require.True(t, st.Orders.UpsertOne(ctx, testutil.OpenOrder("o1", "")).Success)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	l := ledger.New(db, ledger.Options{
		Keys:       ledger.StaticKeyProvider{Pair: &ledger.KeyPair{Public: pub, Private: priv}},
		Notifier:   &notify.Recorder{},
		TerminalID: "T1",
	}, testutil.Log())

	order, err := l.Checkout(ctx, ledger.CheckoutRequest{
		OrderID:  "o1",
		Payments: []ledger.PaymentInput{{Method: "card", Amount: decimal.NewFromInt(1000)}},
		Actor:    "anna",
	})
	require.NoError(t, err)
	return st, order
}

func TestRenderClosedOrder(t *testing.T) {
	st, order := closedOrder(t)

	r, err := Load(context.Background(), st, order.ID, "T1")
	require.NoError(t, err)
	assert.Len(t, r.Order.Items, 2)
	assert.Len(t, r.Payments, 1)

	pdf, err := Render(*r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestQRContentCarriesSignature(t *testing.T) {
	_, order := closedOrder(t)

	parts := strings.Split(QRContent(*order), "|")
	require.Len(t, parts, 5)
	assert.Equal(t, "ECKPOS1", parts[0])
	assert.Equal(t, "INV-000001", parts[1])
	assert.Equal(t, "1000.00", parts[2])
	assert.Equal(t, order.Hash, parts[3])
	assert.Equal(t, order.Signature, parts[4])
}

func TestOpenOrderHasNoReceipt(t *testing.T) {
	ctx := context.Background()
	st := store.New(testutil.NewDB(t).DB)
	require.True(t, st.Orders.UpsertOne(ctx, testutil.OpenOrder("o2", "")).Success)

	_, err := Load(ctx, st, "o2", "T1")
	assert.ErrorIs(t, err, ErrNotClosed)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = Render(Receipt{Order: *testutil.OpenOrder("o3", "")})
	assert.ErrorIs(t, err, ErrNotClosed)

	_, err = Load(ctx, st, "missing", "T1")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}
