package wallet_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustrail/trustrail/pkg/api"
	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/identifier"
	"github.com/trustrail/trustrail/pkg/jws"
	"github.com/trustrail/trustrail/pkg/ledger"
	"github.com/trustrail/trustrail/pkg/offchain"
	"github.com/trustrail/trustrail/pkg/policy"
	"github.com/trustrail/trustrail/pkg/protocol"
	"github.com/trustrail/trustrail/pkg/store"
	"github.com/trustrail/trustrail/pkg/wallet"
)

const (
	testHRP        = identifier.TestnetPrefix
	testCurrency   = "XUS"
	initialBalance = uint64(1_000_000)
	paymentAmount  = uint64(2_000)
)

// party is one side of the exchange: a wallet served over real HTTP
// with the production transport, so every hop crosses the signed
// envelope boundary.
type party struct {
	wallet        *wallet.Wallet
	server        *api.Server
	compliancePub ed25519.PublicKey
	complianceKey ed25519.PrivateKey
	journal       *store.Journal
}

func newParty(t *testing.T, net *ledger.LocalNet, name string) *party {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	p := &party{compliancePub: pub, complianceKey: priv}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.server.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	parent, err := net.CreateAccount(pub, ts.URL, testCurrency, initialBalance)
	require.NoError(t, err)
	child, err := net.CreateAccount(pub, ts.URL, testCurrency, initialBalance)
	require.NoError(t, err)

	journal, err := store.OpenJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	p.journal = journal

	w, err := wallet.New(wallet.Options{
		Name:          name,
		HRP:           testHRP,
		ComplianceKey: priv,
		ParentAccount: parent,
		Ledger:        net,
		Journal:       journal,
	})
	require.NoError(t, err)
	w.AddChildAccount(child)
	w.SetTransport(offchain.NewClient(child.Address, testHRP, priv, net))

	p.wallet = w
	p.server = api.NewServer(api.Options{Handler: w, RateLimitRPS: 1000, RateBurst: 1000})
	return p
}

// drain runs both background loops until neither has pending work.
func drain(t *testing.T, ctx context.Context, parties ...*party) []wallet.BgResult {
	t.Helper()
	var results []wallet.BgResult
	for i := 0; i < 100; i++ {
		progress := false
		for _, p := range parties {
			res, err := p.wallet.RunOnceBackgroundJob(ctx)
			require.NoError(t, err)
			if res != nil {
				progress = true
				results = append(results, *res)
			}
		}
		if !progress {
			return results
		}
	}
	t.Fatal("background queues did not settle")
	return nil
}

func paymentAt(t *testing.T, p *party, refID string) *command.PaymentCommand {
	t.Helper()
	cmd, ok, err := p.wallet.Command(context.Background(), refID)
	require.NoError(t, err)
	require.True(t, ok)
	pc, ok := cmd.(*command.PaymentCommand)
	require.True(t, ok)
	return pc
}

func hasResult(results []wallet.BgResult, want wallet.ActionResult) bool {
	for _, r := range results {
		if r.Result == want {
			return true
		}
	}
	return false
}

func TestWallets_PaymentSettles(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(testHRP)
	sender := newParty(t, net, "sender-vasp")
	receiver := newParty(t, net, "receiver-vasp")

	sender.wallet.AddUser("alice")
	receiver.wallet.AddUser("bob")

	intentID, err := receiver.wallet.GenIntentID("bob", paymentAmount, testCurrency)
	require.NoError(t, err)

	refID, err := sender.wallet.Pay(ctx, "alice", intentID, "dinner", "")
	require.NoError(t, err)

	results := drain(t, ctx, sender, receiver)
	assert.True(t, hasResult(results, wallet.ActionResultTxnExecuted))

	for _, p := range []*party{sender, receiver} {
		pc := paymentAt(t, p, refID)
		assert.Equal(t, protocol.PaymentStatusReadyForSettlement, pc.Payment.Status)
		assert.NotEmpty(t, pc.Payment.RecipientSignature)
		require.NotNil(t, pc.Payment.Sender.KYCData)
		require.NotNil(t, pc.Payment.Receiver.KYCData)
		assert.Equal(t, "alice", pc.Payment.Sender.KYCData.GivenName)
		assert.Equal(t, "bob", pc.Payment.Receiver.KYCData.GivenName)
	}

	senderBalance, err := sender.wallet.Balance(ctx, testCurrency)
	require.NoError(t, err)
	receiverBalance, err := receiver.wallet.Balance(ctx, testCurrency)
	require.NoError(t, err)
	assert.Equal(t, 2*initialBalance-paymentAmount, senderBalance)
	assert.Equal(t, 2*initialBalance+paymentAmount, receiverBalance)

	// Every accepted version landed in the receiver's journal.
	entries, err := receiver.journal.ListByReference(ctx, refID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWallets_PaymentRejected(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(testHRP)
	sender := newParty(t, net, "sender-vasp")
	receiver := newParty(t, net, "receiver-vasp")

	sender.wallet.AddUser("alice")
	receiver.wallet.AddUser("bob")
	receiver.wallet.SetEvaluateKYCDataResult("alice", policy.VerdictReject)

	intentID, err := receiver.wallet.GenIntentID("bob", paymentAmount, testCurrency)
	require.NoError(t, err)
	refID, err := sender.wallet.Pay(ctx, "alice", intentID, "", "")
	require.NoError(t, err)

	results := drain(t, ctx, sender, receiver)
	assert.True(t, hasResult(results, wallet.ActionResultReject))
	assert.False(t, hasResult(results, wallet.ActionResultTxnExecuted))

	for _, p := range []*party{sender, receiver} {
		pc := paymentAt(t, p, refID)
		assert.Equal(t, protocol.PaymentStatusAbort, pc.Payment.Status)
		assert.Equal(t, protocol.AbortCodeRejectKYCData, pc.Payment.AbortCode)
	}

	senderBalance, err := sender.wallet.Balance(ctx, testCurrency)
	require.NoError(t, err)
	assert.Equal(t, 2*initialBalance, senderBalance)
}

func TestWallets_SoftMatchClearedAndSettled(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(testHRP)
	sender := newParty(t, net, "sender-vasp")
	receiver := newParty(t, net, "receiver-vasp")

	sender.wallet.AddUser("alice")
	receiver.wallet.AddUser("bob")
	receiver.wallet.SetEvaluateKYCDataResult("alice", policy.VerdictSoftMatch)
	receiver.wallet.SetManualReviewResult("alice", policy.VerdictPass)

	intentID, err := receiver.wallet.GenIntentID("bob", paymentAmount, testCurrency)
	require.NoError(t, err)
	refID, err := sender.wallet.Pay(ctx, "alice", intentID, "", "")
	require.NoError(t, err)

	results := drain(t, ctx, sender, receiver)
	assert.True(t, hasResult(results, wallet.ActionResultSoftMatch))
	assert.True(t, hasResult(results, wallet.ActionResultSentAdditionalKYCData))
	assert.True(t, hasResult(results, wallet.ActionResultTxnExecuted))

	pc := paymentAt(t, receiver, refID)
	assert.Equal(t, protocol.PaymentStatusReadyForSettlement, pc.Payment.Status)
	assert.Equal(t, "alice's secret", pc.Payment.Sender.AdditionalKYCData)
}

func TestWallets_SoftMatchReviewRejected(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(testHRP)
	sender := newParty(t, net, "sender-vasp")
	receiver := newParty(t, net, "receiver-vasp")

	sender.wallet.AddUser("alice")
	receiver.wallet.AddUser("bob")
	receiver.wallet.SetEvaluateKYCDataResult("alice", policy.VerdictSoftMatch)
	receiver.wallet.SetManualReviewResult("alice", policy.VerdictReject)

	intentID, err := receiver.wallet.GenIntentID("bob", paymentAmount, testCurrency)
	require.NoError(t, err)
	refID, err := sender.wallet.Pay(ctx, "alice", intentID, "", "")
	require.NoError(t, err)

	drain(t, ctx, sender, receiver)

	for _, p := range []*party{sender, receiver} {
		pc := paymentAt(t, p, refID)
		assert.Equal(t, protocol.PaymentStatusAbort, pc.Payment.Status)
		assert.Equal(t, protocol.AbortCodeRejectKYCData, pc.Payment.AbortCode)
	}
}

func TestWallets_FundsPullPreApproval(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(testHRP)
	biller := newParty(t, net, "biller-vasp")
	payer := newParty(t, net, "payer-vasp")

	biller.wallet.AddUser("power-co")
	payer.wallet.AddUser("alice")

	payerAccountID, err := payer.wallet.GenUserAccountID("alice")
	require.NoError(t, err)

	scope := protocol.FundPullPreApprovalScopeObject{
		Type:                protocol.FundPullPreApprovalScopeConsent,
		ExpirationTimestamp: time.Now().Add(365 * 24 * time.Hour).Unix(),
		MaxTransactionAmount: &protocol.CurrencyObject{
			Amount:   10_000,
			Currency: testCurrency,
		},
	}
	refID, err := biller.wallet.RequestFundsPullPreApproval(ctx, "power-co", payerAccountID, scope, "monthly power bill")
	require.NoError(t, err)

	drain(t, ctx, biller, payer)

	// The payer approves, the decision travels back to the biller.
	require.NoError(t, payer.wallet.RespondToFundsPullPreApproval(ctx, refID, protocol.FundPullPreApprovalStatusValid))
	drain(t, ctx, biller, payer)

	for _, p := range []*party{biller, payer} {
		cmd, ok, err := p.wallet.Command(ctx, refID)
		require.NoError(t, err)
		require.True(t, ok)
		fc, ok := cmd.(*command.FundsPullPreApprovalCommand)
		require.True(t, ok)
		assert.Equal(t, protocol.FundPullPreApprovalStatusValid, fc.FundPullPreApproval.Status)
	}

	// Revocation closes the consent for good.
	require.NoError(t, payer.wallet.RespondToFundsPullPreApproval(ctx, refID, protocol.FundPullPreApprovalStatusClosed))
	drain(t, ctx, biller, payer)

	err = payer.wallet.RespondToFundsPullPreApproval(ctx, refID, protocol.FundPullPreApprovalStatusValid)
	require.Error(t, err)
	assert.Equal(t, protocol.ErrorCodeInvalidTransition, protocol.CodeOf(err))
}

func TestWallets_TamperedVersionRejectedAtBoundary(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(testHRP)
	sender := newParty(t, net, "sender-vasp")
	receiver := newParty(t, net, "receiver-vasp")

	sender.wallet.AddUser("alice")
	receiver.wallet.AddUser("bob")

	intentID, err := receiver.wallet.GenIntentID("bob", paymentAmount, testCurrency)
	require.NoError(t, err)
	refID, err := sender.wallet.Pay(ctx, "alice", intentID, "", "")
	require.NoError(t, err)
	drain(t, ctx, sender, receiver)

	// Replay the conversation with a mutated write-once amount, signed
	// with the sender's genuine compliance key.
	pc := paymentAt(t, sender, refID)
	tampered := *pc.Payment
	tampered.Action.Amount = paymentAmount * 10
	payload, err := command.Payload(&command.PaymentCommand{MyAddress: pc.MyAddress, Payment: &tampered})
	require.NoError(t, err)
	envelope, err := jws.SignRequest(&protocol.CommandRequestObject{
		ObjectType:  protocol.ObjectTypeCommandRequest,
		CID:         "cid-tampered",
		CommandType: protocol.CommandTypePayment,
		Command:     payload,
	}, sender.complianceKey)
	require.NoError(t, err)

	senderID, err := identifier.EncodeAccount(testHRP, senderChildAddress(t, sender), nil)
	require.NoError(t, err)

	status, ack := receiver.wallet.ProcessInboundRequest(ctx, senderID, envelope)
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := jws.VerifyResponse(ack, receiver.compliancePub)
	require.NoError(t, err)
	assert.Equal(t, protocol.ResponseStatusFailure, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrorCodeInvalidTransition, resp.Error.Code)
	assert.Equal(t, "cid-tampered", resp.CID)
}

func TestWallets_GarbageInboundRejected(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(testHRP)
	sender := newParty(t, net, "sender-vasp")
	receiver := newParty(t, net, "receiver-vasp")

	senderID, err := identifier.EncodeAccount(testHRP, senderChildAddress(t, sender), nil)
	require.NoError(t, err)

	status, ack := receiver.wallet.ProcessInboundRequest(ctx, senderID, []byte("not a jws"))
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := jws.VerifyResponse(ack, receiver.compliancePub)
	require.NoError(t, err)
	assert.Equal(t, protocol.ResponseStatusFailure, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrorCodeInvalidJWS, resp.Error.Code)
}

// senderChildAddress digs the child account address back out of a
// freshly minted account identifier.
func senderChildAddress(t *testing.T, p *party) []byte {
	t.Helper()
	p.wallet.AddUser("probe")
	id, err := p.wallet.GenUserAccountID("probe")
	require.NoError(t, err)
	address, _, err := identifier.DecodeAccount(testHRP, id)
	require.NoError(t, err)
	return address
}
