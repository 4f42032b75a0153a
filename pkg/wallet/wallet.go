// Package wallet hosts the compliance-negotiation engine for one party:
// the command store and task queue, the business action handlers, and
// the inbound request boundary exposed to the transport layer.
package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/identifier"
	"github.com/trustrail/trustrail/pkg/jws"
	"github.com/trustrail/trustrail/pkg/ledger"
	"github.com/trustrail/trustrail/pkg/policy"
	"github.com/trustrail/trustrail/pkg/protocol"
	"github.com/trustrail/trustrail/pkg/queue"
	"github.com/trustrail/trustrail/pkg/store"
)

// Transport carries signed command envelopes between counterparties.
// The HTTP client in pkg/offchain is the production implementation;
// tests substitute an in-process loopback.
type Transport interface {
	SendCommand(ctx context.Context, cmd command.Command) error
	// DecodeInbound verifies a raw signed envelope from senderAddress
	// and returns the local inbound view of the command plus the
	// request cid for acknowledgement.
	DecodeInbound(ctx context.Context, senderAddress string, raw []byte) (command.Command, string, error)
}

// Options configures a Wallet.
type Options struct {
	Name          string
	HRP           string
	ComplianceKey ed25519.PrivateKey
	ParentAccount *ledger.LocalAccount
	Ledger        ledger.Client
	// Store overrides the in-memory command store backend; the hook must
	// be installed as the backend's OnAccept.
	Store func(store.OnAccept) store.CommandStore
	// Journal, when set, records every accepted command version.
	Journal *store.Journal
	// KYCRule is the CEL compliance rule; empty means accept everything.
	KYCRule string
	Logger  *slog.Logger
}

// Wallet is one party's engine instance.
type Wallet struct {
	name          string
	hrp           string
	complianceKey ed25519.PrivateKey
	parentAccount *ledger.LocalAccount
	ledgerClient  ledger.Client
	transport     Transport
	cmdStore      store.CommandStore
	tasks         *queue.Queue
	journal       *store.Journal
	kycPolicy     *policy.KYCPolicy
	logger        *slog.Logger

	mu            sync.Mutex
	users         map[string]*User
	childAccounts []*ledger.LocalAccount

	// Configured verdict tables keyed by the counterpart's given name;
	// entries take precedence over the CEL rule.
	evaluateKYCDataResult map[string]policy.Verdict
	manualReviewResult    map[string]policy.Verdict

	// drainMu enforces the single-active-drain invariant.
	drainMu sync.Mutex
}

// New builds a Wallet. The transport is wired afterwards with
// SetTransport since it usually needs the wallet's counterparty graph.
func New(opts Options) (*Wallet, error) {
	if opts.ComplianceKey == nil {
		return nil, fmt.Errorf("wallet %q needs a compliance key", opts.Name)
	}
	if opts.ParentAccount == nil {
		return nil, fmt.Errorf("wallet %q needs a parent account", opts.Name)
	}
	kycPolicy, err := policy.NewKYCPolicy(opts.KYCRule)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Wallet{
		name:                  opts.Name,
		hrp:                   opts.HRP,
		complianceKey:         opts.ComplianceKey,
		parentAccount:         opts.ParentAccount,
		ledgerClient:          opts.Ledger,
		tasks:                 queue.New(),
		journal:               opts.Journal,
		kycPolicy:             kycPolicy,
		logger:                logger.With("wallet", opts.Name),
		users:                 make(map[string]*User),
		evaluateKYCDataResult: make(map[string]policy.Verdict),
		manualReviewResult:    make(map[string]policy.Verdict),
	}
	if opts.Store != nil {
		w.cmdStore = opts.Store(w.onAccept)
	} else {
		w.cmdStore = store.NewMemoryStore(w.onAccept)
	}
	return w, nil
}

// SetTransport installs the transport collaborator.
func (w *Wallet) SetTransport(t Transport) { w.transport = t }

// Name returns the wallet's display name.
func (w *Wallet) Name() string { return w.name }

// HRP returns the network prefix this wallet encodes identifiers under.
func (w *Wallet) HRP() string { return w.hrp }

// ParentAddress returns the on-chain address of the parent account.
func (w *Wallet) ParentAddress() []byte { return w.parentAccount.Address }

// SetEvaluateKYCDataResult configures the evaluation verdict for a
// counterpart given name, overriding the CEL rule.
func (w *Wallet) SetEvaluateKYCDataResult(givenName string, v policy.Verdict) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evaluateKYCDataResult[givenName] = v
}

// SetManualReviewResult configures the manual-review verdict for a
// counterpart given name.
func (w *Wallet) SetManualReviewResult(givenName string, v policy.Verdict) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.manualReviewResult[givenName] = v
}

// PendingTasks reports the number of queued deferred tasks.
func (w *Wallet) PendingTasks() int { return w.tasks.Len() }

// Command returns the latest accepted version of a conversation.
func (w *Wallet) Command(ctx context.Context, referenceID string) (command.Command, bool, error) {
	return w.cmdStore.Get(ctx, referenceID)
}

// SaveCommand validates and stores a locally produced command version.
// Accepted inbound versions enqueue their follow-up action; accepted
// outbound versions enqueue transmission to the counterpart.
func (w *Wallet) SaveCommand(ctx context.Context, cmd command.Command) error {
	return w.cmdStore.Save(ctx, cmd)
}

// onAccept runs under the conversation lock for every accepted version.
func (w *Wallet) onAccept(cmd command.Command) {
	if w.journal != nil {
		if err := w.journal.Append(context.Background(), cmd); err != nil {
			w.logger.Error("journal append failed", "reference_id", cmd.ReferenceID(), "error", err)
		}
	}
	if cmd.IsInbound() {
		w.enqueueFollowUp(cmd)
		return
	}
	w.tasks.Enqueue(queue.Task{Kind: queue.KindSendRequest, ReferenceID: cmd.ReferenceID()})
}

// enqueueFollowUp queues the resolved business action, if any. No
// resolution is a valid terminal outcome for the local party.
func (w *Wallet) enqueueFollowUp(cmd command.Command) {
	if _, ok := cmd.FollowUpAction(); !ok {
		return
	}
	w.tasks.Enqueue(queue.Task{Kind: queue.KindRunFollowUp, ReferenceID: cmd.ReferenceID()})
}

// Pay makes a payment from the named user to a payment intent. It
// returns the reference id of the new conversation.
func (w *Wallet) Pay(ctx context.Context, userName, intentID, description, originalPaymentReferenceID string) (string, error) {
	intent, err := identifier.DecodeIntent(w.hrp, intentID)
	if err != nil {
		return "", err
	}
	user, err := w.user(userName)
	if err != nil {
		return "", err
	}
	senderID, err := w.GenUserAccountID(userName)
	if err != nil {
		return "", err
	}

	cmd := command.NewPaymentCommand(
		uuid.NewString(),
		senderID,
		user.KYCData(),
		intent.AccountID,
		intent.Amount,
		intent.Currency,
		time.Now().Unix(),
	)
	cmd.Payment.Description = description
	cmd.Payment.OriginalPaymentReferenceID = originalPaymentReferenceID

	if err := w.SaveCommand(ctx, cmd); err != nil {
		return "", err
	}
	return cmd.ReferenceID(), nil
}

// GenIntentID mints a payment intent addressed to the named local user.
func (w *Wallet) GenIntentID(userName string, amount uint64, currency string) (string, error) {
	accountID, err := w.GenUserAccountID(userName)
	if err != nil {
		return "", err
	}
	return identifier.EncodeIntent(accountID, currency, amount), nil
}

// ProcessInboundRequest is the boundary exposed to the transport layer.
// It never fails past this boundary: every outcome is a status code and
// a signed acknowledgement payload.
func (w *Wallet) ProcessInboundRequest(ctx context.Context, senderAddress string, requestBytes []byte) (int, []byte) {
	cmd, cid, err := w.transport.DecodeInbound(ctx, senderAddress, requestBytes)
	if err == nil {
		err = w.SaveCommand(ctx, cmd)
	}

	var resp *protocol.CommandResponseObject
	code := http.StatusOK
	if err != nil {
		w.logger.Warn("inbound request rejected", "sender", senderAddress, "error", err)
		var ce *protocol.CommandError
		if !errors.As(err, &ce) {
			ce = protocol.NewProtocolError(protocol.ErrorCodeInvalidObject, "%v", err)
		}
		resp = protocol.NewFailureResponse(cid, ce.ErrObject())
		code = http.StatusBadRequest
	} else {
		resp = protocol.NewSuccessResponse(cid)
	}

	signed, err := jws.SignResponse(resp, w.complianceKey)
	if err != nil {
		w.logger.Error("signing acknowledgement failed", "error", err)
		return http.StatusInternalServerError, nil
	}
	return code, signed
}

// RunOnceBackgroundJob drains and executes the oldest deferred task.
// The result is nil when the queue was empty. Only one drain runs at a
// time; concurrent callers serialize here.
func (w *Wallet) RunOnceBackgroundJob(ctx context.Context) (*BgResult, error) {
	w.drainMu.Lock()
	defer w.drainMu.Unlock()

	task, ok := w.tasks.Pop()
	if !ok {
		return nil, nil
	}

	switch task.Kind {
	case queue.KindSendRequest:
		return w.sendRequest(ctx, task.ReferenceID)
	case queue.KindRunFollowUp:
		return w.runBusinessAction(ctx, task.ReferenceID)
	default:
		return nil, fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// sendRequest transmits the stored command and then queues whatever
// local follow-up the transmitted version implies.
func (w *Wallet) sendRequest(ctx context.Context, referenceID string) (*BgResult, error) {
	cmd, ok, err := w.cmdStore.Get(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, protocol.NewCommandError(protocol.ErrorCodeNotFound, referenceID,
			"no stored command for queued send")
	}
	if err := w.transport.SendCommand(ctx, cmd); err != nil {
		return nil, err
	}
	w.enqueueFollowUp(cmd)
	return &BgResult{Result: ActionResultSendRequestSuccess}, nil
}
