package rewards

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"liquidityPortal/internal/config"
	"liquidityPortal/internal/fault"
	"liquidityPortal/internal/model"
)

var (
	treasuryAddr = common.HexToAddress("0x5000000000000000000000000000000000000005")
	userAddr     = common.HexToAddress("0x1000000000000000000000000000000000000001")
)

type fakeBackend struct {
	claimable     decimal.Decimal
	record        model.ClaimRecord
	sigErr        error
	sigCalls      int
	claimableHits int
}

func (f *fakeBackend) Claimability(_ context.Context, _ string) (decimal.Decimal, error) {
	f.claimableHits++
	return f.claimable, nil
}

func (f *fakeBackend) GenerateClaimSignature(_ context.Context, userAddress string) (model.ClaimRecord, error) {
	f.sigCalls++
	if f.sigErr != nil {
		return model.ClaimRecord{}, f.sigErr
	}
	record := f.record
	record.UserAddress = userAddress
	return record, nil
}

type fakeClaimSender struct {
	sent [][]byte
	err  error
}

func (f *fakeClaimSender) Address() common.Address { return userAddr }

func (f *fakeClaimSender) SendAndWait(_ context.Context, _ *common.Address, _ *big.Int, data []byte, _ uint64) (*types.Receipt, error) {
	f.sent = append(f.sent, data)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Receipt{
		TxHash:  common.HexToHash("0xc1a1"),
		Status:  types.ReceiptStatusSuccessful,
		GasUsed: 150000,
	}, nil
}

type fakeEstimator struct {
	err   error
	calls int
}

func (f *fakeEstimator) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return 180000, nil
}

func signedRecord(amount int64, nonce uint64) model.ClaimRecord {
	return model.ClaimRecord{
		SignedAmount: big.NewInt(amount),
		Nonce:        nonce,
		Signature:    []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func newTestClaimer(variant config.ClaimABIVariant, backend *fakeBackend, sender *fakeClaimSender, estimator *fakeEstimator) *Claimer {
	return NewClaimer(treasuryAddr, variant, backend, sender, estimator, nil, nil)
}

func TestClaimNothingToClaim(t *testing.T) {
	backend := &fakeBackend{claimable: decimal.Zero}
	sender := &fakeClaimSender{}
	estimator := &fakeEstimator{}
	claimer := newTestClaimer(config.ClaimABIUserAmountNonceSignature, backend, sender, estimator)

	outcome, err := claimer.Claim(context.Background())
	if err != nil {
		t.Fatalf("zero claimable must not be an error: %v", err)
	}
	if outcome.Status != model.ClaimStatusNothingToClaim {
		t.Fatalf("unexpected status: %s", outcome.Status)
	}
	if backend.sigCalls != 0 || estimator.calls != 0 || len(sender.sent) != 0 {
		t.Fatalf("zero claimable must make zero further calls")
	}
}

func TestClaimSubmitsSignedAmountVerbatim(t *testing.T) {
	backend := &fakeBackend{
		claimable: decimal.NewFromInt(10),
		record:    signedRecord(123456789, 7),
	}
	sender := &fakeClaimSender{}
	claimer := newTestClaimer(config.ClaimABIUserAmountNonceSignature, backend, sender, &fakeEstimator{})

	outcome, err := claimer.Claim(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != model.ClaimStatusClaimed {
		t.Fatalf("unexpected status: %s", outcome.Status)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one claim tx, got %d", len(sender.sent))
	}

	treasury, err := UserNonceABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	values, err := treasury.Methods["claimRewards"].Inputs.Unpack(sender.sent[0][4:])
	if err != nil {
		t.Fatalf("unpack claim calldata: %v", err)
	}
	if got := values[0].(common.Address); got != userAddr {
		t.Fatalf("user mismatch: %s", got.Hex())
	}
	if got := values[1].(*big.Int); got.Cmp(big.NewInt(123456789)) != 0 {
		t.Fatalf("submitted amount %s must equal the signed amount verbatim", got)
	}
	if got := values[2].(*big.Int); got.Uint64() != 7 {
		t.Fatalf("nonce mismatch: %s", got)
	}
}

func TestClaimAmountSignatureVariant(t *testing.T) {
	backend := &fakeBackend{
		claimable: decimal.NewFromInt(10),
		record:    signedRecord(555, 1),
	}
	sender := &fakeClaimSender{}
	claimer := newTestClaimer(config.ClaimABIAmountSignature, backend, sender, &fakeEstimator{})

	if _, err := claimer.Claim(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	treasury, err := AmountSignatureABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	values, err := treasury.Methods["claimRewards"].Inputs.Unpack(sender.sent[0][4:])
	if err != nil {
		t.Fatalf("unpack claim calldata: %v", err)
	}
	if got := values[0].(*big.Int); got.Cmp(big.NewInt(555)) != 0 {
		t.Fatalf("amount mismatch: %s", got)
	}
}

func TestClaimGasRevertSmellIsStructural(t *testing.T) {
	backend := &fakeBackend{
		claimable: decimal.NewFromInt(10),
		record:    signedRecord(100, 2),
	}
	sender := &fakeClaimSender{}
	estimator := &fakeEstimator{err: errors.New("execution reverted")}
	claimer := newTestClaimer(config.ClaimABIUserAmountNonceSignature, backend, sender, estimator)

	_, err := claimer.Claim(context.Background())
	if !errors.Is(err, fault.ErrClaimUnavailable) {
		t.Fatalf("revert-smelling estimation must map to claim-unavailable, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("failed pre-flight must not submit a transaction")
	}
}

func TestClaimNonceReuseIsDesyncAndNotResubmitted(t *testing.T) {
	backend := &fakeBackend{
		claimable: decimal.NewFromInt(10),
		record:    signedRecord(100, 3),
	}
	sender := &fakeClaimSender{err: fault.ErrNonceUsed}
	claimer := newTestClaimer(config.ClaimABIUserAmountNonceSignature, backend, sender, &fakeEstimator{})

	_, err := claimer.Claim(context.Background())
	if !errors.Is(err, fault.ErrNonceUsed) {
		t.Fatalf("expected nonce desync error, got %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("a consumed nonce must never be resubmitted, got %d sends", len(sender.sent))
	}
	if fault.Classify(err) != fault.ClassStateDesync {
		t.Fatalf("nonce reuse must classify as state desync")
	}
}

func TestClaimZeroSignedAmount(t *testing.T) {
	backend := &fakeBackend{
		claimable: decimal.NewFromInt(10),
		record:    signedRecord(0, 4),
	}
	sender := &fakeClaimSender{}
	claimer := newTestClaimer(config.ClaimABIUserAmountNonceSignature, backend, sender, &fakeEstimator{})

	outcome, err := claimer.Claim(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != model.ClaimStatusNothingToClaim {
		t.Fatalf("zero signed amount must terminate without a claim")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("zero signed amount must not submit")
	}
}
