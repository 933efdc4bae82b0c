package positions

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityPortal/internal/fault"
	"liquidityPortal/internal/model"
)

var (
	contractAddr = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	wrappedAddr  = common.HexToAddress("0x4000000000000000000000000000000000000004")
	ownerAddr    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	strangerAddr = common.HexToAddress("0x9000000000000000000000000000000000000009")
	tokenA       = common.HexToAddress("0x2000000000000000000000000000000000000002")
	tokenB       = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

type fakePositionReader struct {
	owner  common.Address
	exists bool
	states []model.PositionState
	index  int
}

func (f *fakePositionReader) Position(_ context.Context, tokenID uint64) (model.PositionState, bool, error) {
	if !f.exists {
		return model.PositionState{}, false, nil
	}
	state := f.states[f.index]
	if f.index < len(f.states)-1 {
		f.index++
	}
	state.TokenID = tokenID
	return state, true, nil
}

func (f *fakePositionReader) OwnerOf(_ context.Context, _ uint64) (common.Address, bool, error) {
	if !f.exists {
		return common.Address{}, false, nil
	}
	return f.owner, true, nil
}

type sentTx struct {
	to    common.Address
	value *big.Int
	data  []byte
}

type fakeTxSender struct {
	sent    []sentTx
	receipt *types.Receipt
	err     error
}

func (f *fakeTxSender) Address() common.Address { return ownerAddr }

func (f *fakeTxSender) SendAndWait(_ context.Context, to *common.Address, value *big.Int, data []byte, _ uint64) (*types.Receipt, error) {
	f.sent = append(f.sent, sentTx{to: *to, value: value, data: data})
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &types.Receipt{
		TxHash:  common.HexToHash("0xbeef"),
		Status:  types.ReceiptStatusSuccessful,
		GasUsed: 210000,
	}, nil
}

type fakeApprover struct {
	tokens []common.Address
}

func (f *fakeApprover) EnsureApproval(_ context.Context, token, _ common.Address, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() == 0 {
		return false, nil
	}
	f.tokens = append(f.tokens, token)
	return true, nil
}

func newTestManager(reader *fakePositionReader, sender *fakeTxSender, approver *fakeApprover) *Manager {
	return NewManager(ManagerConfig{
		Contract:          contractAddr,
		WrappedNative:     wrappedAddr,
		SlippageTolerance: 0.15,
	}, reader, sender, approver, nil, nil)
}

func emptyState() model.PositionState {
	return model.PositionState{
		Token0:      tokenA.Hex(),
		Token1:      tokenB.Hex(),
		Liquidity:   big.NewInt(0),
		TokensOwed0: big.NewInt(0),
		TokensOwed1: big.NewInt(0),
	}
}

func liveState(liquidity int64) model.PositionState {
	state := emptyState()
	state.Liquidity = big.NewInt(liquidity)
	return state
}

func mintReceipt(tokenID uint64) *types.Receipt {
	return &types.Receipt{
		TxHash:  common.HexToHash("0xbeef"),
		Status:  types.ReceiptStatusSuccessful,
		GasUsed: 480000,
		Logs: []*types.Log{
			{
				Address: contractAddr,
				Topics: []common.Hash{
					TransferTopic,
					{},
					common.BytesToHash(ownerAddr.Bytes()),
					common.BigToHash(new(big.Int).SetUint64(tokenID)),
				},
			},
		},
	}
}

func TestMintRejectsInvalidTicks(t *testing.T) {
	sender := &fakeTxSender{}
	approver := &fakeApprover{}
	mgr := newTestManager(&fakePositionReader{}, sender, approver)

	_, err := mgr.Mint(context.Background(), MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            3000,
		TickLower:      100,
		TickUpper:      100,
		Amount0Desired: big.NewInt(1000),
	})
	if err == nil {
		t.Fatalf("expected tick validation error")
	}
	if len(sender.sent) != 0 || len(approver.tokens) != 0 {
		t.Fatalf("invalid ticks must produce zero transactions")
	}
}

func TestMintRejectsBothAmountsZero(t *testing.T) {
	sender := &fakeTxSender{}
	mgr := newTestManager(&fakePositionReader{}, sender, &fakeApprover{})

	_, err := mgr.Mint(context.Background(), MintParams{
		Token0:    tokenA,
		Token1:    tokenB,
		Fee:       3000,
		TickLower: -600,
		TickUpper: 600,
	})
	if err == nil || err.Error() != "both amounts cannot be zero" {
		t.Fatalf("expected both-amounts-zero error, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("invalid amounts must produce zero transactions")
	}
}

func TestMintRejectsUnknownFeeTier(t *testing.T) {
	sender := &fakeTxSender{}
	mgr := newTestManager(&fakePositionReader{}, sender, &fakeApprover{})

	_, err := mgr.Mint(context.Background(), MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            1234,
		TickLower:      -600,
		TickUpper:      600,
		Amount0Desired: big.NewInt(1000),
	})
	if err == nil {
		t.Fatalf("expected fee tier validation error")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("invalid fee tier must produce zero transactions")
	}
}

func TestMintExtractsTokenID(t *testing.T) {
	sender := &fakeTxSender{receipt: mintReceipt(4242)}
	approver := &fakeApprover{}
	mgr := newTestManager(&fakePositionReader{}, sender, approver)

	result, err := mgr.Mint(context.Background(), MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            3000,
		TickLower:      -600,
		TickUpper:      600,
		Amount0Desired: big.NewInt(1000),
		Amount1Desired: big.NewInt(2000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TokenID != 4242 {
		t.Fatalf("token id mismatch: %d", result.TokenID)
	}
	if len(approver.tokens) != 2 {
		t.Fatalf("both ERC-20 legs must be approved, got %d", len(approver.tokens))
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one mint tx, got %d", len(sender.sent))
	}
	if sender.sent[0].value != nil {
		t.Fatalf("non-native mint must not carry value")
	}
}

func TestMintNativeLegUsesValue(t *testing.T) {
	sender := &fakeTxSender{receipt: mintReceipt(7)}
	approver := &fakeApprover{}
	mgr := newTestManager(&fakePositionReader{}, sender, approver)

	_, err := mgr.Mint(context.Background(), MintParams{
		Token0:         wrappedAddr,
		Token1:         tokenB,
		Fee:            3000,
		TickLower:      -600,
		TickUpper:      600,
		Amount0Desired: big.NewInt(5000),
		Amount1Desired: big.NewInt(2000),
		UseNative:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(approver.tokens) != 1 || approver.tokens[0] != tokenB {
		t.Fatalf("native leg must not be approved, approvals: %v", approver.tokens)
	}
	if sender.sent[0].value == nil || sender.sent[0].value.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("native leg must ride as tx value, got %v", sender.sent[0].value)
	}

	mgrABI, err := ManagerABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	method, err := mgrABI.MethodById(sender.sent[0].data[:4])
	if err != nil {
		t.Fatalf("method lookup: %v", err)
	}
	if method.Name != "multicall" {
		t.Fatalf("native mint must batch through multicall, got %s", method.Name)
	}
}

func TestMintNativeWithoutWrappedTokenSendsNothing(t *testing.T) {
	sender := &fakeTxSender{}
	approver := &fakeApprover{}
	mgr := newTestManager(&fakePositionReader{}, sender, approver)

	_, err := mgr.Mint(context.Background(), MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            3000,
		TickLower:      -600,
		TickUpper:      600,
		Amount0Desired: big.NewInt(5000),
		Amount1Desired: big.NewInt(2000),
		UseNative:      true,
	})
	if err == nil {
		t.Fatalf("expected native leg mismatch error")
	}
	if len(approver.tokens) != 0 {
		t.Fatalf("mismatched native leg must not approve, approvals: %v", approver.tokens)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("mismatched native leg must produce zero transactions")
	}
}

func TestAmountMinAppliesSlippage(t *testing.T) {
	mgr := newTestManager(&fakePositionReader{}, &fakeTxSender{}, &fakeApprover{})

	got := mgr.amountMin(big.NewInt(1000))
	if got.Cmp(big.NewInt(850)) != 0 {
		t.Fatalf("amountMin(1000) at 15%% = %s, want 850", got)
	}
	if mgr.amountMin(big.NewInt(0)).Sign() != 0 {
		t.Fatalf("amountMin(0) must be 0")
	}
	if mgr.amountMin(nil).Sign() != 0 {
		t.Fatalf("amountMin(nil) must be 0")
	}
}

func TestIncreaseRejectsForeignOwner(t *testing.T) {
	reader := &fakePositionReader{owner: strangerAddr, exists: true, states: []model.PositionState{liveState(500)}}
	sender := &fakeTxSender{}
	mgr := newTestManager(reader, sender, &fakeApprover{})

	_, err := mgr.Increase(context.Background(), 101, big.NewInt(100), big.NewInt(100))
	if !errors.Is(err, fault.ErrOwnershipMismatch) {
		t.Fatalf("expected ownership mismatch, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("ownership mismatch must produce zero transactions")
	}
}

func TestDecreaseRejectsExcessLiquidity(t *testing.T) {
	reader := &fakePositionReader{owner: ownerAddr, exists: true, states: []model.PositionState{liveState(500)}}
	sender := &fakeTxSender{}
	mgr := newTestManager(reader, sender, &fakeApprover{})

	_, err := mgr.Decrease(context.Background(), 101, big.NewInt(600))
	if err == nil {
		t.Fatalf("expected excess liquidity rejection")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("excess liquidity must produce zero transactions")
	}
}

func TestDecreaseWithinLiquidity(t *testing.T) {
	reader := &fakePositionReader{owner: ownerAddr, exists: true, states: []model.PositionState{liveState(500)}}
	sender := &fakeTxSender{}
	mgr := newTestManager(reader, sender, &fakeApprover{})

	if _, err := mgr.Decrease(context.Background(), 101, big.NewInt(500)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one decrease tx, got %d", len(sender.sent))
	}
}

func TestBurnRequiresEmptyPosition(t *testing.T) {
	state := liveState(500)
	reader := &fakePositionReader{owner: ownerAddr, exists: true, states: []model.PositionState{state}}
	sender := &fakeTxSender{}
	mgr := newTestManager(reader, sender, &fakeApprover{})

	if _, err := mgr.Burn(context.Background(), 101); err == nil {
		t.Fatalf("burn with live liquidity must be rejected")
	}

	owed := emptyState()
	owed.TokensOwed0 = big.NewInt(9)
	reader = &fakePositionReader{owner: ownerAddr, exists: true, states: []model.PositionState{owed}}
	mgr = newTestManager(reader, sender, &fakeApprover{})

	if _, err := mgr.Burn(context.Background(), 101); err == nil {
		t.Fatalf("burn with uncollected fees must be rejected")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("rejected burns must produce zero transactions")
	}
}

func TestBurnNonexistentPosition(t *testing.T) {
	reader := &fakePositionReader{exists: false}
	sender := &fakeTxSender{}
	mgr := newTestManager(reader, sender, &fakeApprover{})

	_, err := mgr.Burn(context.Background(), 404)
	if !errors.Is(err, fault.ErrOwnershipMismatch) {
		t.Fatalf("expected ownership error for missing position, got %v", err)
	}
}

func TestCloseRunsFullSequence(t *testing.T) {
	drained := emptyState()
	drained.TokensOwed0 = big.NewInt(33)
	reader := &fakePositionReader{
		owner:  ownerAddr,
		exists: true,
		states: []model.PositionState{
			liveState(500), // close precheck
			liveState(500), // decrease precheck
			drained,        // collect precheck
			emptyState(),   // burn precheck
		},
	}
	sender := &fakeTxSender{}
	mgr := newTestManager(reader, sender, &fakeApprover{})

	steps, err := mgr.Close(context.Background(), 101)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []CloseStep{CloseStepDecrease, CloseStepCollect, CloseStepBurn}
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(steps))
	}
	for i, step := range steps {
		if step.Step != want[i] {
			t.Fatalf("step %d = %s, want %s", i, step.Step, want[i])
		}
		if step.Err != nil {
			t.Fatalf("step %s failed: %v", step.Step, step.Err)
		}
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 sequential txs, got %d", len(sender.sent))
	}
}

func TestCloseReportsFailedStep(t *testing.T) {
	reader := &fakePositionReader{
		owner:  ownerAddr,
		exists: true,
		states: []model.PositionState{liveState(500)},
	}
	sender := &fakeTxSender{err: errors.New("execution reverted")}
	mgr := newTestManager(reader, sender, &fakeApprover{})

	steps, err := mgr.Close(context.Background(), 101)
	if err == nil {
		t.Fatalf("expected close failure")
	}
	if len(steps) != 1 || steps[0].Step != CloseStepDecrease {
		t.Fatalf("failure must name the decrease step, got %+v", steps)
	}
	if steps[0].Err == nil {
		t.Fatalf("failed step must carry its error")
	}
}

func TestExtractMintedTokenID(t *testing.T) {
	got, err := ExtractMintedTokenID(mintReceipt(12345), contractAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 12345 {
		t.Fatalf("token id mismatch: %d", got)
	}
}

func TestExtractMintedTokenIDIgnoresOtherLogs(t *testing.T) {
	receipt := mintReceipt(1)
	receipt.Logs[0].Address = tokenA // not the position contract

	if _, err := ExtractMintedTokenID(receipt, contractAddr); err == nil {
		t.Fatalf("expected missing transfer event error")
	}
}
