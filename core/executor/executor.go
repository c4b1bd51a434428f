// Package executor implements the deterministic apply-block contract of
// spec.md §4.5: given a parent state and a block, produce a new state,
// a receipt per transaction, and the resulting state/receipts roots.
// Grounded on execution/adapters/vm_entry.py's feature-flagged VM bridge
// and execution/config.py's limits, and on the environment-struct idiom
// of miner/worker.go.
package executor

import (
	"errors"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/types"
	"github.com/animicaorg/animica/params"
)

// BlockEnv is the deterministic, block-scoped view handed to the VM.
type BlockEnv struct {
	Height         uint64
	Timestamp      uint64
	GasLimit       uint64
	RandomnessSeed common.Hash
}

// TxEnv is the deterministic, tx-scoped view handed to the VM.
type TxEnv struct {
	Sender   common.Address
	Nonce    uint64
	GasLimit uint64
}

// VMResult is the normalized outcome of one VM invocation, mirroring
// vm_entry.py's VmExecResult: return data, gas actually used, and the
// logs the call emitted.
type VMResult struct {
	ReturnData []byte
	GasUsed    uint64
	Logs       []types.Log
	Failed     bool
}

// VMNotAvailable mirrors vm_entry.py's VmNotAvailable: the VM feature is
// disabled or the backing engine is not wired in this build.
var VMNotAvailable = errors.New("executor: VM entry is not available")

// VM is the narrow interface the executor needs from whatever VM
// backend is configured. Every transaction, including a plain value
// transfer with empty Data, goes through RunCall; in builds without a
// real VM a failing implementation (NopVM) can be wired.
type VM interface {
	RunCall(program []byte, method string, args []byte, gasLimit uint64, benv BlockEnv, tenv TxEnv) (VMResult, error)
}

// NopVM always fails, matching vm_entry.py's behavior when the feature
// flag is off or the engine package is unavailable: every transaction,
// a plain value transfer (empty Data) included, gets a VMFailure receipt.
type NopVM struct{}

func (NopVM) RunCall(program []byte, method string, args []byte, gasLimit uint64, benv BlockEnv, tenv TxEnv) (VMResult, error) {
	return VMResult{}, VMNotAvailable
}

// Executor applies blocks against an account-state snapshot.
type Executor struct {
	limits params.Limits
	vm     VM
}

// New constructs an Executor. Pass NopVM{} when no VM backend is wired.
func New(limits params.Limits, vm VM) *Executor {
	if vm == nil {
		vm = NopVM{}
	}
	return &Executor{limits: limits, vm: vm}
}

// Result bundles the apply-block outcome (spec.md §4.5 step 3-4).
type Result struct {
	State        types.AccountState
	Receipts     []*types.Receipt
	StateRoot    common.Hash
	ReceiptsRoot common.Hash
	GasUsed      uint64
}

func cloneState(s types.AccountState) types.AccountState {
	out := make(types.AccountState, len(s))
	for addr, acc := range s {
		cp := *acc
		if acc.Balance != nil {
			cp.Balance = new(uint256.Int).Set(acc.Balance)
		}
		out[addr] = &cp
	}
	return out
}

func getAccount(state types.AccountState, addr common.Address) *types.Account {
	acc, ok := state[addr]
	if !ok {
		acc = &types.Account{Balance: uint256.NewInt(0)}
		state[addr] = acc
	}
	return acc
}

// upperBoundPrice returns the maximum per-gas price the sender could be
// charged, used for the upfront debit in spec.md §4.5 step 2b — the
// legacy gas_price, or dual's max_fee_per_gas.
func upperBoundPrice(tx *types.Transaction) (*uint256.Int, error) {
	switch tx.Fee.Kind {
	case types.FeeLegacy:
		if tx.Fee.GasPrice == nil {
			return nil, types.ErrNoFeeFields
		}
		return tx.Fee.GasPrice, nil
	case types.FeeDual:
		if tx.Fee.MaxFeePerGas == nil {
			return nil, types.ErrNoFeeFields
		}
		return tx.Fee.MaxFeePerGas, nil
	default:
		return nil, types.ErrNoFeeFields
	}
}

// applyTx applies one transaction to state in place, returning its
// receipt. It never returns an error — all failure modes are expressed
// as a non-OK receipt, per spec.md §4.5.
func (ex *Executor) applyTx(state types.AccountState, tx *types.Transaction, benv BlockEnv) *types.Receipt {
	h := tx.Hash()
	acc := getAccount(state, tx.Sender)

	if acc.Nonce != tx.Nonce {
		return &types.Receipt{TxHash: h, Status: 0, Reason: types.ReasonInvalidNonce}
	}

	priceUpper, err := upperBoundPrice(tx)
	if err != nil {
		return &types.Receipt{TxHash: h, Status: 0, Reason: types.ReasonVMFailure}
	}
	debit := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit), priceUpper)
	if acc.Balance.Cmp(debit) < 0 {
		return &types.Receipt{TxHash: h, Status: 0, Reason: types.ReasonInsufficientFunds}
	}
	acc.Balance.Sub(acc.Balance, debit)

	var (
		credited              common.Address
		transferred, newCredit bool
	)
	if to, ok := tx.Recipient(); ok && tx.Value != nil && tx.Value.Sign() > 0 {
		if acc.Balance.Cmp(tx.Value) < 0 {
			acc.Balance.Add(acc.Balance, debit) // undo gas debit, nothing else touched yet
			return &types.Receipt{TxHash: h, Status: 0, Reason: types.ReasonInsufficientFunds}
		}
		acc.Balance.Sub(acc.Balance, tx.Value)
		_, existed := state[to]
		recipient := getAccount(state, to)
		recipient.Balance.Add(recipient.Balance, tx.Value)
		credited, transferred, newCredit = to, true, !existed
	}

	tenv := TxEnv{Sender: tx.Sender, Nonce: tx.Nonce, GasLimit: tx.GasLimit}
	res, vmErr := ex.vm.RunCall(tx.Data, "", nil, tx.GasLimit, benv, tenv)

	if vmErr != nil || res.Failed {
		// Revert state delta for this tx but keep the gas debit minus
		// refund (spec.md §4.5 step 2e): refund is computed against the
		// gas the VM claims it used before failing.
		if transferred {
			recipient := state[credited]
			recipient.Balance.Sub(recipient.Balance, tx.Value)
			acc.Balance.Add(acc.Balance, tx.Value)
			if newCredit {
				delete(state, credited)
			}
		}
		refund := ex.refundFor(res.GasUsed)
		refundAmt := new(uint256.Int).Mul(uint256.NewInt(refund), priceUpper)
		acc.Balance.Add(acc.Balance, refundAmt)
		log.Debug("executor: tx failed", "hash", common.FormatHash(h), "err", vmErr)
		return &types.Receipt{TxHash: h, Status: 0, Reason: types.ReasonVMFailure, GasUsed: res.GasUsed}
	}

	refund := ex.refundFor(res.GasUsed)
	refundAmt := new(uint256.Int).Mul(uint256.NewInt(refund), priceUpper)
	acc.Balance.Add(acc.Balance, refundAmt)
	acc.Nonce++

	return &types.Receipt{
		TxHash:  h,
		Status:  1,
		Reason:  types.ReasonOK,
		GasUsed: res.GasUsed,
		Logs:    res.Logs,
	}
}

// refundFor caps the refund at refund_ratio_cap * gas_used (spec.md
// §4.5 step 2d), reusing params.Limits.RefundCap.
func (ex *Executor) refundFor(gasUsed uint64) uint64 {
	return ex.limits.RefundCap(gasUsed)
}

// ApplyBlock implements the serial apply-block contract: applies every
// tx in declared order, then commits the resulting state and receipts
// roots.
func (ex *Executor) ApplyBlock(parent types.AccountState, block *types.Block) Result {
	state := cloneState(parent)
	benv := BlockEnv{Height: block.Height, Timestamp: block.Timestamp, GasLimit: block.GasLimit, RandomnessSeed: block.RandomnessSeed}

	receipts := make([]*types.Receipt, 0, len(block.TxList))
	var gasUsed uint64
	for _, tx := range block.TxList {
		r := ex.applyTx(state, tx, benv)
		receipts = append(receipts, r)
		gasUsed += r.GasUsed
	}

	return Result{
		State:        state,
		Receipts:     receipts,
		StateRoot:    state.StateRoot(),
		ReceiptsRoot: types.ReceiptsRoot(receipts),
		GasUsed:      gasUsed,
	}
}
