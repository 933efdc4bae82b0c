package model

// Operation identifies one lifecycle or claim action for gas tables and
// history records.
type Operation string

const (
	OpApprove  Operation = "approve"
	OpMint     Operation = "mint"
	OpIncrease Operation = "increase_liquidity"
	OpDecrease Operation = "decrease_liquidity"
	OpCollect  Operation = "collect"
	OpBurn     Operation = "burn"
	OpClaim    Operation = "claim_rewards"
)

// OperationStatus is the durable outcome of a submitted operation.
type OperationStatus string

const (
	OperationConfirmed OperationStatus = "confirmed"
	OperationReverted  OperationStatus = "reverted"
	OperationFailed    OperationStatus = "failed"
	OperationUnknown   OperationStatus = "unknown"
)

// OperationRecord is one row of the local operation history.
type OperationRecord struct {
	ID         string          `json:"id"`
	Op         Operation       `json:"op"`
	Address    string          `json:"address"`
	TokenID    uint64          `json:"token_id,omitempty"`
	TxHash     string          `json:"tx_hash,omitempty"`
	Status     OperationStatus `json:"status"`
	GasUsed    uint64          `json:"gas_used,omitempty"`
	ErrorClass string          `json:"error_class,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  string          `json:"created_at"`
}
