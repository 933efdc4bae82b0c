package model

import "math/big"

// ClaimRecord is one server-attested reward claim. The signature is valid
// for exactly the (user, amount, nonce) tuple it was generated against;
// SignedAmount must be submitted on-chain verbatim.
type ClaimRecord struct {
	UserAddress  string   `json:"user_address"`
	SignedAmount *big.Int `json:"signed_amount"`
	Nonce        uint64   `json:"nonce"`
	Signature    []byte   `json:"signature"`
}

// ClaimStatus is the terminal state of one claim protocol run.
type ClaimStatus string

const (
	ClaimStatusClaimed        ClaimStatus = "claimed"
	ClaimStatusNothingToClaim ClaimStatus = "nothing_to_claim"
)

// ClaimOutcome reports the result of a claim protocol run.
type ClaimOutcome struct {
	Status ClaimStatus `json:"status"`
	Amount *big.Int    `json:"amount,omitempty"`
	Nonce  uint64      `json:"nonce,omitempty"`
	TxHash string      `json:"tx_hash,omitempty"`
}
