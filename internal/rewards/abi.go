package rewards

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The deployed treasury exists in two claimRewards variants. Which one is
// live is pinned by deployment configuration; both are parsed here and
// selected at pack time.

const treasuryAmountSignatureABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "bytes", "name": "signature", "type": "bytes"}
    ],
    "name": "claimRewards",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "user", "type": "address"}],
    "name": "getClaimedAmount",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const treasuryUserNonceABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "uint256", "name": "nonce", "type": "uint256"},
      {"internalType": "bytes", "name": "signature", "type": "bytes"}
    ],
    "name": "claimRewards",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "user", "type": "address"}],
    "name": "getUserStats",
    "outputs": [
      {"internalType": "uint256", "name": "totalClaimed", "type": "uint256"},
      {"internalType": "uint256", "name": "lastNonce", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	amountSigABI     abi.ABI
	amountSigABIOnce sync.Once
	amountSigABIErr  error

	userNonceABI     abi.ABI
	userNonceABIOnce sync.Once
	userNonceABIErr  error
)

// AmountSignatureABI returns the parsed claimRewards(amount, signature)
// treasury ABI.
func AmountSignatureABI() (abi.ABI, error) {
	amountSigABIOnce.Do(func() {
		amountSigABI, amountSigABIErr = abi.JSON(strings.NewReader(treasuryAmountSignatureABIJSON))
	})
	return amountSigABI, amountSigABIErr
}

// UserNonceABI returns the parsed claimRewards(user, amount, nonce,
// signature) treasury ABI.
func UserNonceABI() (abi.ABI, error) {
	userNonceABIOnce.Do(func() {
		userNonceABI, userNonceABIErr = abi.JSON(strings.NewReader(treasuryUserNonceABIJSON))
	})
	return userNonceABI, userNonceABIErr
}
