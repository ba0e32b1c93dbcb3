package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// VaultABI is the ABI of the token vault contract holding the parties'
// seed-derived accounts.
const VaultABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"}
		],
		"name": "accountExists",
		"outputs": [
			{"internalType": "bool", "name": "", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"},
			{"internalType": "string", "name": "seed", "type": "string"}
		],
		"name": "createAccount",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "from", "type": "address"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Vault is a Go binding around the token vault contract.
type Vault struct {
	VaultCaller
	VaultTransactor
}

// VaultCaller is a read-only binding to the vault contract.
type VaultCaller struct {
	contract *bind.BoundContract
}

// VaultTransactor is a write-only binding to the vault contract.
type VaultTransactor struct {
	contract *bind.BoundContract
}

// NewVault creates a new instance of Vault, bound to a specific deployed contract.
func NewVault(address common.Address, backend bind.ContractBackend) (*Vault, error) {
	parsed, err := abi.JSON(strings.NewReader(VaultABI))
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(address, parsed, backend, backend, backend)
	return &Vault{
		VaultCaller:     VaultCaller{contract: contract},
		VaultTransactor: VaultTransactor{contract: contract},
	}, nil
}

// AccountExists is a free data retrieval call binding the contract method.
//
// Solidity: function accountExists(address account) view returns(bool)
func (c *VaultCaller) AccountExists(opts *bind.CallOpts, account common.Address) (bool, error) {
	var out []interface{}
	err := c.contract.Call(opts, &out, "accountExists", account)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// BalanceOf is a free data retrieval call binding the contract method.
//
// Solidity: function balanceOf(address account) view returns(uint256)
func (c *VaultCaller) BalanceOf(opts *bind.CallOpts, account common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.contract.Call(opts, &out, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// CreateAccount is a paid mutator transaction binding the contract method.
//
// Solidity: function createAccount(address account, string seed) returns()
func (t *VaultTransactor) CreateAccount(opts *bind.TransactOpts, account common.Address, seed string) (*types.Transaction, error) {
	return t.contract.Transact(opts, "createAccount", account, seed)
}

// Transfer is a paid mutator transaction binding the contract method.
//
// Solidity: function transfer(address from, address to, uint256 amount) returns()
func (t *VaultTransactor) Transfer(opts *bind.TransactOpts, from common.Address, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "transfer", from, to, amount)
}
