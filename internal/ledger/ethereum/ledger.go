// Package ethereum anchors certificate fingerprints in an EVM registry
// contract through a JSON-RPC node.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"certify/internal/ledger"
	"certify/pkg/platform/sentinel"
)

// ErrReverted is returned when the write transaction was mined but failed.
var ErrReverted = errors.New("ledger transaction reverted")

// Config holds the node and signer settings.
type Config struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	ChainID         int64
}

type boundContract interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
}

type minedWaiter func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// Ledger writes through a keyed transactor and waits for the receipt.
type Ledger struct {
	contract boundContract
	signer   *bind.TransactOpts
	wait     minedWaiter
	close    func()
}

// Dial connects to the node and binds the registry contract.
func Dial(ctx context.Context, cfg Config) (*Ledger, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger private key: %w", err)
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("create ledger transactor: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger node: %w", err)
	}
	contract := bind.NewBoundContract(common.HexToAddress(cfg.ContractAddress), parsed, client, client, client)
	return &Ledger{
		contract: contract,
		signer:   signer,
		wait: func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
			return bind.WaitMined(ctx, client, tx)
		},
		close: client.Close,
	}, nil
}

func (l *Ledger) Close() {
	if l.close != nil {
		l.close()
	}
}

// RecordEntry submits issueCertificate and blocks until the receipt is
// mined or ctx ends. A reverted receipt is a failed write.
func (l *Ledger) RecordEntry(ctx context.Context, entry ledger.Entry) (ledger.Confirmation, error) {
	opts := *l.signer
	opts.Context = ctx

	tx, err := l.contract.Transact(&opts, methodIssue,
		entry.Identifier, entry.Fingerprint, entry.AuxiliaryPointer, entry.IssuerRef)
	if err != nil {
		return ledger.Confirmation{}, fmt.Errorf("submit ledger transaction: %w", err)
	}
	receipt, err := l.wait(ctx, tx)
	if err != nil {
		return ledger.Confirmation{}, fmt.Errorf("wait for ledger receipt %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ledger.Confirmation{}, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return ledger.Confirmation{
		TxRef:       tx.Hash().Hex(),
		BlockNumber: block,
		ConfirmedAt: time.Now().UTC(),
	}, nil
}

// ReadEntry calls getCertificate. The contract returns a zero tuple for
// unknown identifiers, which maps to sentinel.ErrNotFound.
func (l *Ledger) ReadEntry(ctx context.Context, identifier string) (ledger.Entry, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGet, identifier); err != nil {
		return ledger.Entry{}, fmt.Errorf("call %s: %w", methodGet, err)
	}
	entry, err := decodeCertificate(out)
	if err != nil {
		return ledger.Entry{}, err
	}
	if entry.IsEmpty() {
		return ledger.Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func decodeCertificate(out []interface{}) (ledger.Entry, error) {
	if len(out) != 1 {
		return ledger.Entry{}, fmt.Errorf("decode %s: expected 1 value, got %d", methodGet, len(out))
	}
	cert, ok := abi.ConvertType(out[0], new(onChainCertificate)).(*onChainCertificate)
	if !ok {
		return ledger.Entry{}, fmt.Errorf("decode %s: unexpected tuple type %T", methodGet, out[0])
	}
	return ledger.Entry{
		Identifier:       cert.QrCodeId,
		Fingerprint:      cert.CertificateHash,
		AuxiliaryPointer: cert.IpfsHash,
		IssuerRef:        cert.IssuerId,
	}, nil
}
