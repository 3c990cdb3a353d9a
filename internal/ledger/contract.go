package ledger

import (
	"context"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ProvenanceABI is the read-only surface of the deployed provenance contract.
const ProvenanceABI = `[
  {"inputs":[{"internalType":"string","name":"_productId","type":"string"}],
   "name":"getProduct",
   "outputs":[
     {"internalType":"string","name":"productId","type":"string"},
     {"internalType":"uint256","name":"timestamp","type":"uint256"},
     {"internalType":"string","name":"totalCarbon","type":"string"},
     {"internalType":"string","name":"carbonOffset","type":"string"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"_productId","type":"string"}],
   "name":"getStageCount",
   "outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[
     {"internalType":"string","name":"_productId","type":"string"},
     {"internalType":"uint256","name":"_index","type":"uint256"}],
   "name":"getStage",
   "outputs":[
     {"internalType":"string","name":"stage","type":"string"},
     {"internalType":"string","name":"location","type":"string"},
     {"internalType":"string","name":"verification","type":"string"},
     {"internalType":"string","name":"carbonFootprint","type":"string"},
     {"internalType":"string","name":"additionalInfo","type":"string"}],
   "stateMutability":"view","type":"function"}
]`

const (
	methodGetProduct    = "getProduct"
	methodGetStageCount = "getStageCount"
	methodGetStage      = "getStage"
)

// Caller executes a read-only message call. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContractClient queries the provenance contract with eth_call.
// It holds no per-request state and is safe for concurrent use.
type ContractClient struct {
	caller  Caller
	address common.Address
	abi     abi.ABI
}

// NewContractClient binds the provenance ABI to the contract at address.
func NewContractClient(caller Caller, address string) (*ContractClient, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.WithHint(
			errors.Newf("invalid contract address %q", address),
			"set ledger.contract_address (or CONTRACT_ADDRESS) to a 0x-prefixed 20-byte hex address",
		)
	}
	parsed, err := abi.JSON(strings.NewReader(ProvenanceABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse provenance ABI")
	}
	return &ContractClient{
		caller:  caller,
		address: common.HexToAddress(address),
		abi:     parsed,
	}, nil
}

// Dial connects to the JSON-RPC endpoint at rpcURL and binds the contract.
// The returned *ethclient.Client is owned by the caller and must be closed.
func Dial(ctx context.Context, rpcURL, address string) (*ContractClient, *ethclient.Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrConnection, "dial %s: %v", redactURL(rpcURL), err)
	}
	cc, err := NewContractClient(ec, address)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return cc, ec, nil
}

// Address returns the checksummed contract address.
func (c *ContractClient) Address() string {
	return c.address.Hex()
}

// GetProduct implements Client.
func (c *ContractClient) GetProduct(ctx context.Context, productID string) (*ProductRecord, error) {
	out, err := c.call(ctx, methodGetProduct, productID)
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, invalidf(methodGetProduct, "expected 4 outputs, got %d", len(out))
	}

	rec := &ProductRecord{}
	var ok bool
	if rec.ProductID, ok = out[0].(string); !ok {
		return nil, invalidf(methodGetProduct, "productId has type %T", out[0])
	}
	ts, ok := out[1].(*big.Int)
	if !ok || ts == nil {
		return nil, invalidf(methodGetProduct, "timestamp has type %T", out[1])
	}
	if ts.Sign() < 0 || !ts.IsUint64() {
		return nil, invalidf(methodGetProduct, "timestamp %s out of range", ts)
	}
	rec.Timestamp = ts.Uint64()
	if rec.TotalCarbon, ok = out[2].(string); !ok {
		return nil, invalidf(methodGetProduct, "totalCarbon has type %T", out[2])
	}
	if rec.CarbonOffset, ok = out[3].(string); !ok {
		return nil, invalidf(methodGetProduct, "carbonOffset has type %T", out[3])
	}
	return rec, nil
}

// GetStageCount implements Client.
func (c *ContractClient) GetStageCount(ctx context.Context, productID string) (uint64, error) {
	out, err := c.call(ctx, methodGetStageCount, productID)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, invalidf(methodGetStageCount, "expected 1 output, got %d", len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok || n == nil {
		return 0, invalidf(methodGetStageCount, "count has type %T", out[0])
	}
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, invalidf(methodGetStageCount, "count %s out of range", n)
	}
	return n.Uint64(), nil
}

// GetStage implements Client.
func (c *ContractClient) GetStage(ctx context.Context, productID string, index uint64) (*StageRecord, error) {
	out, err := c.call(ctx, methodGetStage, productID, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, invalidf(methodGetStage, "expected 5 outputs, got %d", len(out))
	}

	fields := make([]string, 5)
	for i, v := range out {
		s, ok := v.(string)
		if !ok {
			return nil, invalidf(methodGetStage, "output %d has type %T", i, v)
		}
		fields[i] = s
	}
	return &StageRecord{
		Stage:           fields[0],
		Location:        fields[1],
		Verification:    fields[2],
		CarbonFootprint: fields[3],
		AdditionalInfo:  fields[4],
	}, nil
}

// call packs, executes and unpacks one view call against the latest block.
func (c *ContractClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
	if err != nil {
		return nil, classifyCallError(ctx, method, err)
	}
	if len(raw) == 0 {
		// An empty return means there is no code at the address (or the
		// node pruned it); either way the answer cannot be decoded.
		return nil, invalidf(method, "empty return data from %s", c.address.Hex())
	}

	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, invalidf(method, "decode: %v", err)
	}
	return out, nil
}

// classifyCallError maps an eth_call failure onto the package sentinels.
// A JSON-RPC error object means the node answered: a revert is the
// contract's way of saying the record does not exist.
func classifyCallError(ctx context.Context, method string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ctxErr, "eth_call %s", method)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Wrapf(err, "eth_call %s", method)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if strings.Contains(strings.ToLower(rpcErr.Error()), "revert") {
			return errors.WithSecondaryError(
				errors.Wrapf(ErrNotFound, "eth_call %s reverted: %v", method, err), err)
		}
		return errors.WithSecondaryError(
			errors.Wrapf(ErrInvalidResponse, "eth_call %s rpc error %d: %v", method, rpcErr.ErrorCode(), err), err)
	}

	return errors.WithSecondaryError(
		errors.Wrapf(ErrConnection, "eth_call %s: %v", method, err), err)
}

func invalidf(method, format string, args ...any) error {
	return errors.Wrapf(ErrInvalidResponse, "%s: "+format, append([]any{method}, args...)...)
}

// redactURL strips the path from provider URLs, which usually carry an API key.
func redactURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return u[:i+3+j] + "/..."
		}
	}
	return u
}
