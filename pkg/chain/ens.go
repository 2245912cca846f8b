package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNameNotFound はENSレコードが存在しないことを表す。
var ErrNameNotFound = errors.New("ens name not found")

// ensRegistry はmainnetのENSレジストリのアドレス。
var ensRegistry = common.HexToAddress("0x00000000000C2E074eC69A0bFb2997BA6C7d2e1e")

var (
	selectorResolver = crypto.Keccak256([]byte("resolver(bytes32)"))[:4]
	selectorAddr     = crypto.Keccak256([]byte("addr(bytes32)"))[:4]
	selectorName     = crypto.Keccak256([]byte("name(bytes32)"))[:4]
)

// ENS はENSレジストリを用いた正引き・逆引きを行う。
type ENS struct {
	client *Client
}

// NewENS はmainnetに接続したClientを用いるENSリゾルバを生成する。
func NewENS(client *Client) *ENS {
	return &ENS{client: client}
}

// ResolveName はENS名をアドレスに解決する。
func (e *ENS) ResolveName(ctx context.Context, name string) (string, error) {
	name = NormalizeName(name)
	if !IsName(name) {
		return "", fmt.Errorf("%w: %q はENS名ではありません", ErrNameNotFound, name)
	}
	b, err := e.client.backend()
	if err != nil {
		return "", err
	}

	node := NameHash(name)
	resolver, err := resolverOf(ctx, b, node)
	if err != nil {
		return "", err
	}
	out, err := b.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: calldata(selectorAddr, node)}, nil)
	if err != nil {
		return "", fmt.Errorf("addr()の呼び出しに失敗: %w", err)
	}
	addr, err := decodeAddress(out)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// LookupAddress はアドレスの逆引きレコードからENS名を取得する。
// 逆引き結果は正引きで同じアドレスに戻ることを確認する。
func (e *ENS) LookupAddress(ctx context.Context, address string) (string, error) {
	if !ValidAddress(address) {
		return "", fmt.Errorf("%w: %q はアドレスではありません", ErrNameNotFound, address)
	}
	b, err := e.client.backend()
	if err != nil {
		return "", err
	}

	addr := common.HexToAddress(address)
	node := NameHash(strings.ToLower(addr.Hex()[2:]) + ".addr.reverse")
	resolver, err := resolverOf(ctx, b, node)
	if err != nil {
		return "", err
	}
	out, err := b.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: calldata(selectorName, node)}, nil)
	if err != nil {
		return "", fmt.Errorf("name()の呼び出しに失敗: %w", err)
	}
	name, err := decodeString(out)
	if err != nil {
		return "", err
	}

	forward, err := e.ResolveName(ctx, name)
	if err != nil {
		return "", err
	}
	if !SameAddress(forward, addr.Hex()) {
		return "", fmt.Errorf("%w: %s の正引き結果が一致しません", ErrNameNotFound, name)
	}
	return name, nil
}

// NameHash はEIP-137のnamehashを計算する。
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = common.BytesToHash(crypto.Keccak256(node[:], label))
	}
	return node
}

// NormalizeName はENS名を比較可能な形に正規化する。
// UTS-46の完全な正規化は行わず、小文字化と空白除去のみ行う。
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsName はsがアドレスではなくENS名の形をしているかどうかを判定する。
func IsName(s string) bool {
	if s == "" || ValidAddress(s) {
		return false
	}
	if !strings.Contains(s, ".") || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	return !strings.Contains(s, "..")
}

// resolverOf はレジストリからnodeのリゾルバアドレスを取得する。
func resolverOf(ctx context.Context, b backend, node common.Hash) (common.Address, error) {
	out, err := b.CallContract(ctx, ethereum.CallMsg{To: &ensRegistry, Data: calldata(selectorResolver, node)}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolver()の呼び出しに失敗: %w", err)
	}
	return decodeAddress(out)
}

// calldata はセレクタとnodeからeth_callの入力を組み立てる。
func calldata(selector []byte, node common.Hash) []byte {
	data := make([]byte, 0, len(selector)+common.HashLength)
	data = append(data, selector...)
	return append(data, node[:]...)
}

// decodeAddress はABIエンコードされたaddressを取り出す。ゼロアドレスは未登録とみなす。
func decodeAddress(out []byte) (common.Address, error) {
	if len(out) < common.HashLength {
		return common.Address{}, ErrNameNotFound
	}
	addr := common.BytesToAddress(out[common.HashLength-common.AddressLength : common.HashLength])
	if addr == (common.Address{}) {
		return common.Address{}, ErrNameNotFound
	}
	return addr, nil
}

// decodeString はABIエンコードされたstringを取り出す。空文字は未登録とみなす。
func decodeString(out []byte) (string, error) {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		return "", err
	}
	values, err := abi.Arguments{{Type: stringType}}.Unpack(out)
	if err != nil || len(values) == 0 {
		return "", ErrNameNotFound
	}
	name, ok := values[0].(string)
	if !ok || name == "" {
		return "", ErrNameNotFound
	}
	return name, nil
}
