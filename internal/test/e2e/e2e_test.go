package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arkade-os/swapd/internal/config"
	"github.com/arkade-os/swapd/internal/core/application"
	"github.com/arkade-os/swapd/internal/core/domain"
	httpservice "github.com/arkade-os/swapd/internal/interface/http"
	"github.com/arkade-os/swapd/pkg/auth"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

const (
	custody   = "swapd:custody"
	routerAcc = "swapd:router"
)

var pool = strings.Repeat("01", 32)

type daemon struct {
	url    string
	client *http.Client
}

func startDaemon(t *testing.T) *daemon {
	datadir := t.TempDir()
	poolsFile := filepath.Join(datadir, "pools.toml")
	require.NoError(t, os.WriteFile(poolsFile, []byte(`
[[pools]]
id = "`+pool+`"
tokens = ["usdc", "xlm"]
reserves = ["10000", "10000"]
fee_bps = 30
`), 0o600))

	port := freePort(t)
	cfg := &config.Config{
		Datadir:          datadir,
		Port:             port,
		DbType:           "badger",
		DbDir:            filepath.Join(datadir, "db"),
		PurgeInterval:    time.Hour,
		CustodyAccount:   custody,
		RouterType:       "static",
		RouterAccount:    routerAcc,
		PoolsFile:        poolsFile,
		RejectZeroOutput: true,
	}
	svc, err := httpservice.NewService("e2e", httpservice.Config{
		Port:           port,
		RequestTimeout: 10 * time.Second,
	}, cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)

	d := &daemon{
		url:    fmt.Sprintf("http://127.0.0.1:%d", port),
		client: &http.Client{Timeout: 5 * time.Second},
	}
	require.Eventually(t, func() bool {
		resp, err := d.client.Get(d.url + "/healthz")
		if err != nil {
			return false
		}
		// nolint
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	return d
}

func freePort(t *testing.T) uint32 {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return uint32(port)
}

func (d *daemon) call(t *testing.T, method, path string, body any, out any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, d.url+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	require.NoError(t, err)
	// nolint
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(buf))
	if out != nil {
		require.NoError(t, json.Unmarshal(buf, out))
	}
}

func (d *daemon) signed(t *testing.T, path string, key *btcec.PrivateKey, op string, args any) {
	t.Helper()
	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	d.call(t, http.MethodGet, "/v1/nonces/"+auth.PubKey(key), nil, &nonce)
	proof, err := auth.Sign(key, op, nonce.Nonce+1, args)
	require.NoError(t, err)
	d.call(t, http.MethodPost, path, map[string]any{"args": args, "proof": proof}, nil)
}

func (d *daemon) balance(t *testing.T, token, account string) string {
	t.Helper()
	var resp struct {
		Balance domain.Amount `json:"balance"`
	}
	d.call(t, http.MethodGet, fmt.Sprintf("/v1/tokens/%s/balances/%s", token, account), nil, &resp)
	return resp.Balance.String()
}

func newKey(t *testing.T) *btcec.PrivateKey {
	key, err := auth.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func TestSettlementOverHTTP(t *testing.T) {
	d := startDaemon(t)
	admin, operator, wallet := newKey(t), newKey(t), newKey(t)
	adminId := domain.AccountId(auth.PubKey(admin))
	operatorId := domain.AccountId(auth.PubKey(operator))
	walletId := domain.AccountId(auth.PubKey(wallet))

	d.call(t, http.MethodPost, "/v1/admin/init", map[string]any{"admin": adminId}, nil)
	d.signed(t, "/v1/admin/operator", admin, application.OpSetOperator,
		application.SetOperatorArgs{Operator: operatorId})
	d.signed(t, "/v1/admin/proxy-wallets", admin, application.OpRegisterProxyWallet,
		application.RegisterProxyWalletArgs{Wallet: walletId, Token: "xlm"})
	d.signed(t, "/v1/admin/swap-router", admin, application.OpSetSwapRouter,
		application.SetSwapRouterArgs{Router: routerAcc})
	d.signed(t, "/v1/tokens/usdc/mint", admin, application.OpMint,
		application.MintArgs{Token: "usdc", To: walletId, Amount: domain.NewAmount(1000)})
	d.signed(t, "/v1/tokens/usdc/approve", wallet, application.OpApprove,
		application.ApproveArgs{
			Token: "usdc", Owner: walletId, Spender: custody, Amount: domain.NewAmount(1000),
		})

	var memo struct {
		Memo domain.Memo `json:"memo"`
	}
	d.call(t, http.MethodPost, "/v1/memos", map[string]any{"user": "bob", "token": "xlm"}, &memo)

	var txHash domain.TxHash
	txHash[31] = 1
	d.signed(t, "/v1/requests", operator, application.OpAddRequest, application.AddRequestArgs{
		Operator: operatorId,
		Wallet:   walletId,
		TxHash:   txHash,
		OpId:     domain.NewOpId(7),
		TokenIn:  "usdc",
		AmountIn: domain.NewAmount(100),
		Memo:     memo.Memo,
	})

	var pending struct {
		Requests []domain.SwapRequest `json:"requests"`
	}
	d.call(t, http.MethodGet, "/v1/destinations/bob/requests", nil, &pending)
	require.Len(t, pending.Requests, 1)
	require.Equal(t, domain.TokenId("xlm"), pending.Requests[0].TokenOut)
	require.Equal(t, "100", d.balance(t, "usdc", custody))

	poolId, err := domain.ParsePoolId(pool)
	require.NoError(t, err)
	d.signed(t, "/v1/requests/settle", operator, application.OpSettle, application.SettleArgs{
		Operator:    operatorId,
		Destination: "bob",
		OpId:        domain.NewOpId(7),
		Route: domain.Route{
			{Tokens: []domain.TokenId{"usdc", "xlm"}, PoolId: poolId, TokenOut: "xlm"},
		},
		MinOut: domain.NewAmount(95),
	})

	require.Equal(t, "98", d.balance(t, "xlm", "bob"))
	require.Equal(t, "900", d.balance(t, "usdc", string(walletId)))

	var completed struct {
		Requests []domain.CompletedSwapRequest `json:"requests"`
	}
	d.call(t, http.MethodGet, "/v1/destinations/bob/completed?page=0", nil, &completed)
	require.Len(t, completed.Requests, 1)
	require.Equal(t, "98", completed.Requests[0].AmountOut.String())

	var destinations struct {
		Destinations []domain.AccountId `json:"destinations"`
	}
	d.call(t, http.MethodGet, "/v1/destinations", nil, &destinations)
	require.Equal(t, []domain.AccountId{"bob"}, destinations.Destinations)

	// events are counted asynchronously once committed
	require.Eventually(t, func() bool {
		req, err := http.NewRequest(http.MethodGet, d.url+"/metrics", nil)
		if err != nil {
			return false
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return false
		}
		// nolint
		defer resp.Body.Close()
		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		return strings.Contains(
			string(buf), `swapd_ledger_events_total{type="swap_request_settled"} 1`,
		)
	}, 5*time.Second, 50*time.Millisecond)
}
