package solbc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-portfolio/internal/blockchain/solbc/rpc"
)

var (
	testOwner = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	testMint  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// fakeNode answers JSON-RPC calls from a method -> result/error table.
func fakeNode(t *testing.T, results map[string]string, errs map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if msg, ok := errs[req.Method]; ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32602,"message":%q}}`, req.ID, msg)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	pool, err := rpc.NewClient([]string{url}, zap.NewNop(), rpc.WithRetries(1))
	require.NoError(t, err)
	return NewClient(pool, zap.NewNop())
}

func TestFetchBalances(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"getBalance":             `{"context":{"slot":1},"value":2500000000}`,
		"getTokenAccountBalance": `{"context":{"slot":1},"value":{"amount":"1500000","decimals":6,"uiAmount":1.5,"uiAmountString":"1.5"}}`,
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.LiveFetch(testOwner, testMint)(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, 2.5, got.SOL, 1e-12)
	assert.InDelta(t, 1.5, got.Bitty, 1e-12)
}

func TestFetchBalancesMissingTokenAccount(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":1000000000}`,
	}, map[string]string{
		"getTokenAccountBalance": "Invalid param: could not find account",
	})
	defer srv.Close()

	got, err := newTestClient(t, srv.URL).FetchBalances(context.Background(), testOwner, testMint)

	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.SOL, 1e-12)
	assert.Zero(t, got.Bitty)
}

func TestFetchBalancesMalformedTokenAmount(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"getBalance":             `{"context":{"slot":1},"value":1}`,
		"getTokenAccountBalance": `{"context":{"slot":1},"value":{"amount":"12abc","decimals":6}}`,
	}, nil)
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchBalances(context.Background(), testOwner, testMint)
	assert.ErrorIs(t, err, rpc.ErrInvalidResponse)
}

func TestFetchBalancesNodeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchBalances(context.Background(), testOwner, testMint)
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	var sigA, sigB solana.Signature
	sigA[0], sigB[0] = 1, 2

	srv := fakeNode(t, map[string]string{
		"getSignaturesForAddress": fmt.Sprintf(`[
			{"signature":%q,"slot":10,"blockTime":1700000000,"err":null,"memo":"[4] Swap","confirmationStatus":"finalized"},
			{"signature":%q,"slot":11,"blockTime":null,"err":{"InstructionError":[0,{"Custom":1}]},"memo":null,"confirmationStatus":"confirmed"}
		]`, sigA.String(), sigB.String()),
	}, nil)
	defer srv.Close()

	got, err := newTestClient(t, srv.URL).History(context.Background(), testOwner, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, sigA.String(), got[0].Signature)
	assert.Equal(t, uint64(10), got[0].Slot)
	require.NotNil(t, got[0].BlockTime)
	assert.Equal(t, int64(1700000000), *got[0].BlockTime)
	assert.Equal(t, "Swap", got[0].Memo)
	assert.Empty(t, got[0].Err)

	assert.Nil(t, got[1].BlockTime)
	assert.Equal(t, "instruction 0: custom program error 1", got[1].Err)
}

func TestTokenDecimals(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"getTokenSupply": `{"context":{"slot":1},"value":{"amount":"1000000000000","decimals":6,"uiAmount":1000000,"uiAmountString":"1000000"}}`,
	}, nil)
	defer srv.Close()

	got, err := newTestClient(t, srv.URL).TokenDecimals(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, 6, got)
}
