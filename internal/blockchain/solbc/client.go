// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/amount"
	"github.com/rovshanmuradov/solana-portfolio/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
)

const (
	solDecimals         = 9
	DefaultHistoryLimit = 25
	maxHistoryLimit     = 1000
)

// Client reads wallet state from Solana through the node pool.
type Client struct {
	rpc        *rpc.Client
	logger     *zap.Logger
	commitment solanarpc.CommitmentType
}

// NewClient wraps an RPC pool.
func NewClient(pool *rpc.Client, logger *zap.Logger) *Client {
	return &Client{
		rpc:        pool,
		logger:     logger.Named("solbc-client"),
		commitment: solanarpc.CommitmentConfirmed,
	}
}

// GetBalance returns the SOL balance of owner in lamports.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := c.rpc.Execute(ctx, "getBalance", func(node *solanarpc.Client) error {
		res, err := node.GetBalance(ctx, owner, c.commitment)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("getBalance: %w", rpc.ErrInvalidResponse)
		}
		lamports = res.Value
		return nil
	})
	if err != nil {
		c.logger.Error("GetBalance error", zap.String("owner", owner.String()), zap.Error(err))
		return 0, err
	}
	return lamports, nil
}

// GetTokenBalance returns owner's balance of mint held in its associated
// token account. A missing account is a zero balance.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (amount.TokenAmount, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return amount.TokenAmount{}, fmt.Errorf("derive associated token account: %w", err)
	}

	var ui *solanarpc.UiTokenAmount
	err = c.rpc.Execute(ctx, "getTokenAccountBalance", func(node *solanarpc.Client) error {
		res, err := node.GetTokenAccountBalance(ctx, ata, c.commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return fmt.Errorf("getTokenAccountBalance: %w", rpc.ErrInvalidResponse)
		}
		ui = res.Value
		return nil
	})
	if err != nil {
		if rpc.IsAccountNotFoundError(err) {
			c.logger.Debug("Token account not found, assuming zero balance",
				zap.String("owner", owner.String()),
				zap.String("mint", mint.String()))
			return amount.TokenAmountFromUint64(0, 0), nil
		}
		c.logger.Error("GetTokenBalance error", zap.String("ata", ata.String()), zap.Error(err))
		return amount.TokenAmount{}, err
	}

	raw, ok := new(big.Int).SetString(ui.Amount, 10)
	if !ok || raw.Sign() < 0 {
		return amount.TokenAmount{}, fmt.Errorf("token amount %q: %w", ui.Amount, rpc.ErrInvalidResponse)
	}
	return amount.NewTokenAmount(raw, int32(ui.Decimals)), nil
}

// TokenDecimals returns the number of decimals of mint.
func (c *Client) TokenDecimals(ctx context.Context, mint solana.PublicKey) (int, error) {
	var decimals uint8
	err := c.rpc.Execute(ctx, "getTokenSupply", func(node *solanarpc.Client) error {
		res, err := node.GetTokenSupply(ctx, mint, c.commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return fmt.Errorf("getTokenSupply: %w", rpc.ErrInvalidResponse)
		}
		decimals = res.Value.Decimals
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(decimals), nil
}

// FetchBalances queries SOL and token balances of owner.
func (c *Client) FetchBalances(ctx context.Context, owner, mint solana.PublicKey) (portfolio.Balances, error) {
	lamports, err := c.GetBalance(ctx, owner)
	if err != nil {
		return portfolio.Balances{}, fmt.Errorf("sol balance: %w", err)
	}
	tokens, err := c.GetTokenBalance(ctx, owner, mint)
	if err != nil {
		return portfolio.Balances{}, fmt.Errorf("token balance: %w", err)
	}

	sol := amount.Normalize(amount.Token(amount.TokenAmountFromUint64(lamports, solDecimals)), solDecimals)
	bitty := amount.Normalize(amount.Token(tokens), int(tokens.Decimals))
	if !sol.Valid || !bitty.Valid {
		return portfolio.Balances{}, fmt.Errorf("balances: %w", rpc.ErrInvalidResponse)
	}
	return portfolio.Balances{SOL: sol.Value, Bitty: bitty.Value}, nil
}

// LiveFetch binds FetchBalances to a wallet for the balance tracker.
func (c *Client) LiveFetch(owner, mint solana.PublicKey) portfolio.LiveFetch {
	return func(ctx context.Context) (portfolio.Balances, error) {
		return c.FetchBalances(ctx, owner, mint)
	}
}

// History returns up to limit of owner's most recent transaction signatures.
func (c *Client) History(ctx context.Context, owner solana.PublicKey, limit int) ([]activity.TxHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var sigs []*solanarpc.TransactionSignature
	err := c.rpc.Execute(ctx, "getSignaturesForAddress", func(node *solanarpc.Client) error {
		var err error
		sigs, err = node.GetSignaturesForAddressWithOpts(ctx, owner, &solanarpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: c.commitment,
		})
		return err
	})
	if err != nil {
		c.logger.Error("History error", zap.String("owner", owner.String()), zap.Error(err))
		return nil, err
	}

	entries := make([]activity.TxHistoryEntry, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		entries = append(entries, toHistoryEntry(s))
	}
	return entries, nil
}

func toHistoryEntry(s *solanarpc.TransactionSignature) activity.TxHistoryEntry {
	e := activity.TxHistoryEntry{
		Signature: s.Signature.String(),
		Slot:      s.Slot,
		Err:       DescribeTxError(s.Err),
	}
	if s.BlockTime != nil {
		bt := int64(*s.BlockTime)
		e.BlockTime = &bt
	}
	if s.Memo != nil {
		e.Memo = ParseMemo(*s.Memo)
	}
	return e
}
