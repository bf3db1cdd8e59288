package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/glitch-bridge/pkg/app/errors"
	"github.com/chainsafe/glitch-bridge/pkg/deposit"
	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	"github.com/chainsafe/glitch-bridge/pkg/glitch"
)

// Paging limits for list endpoints
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrInvalidWallet = errors.New("wallet is neither an EVM nor an SS58 address")

// Store is the read-only data-access interface of the deposit history API.
//
//go:generate mockery --name Store --output mocks --outpkg mocks --filename mock_store.go
type Store interface {
	GetDeposit(ctx context.Context, sourceTxHash string) (*deposit.Deposit, error)
	ListDepositsByWallet(ctx context.Context, wallet string, offset, limit int) ([]*deposit.Deposit, int, error)
	ListScanStates(ctx context.Context) ([]*deposit.ScanState, error)
	ListFeePayments(ctx context.Context, name string, limit int) ([]*deposit.FeePayment, error)
}

var _ Store = (depositstore.QueryStore)(nil)

// Service defines the deposit history queries
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename mock_service.go
type Service interface {
	GetDeposit(ctx context.Context, sourceTxHash string) (*deposit.DepositResponse, error)
	ListWalletDeposits(ctx context.Context, wallet string, page, limit int) (*deposit.DepositPage, error)
	ListNetworks(ctx context.Context) ([]*deposit.NetworkResponse, error)
	ListFeePayments(ctx context.Context, network string, limit int) ([]*deposit.FeePaymentResponse, error)
}

type depositService struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new deposit history service
func NewService(store Store, logger *zap.Logger) Service {
	return &depositService{store: store, logger: logger}
}

func (s *depositService) GetDeposit(ctx context.Context, sourceTxHash string) (*deposit.DepositResponse, error) {
	if sourceTxHash == "" {
		return nil, apperrors.BadRequestError(nil, "source tx hash required")
	}

	d, err := s.store.GetDeposit(ctx, sourceTxHash)
	if err != nil {
		if errors.Is(err, depositstore.ErrNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "deposit not found")
		}
		return nil, apperrors.DependencyFailureError(fmt.Errorf("failed to get deposit: %w", err), "deposit store unavailable")
	}
	return d.Response(), nil
}

// ListWalletDeposits pages through the deposits sent from or to wallet, newest
// first. Pages start at 1.
func (s *depositService) ListWalletDeposits(ctx context.Context, wallet string, page, limit int) (*deposit.DepositPage, error) {
	normalized, err := normalizeWallet(wallet)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid wallet address")
	}
	page, limit = clampPaging(page, limit)

	deposits, total, err := s.store.ListDepositsByWallet(ctx, normalized, (page-1)*limit, limit)
	if err != nil {
		return nil, apperrors.DependencyFailureError(fmt.Errorf("failed to list wallet deposits: %w", err), "deposit store unavailable")
	}

	out := &deposit.DepositPage{
		Deposits: make([]*deposit.DepositResponse, 0, len(deposits)),
		Page:     page,
		Limit:    limit,
		Total:    total,
	}
	for _, d := range deposits {
		out.Deposits = append(out.Deposits, d.Response())
	}
	return out, nil
}

func (s *depositService) ListNetworks(ctx context.Context) ([]*deposit.NetworkResponse, error) {
	states, err := s.store.ListScanStates(ctx)
	if err != nil {
		return nil, apperrors.DependencyFailureError(fmt.Errorf("failed to list networks: %w", err), "deposit store unavailable")
	}
	out := make([]*deposit.NetworkResponse, 0, len(states))
	for _, st := range states {
		out = append(out, st.Response())
	}
	return out, nil
}

// ListFeePayments returns the newest treasury payouts. An empty network lists all networks.
func (s *depositService) ListFeePayments(ctx context.Context, network string, limit int) ([]*deposit.FeePaymentResponse, error) {
	_, limit = clampPaging(1, limit)

	payments, err := s.store.ListFeePayments(ctx, network, limit)
	if err != nil {
		return nil, apperrors.DependencyFailureError(fmt.Errorf("failed to list fee payments: %w", err), "deposit store unavailable")
	}
	out := make([]*deposit.FeePaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, p.Response())
	}
	return out, nil
}

// normalizeWallet accepts an EVM hex address or an SS58 address.
func normalizeWallet(wallet string) (string, error) {
	if common.IsHexAddress(wallet) {
		return common.HexToAddress(wallet).Hex(), nil
	}
	if _, err := glitch.ParseAddress(wallet); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidWallet, wallet)
	}
	return wallet, nil
}

func clampPaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
