package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/glitch-bridge/pkg/app/errors"
	"github.com/chainsafe/glitch-bridge/pkg/deposit"
)

const serviceName = "DepositService"

// logService wraps Service with logging of every call
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the deposit Service.
// Lookups are logged at debug level, unknown records and bad input at info
// level and every other failure at error level.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{svc: svc, logger: logger}
}

func (ls *logService) done(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		fields = append(fields, zap.Error(err))
		if apperrors.Is(err, apperrors.CategoryResourceNotFound) || apperrors.Is(err, apperrors.CategoryDataError) {
			ls.logger.Info(method+" rejected", fields...)
		} else {
			ls.logger.Error(method+" failed", fields...)
		}
		return
	}
	ls.logger.Debug(method+" completed", fields...)
}

func (ls *logService) GetDeposit(ctx context.Context, sourceTxHash string) (resp *deposit.DepositResponse, err error) {
	defer func(start time.Time) {
		ls.done("GetDeposit", start, err, zap.String("source_tx_hash", sourceTxHash))
	}(time.Now())
	return ls.svc.GetDeposit(ctx, sourceTxHash)
}

func (ls *logService) ListWalletDeposits(ctx context.Context, wallet string, page, limit int) (resp *deposit.DepositPage, err error) {
	defer func(start time.Time) {
		fields := []zap.Field{zap.String("wallet", wallet), zap.Int("page", page), zap.Int("limit", limit)}
		if resp != nil {
			fields = append(fields, zap.Int("total", resp.Total))
		}
		ls.done("ListWalletDeposits", start, err, fields...)
	}(time.Now())
	return ls.svc.ListWalletDeposits(ctx, wallet, page, limit)
}

func (ls *logService) ListNetworks(ctx context.Context) (resp []*deposit.NetworkResponse, err error) {
	defer func(start time.Time) {
		ls.done("ListNetworks", start, err, zap.Int("count", len(resp)))
	}(time.Now())
	return ls.svc.ListNetworks(ctx)
}

func (ls *logService) ListFeePayments(ctx context.Context, network string, limit int) (resp []*deposit.FeePaymentResponse, err error) {
	defer func(start time.Time) {
		ls.done("ListFeePayments", start, err, zap.String("network", network), zap.Int("count", len(resp)))
	}(time.Now())
	return ls.svc.ListFeePayments(ctx, network, limit)
}
