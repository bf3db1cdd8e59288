package service

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/glitch-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/glitch-bridge/pkg/app/http"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the deposit history endpoints on the given chi router
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/deposits/{sourceTxHash}", h.handle(h.getDeposit))
	r.Get("/wallets/{address}/deposits", h.handle(h.listWalletDeposits))
	r.Get("/networks", h.handle(h.listNetworks))
	r.Get("/fee-payments", h.handle(h.listFeePayments))
}

// handle logs internal failures before they are hidden from the client.
func (h *HTTP) handle(fn apphttp.HandlerFunc) http.HandlerFunc {
	return apphttp.HandleError(func(w http.ResponseWriter, r *http.Request) error {
		err := fn(w, r)
		if err != nil && apperrors.IsInternalError(err) {
			h.logger.Error("Request failed",
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		return err
	})
}

func (h *HTTP) getDeposit(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.GetDeposit(r.Context(), chi.URLParam(r, "sourceTxHash"))
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *HTTP) listWalletDeposits(w http.ResponseWriter, r *http.Request) error {
	page, err := queryInt(r, "page")
	if err != nil {
		return apperrors.BadRequestError(err, "invalid page")
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return apperrors.BadRequestError(err, "invalid limit")
	}

	resp, err := h.service.ListWalletDeposits(r.Context(), chi.URLParam(r, "address"), page, limit)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *HTTP) listNetworks(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.ListNetworks(r.Context())
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *HTTP) listFeePayments(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return apperrors.BadRequestError(err, "invalid limit")
	}

	resp, err := h.service.ListFeePayments(r.Context(), r.URL.Query().Get("network"), limit)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}

// queryInt reads an optional non-negative integer query parameter; absent is 0.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
