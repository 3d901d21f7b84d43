package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"blockchain-explorer/internal/explorer"
	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/scheduler"

	"github.com/rs/zerolog"
)

// APIHandlers exposes the explorer operations over HTTP.
type APIHandlers struct {
	explorer *explorer.Explorer
	logger   *zerolog.Logger
}

func NewAPIHandlers(ex *explorer.Explorer, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{explorer: ex, logger: logger}
}

type transactionRow struct {
	models.TransactionRecord
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

type pageResponse struct {
	Page         int               `json:"page"`
	PageSize     int               `json:"pageSize"`
	TotalPages   int               `json:"totalPages"`
	TotalRecords int               `json:"totalRecords"`
	SearchTerm   string            `json:"searchTerm"`
	Sort         models.SortConfig `json:"sort"`
	Transactions []transactionRow  `json:"transactions"`
}

type searchRequest struct {
	Term string `json:"term"`
}

type sortRequest struct {
	Key string `json:"key"`
}

type walletRequest struct {
	Address string `json:"address"`
}

func (h *APIHandlers) toPageResponse(view explorer.PageView) pageResponse {
	rows := make([]transactionRow, 0, len(view.Records))
	for _, rec := range view.Records {
		rows = append(rows, h.row(rec))
	}
	return pageResponse{
		Page:         view.Page,
		PageSize:     view.PageSize,
		TotalPages:   view.TotalPages,
		TotalRecords: view.TotalRecords,
		SearchTerm:   view.SearchTerm,
		Sort:         view.Sort,
		Transactions: rows,
	}
}

func (h *APIHandlers) row(rec models.TransactionRecord) transactionRow {
	return transactionRow{TransactionRecord: rec, ExplorerURL: h.explorer.ExplorerURL(rec.ID)}
}

func (h *APIHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		respondJSON(w, http.StatusOK, h.toPageResponse(h.explorer.CurrentPage()))
		return
	}

	page, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	respondJSON(w, http.StatusOK, h.toPageResponse(h.explorer.Page(page)))
}

func (h *APIHandlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	// ids are matched exactly as stored; some rows carry non-hash ids
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "transaction id cannot be empty")
		return
	}

	rec, ok := h.explorer.Transaction(id)
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	respondJSON(w, http.StatusOK, h.row(rec))
}

func (h *APIHandlers) setSearchTerm(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.toPageResponse(h.explorer.SetSearchTerm(req.Term)))
}

func (h *APIHandlers) setSortKey(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.explorer.SetSortKey(req.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.toPageResponse(view))
}

func (h *APIHandlers) refreshNow(w http.ResponseWriter, _ *http.Request) {
	err := h.explorer.RefreshNow()
	switch {
	case err == nil:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
	case errors.Is(err, scheduler.ErrRefreshInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().
			Err(err).
			Msg("Manual refresh rejected")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (h *APIHandlers) connectWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.explorer.ConnectWallet(r.Context(), req.Address)
	if err != nil {
		if errors.Is(err, explorer.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().
			Err(err).
			Str("address", req.Address).
			Msg("Wallet connection failed")
		writeError(w, http.StatusInternalServerError, "failed to connect wallet")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *APIHandlers) getWallet(w http.ResponseWriter, _ *http.Request) {
	session, ok := h.explorer.Wallet()
	if !ok {
		writeError(w, http.StatusNotFound, "no wallet connected")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *APIHandlers) disconnectWallet(w http.ResponseWriter, _ *http.Request) {
	h.explorer.DisconnectWallet()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandlers) getStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.explorer.Stats())
}

func (h *APIHandlers) getStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.explorer.Status())
}
