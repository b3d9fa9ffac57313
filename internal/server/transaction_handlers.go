package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/botcharts/internal/model"
	"github.com/rickgao/botcharts/internal/transactions"
)

func (s *Server) saveTransactions(c *gin.Context) {
	if s.deps.Transactions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "transaction journal disabled")
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	txs, err := transactions.Decode(body)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := s.deps.Transactions.Upsert(c.Request.Context(), txs)
	if err != nil {
		s.logger.Error("save transactions failed", "count", len(txs), "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to save transactions")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"count": len(ids),
		"ids":   ids,
	})
}

func (s *Server) listTransactions(c *gin.Context) {
	if s.deps.Transactions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "transaction journal disabled")
		return
	}

	opts := transactions.ListOptions{
		UserID: c.Query("loginid"),
		RunID:  c.Query("run_id"),
	}
	if opts.UserID == "" {
		opts.UserID = c.Query("user_id")
	}
	if opts.UserID == "" {
		errorJSON(c, http.StatusBadRequest, transactions.ErrMissingUser.Error())
		return
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > transactions.MaxLimit {
			errorJSON(c, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", transactions.MaxLimit))
			return
		}
		opts.Limit = limit
	}
	if v := c.Query("since"); v != "" {
		since, err := strconv.ParseInt(v, 10, 64)
		if err != nil || since < 0 {
			errorJSON(c, http.StatusBadRequest, "since must be a transaction id")
			return
		}
		opts.SinceID = since
	}

	txs, err := s.deps.Transactions.List(c.Request.Context(), opts)
	if err != nil {
		if errors.Is(err, transactions.ErrMissingUser) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("list transactions failed", "user_id", opts.UserID, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	c.JSON(http.StatusOK, txs)
}
