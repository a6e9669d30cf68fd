package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"devrelay/internal/infrastructure/cache/port"
	"devrelay/internal/pkg/chat/application/usecase"
	"devrelay/internal/pkg/chat/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GetHistoryController serves project history over HTTP for ad-hoc refreshes
// (one controller per endpoint).
type GetHistoryController struct {
	UC *usecase.LoadHistoryUseCase
}

func NewGetHistoryController(pool *pgxpool.Pool, cache port.Cache, joinLimit int) *GetHistoryController {
	repo := adapter.NewPgMessageRepository(pool)
	uc := usecase.NewLoadHistoryUseCase(repo, cache, joinLimit)
	return &GetHistoryController{UC: uc}
}

func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		if projectID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
			return
		}

		// Ad-hoc refreshes default shallower than the join-time backlog.
		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.LoadHistoryInput{ProjectID: projectID, Limit: limit})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"limit":    limit,
			"count":    len(msgs),
		})
	}
}
