package sync

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dotsync/dotsync/internal/merge"
	"github.com/dotsync/dotsync/internal/server/handlers/api"
	"github.com/dotsync/dotsync/internal/server/sync"
	"github.com/gin-gonic/gin"
)

func (h *SyncHandler) Conflicts(ctx *gin.Context) {
	user := ctx.GetString("user")
	if user == "" {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeInvalidRequest, fmt.Errorf("user missing"))
		return
	}

	conflicts, err := h.sync.Conflicts(ctx.Request.Context(), user)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ConflictsResponse{Conflicts: conflicts})
}

func (h *SyncHandler) Resolve(ctx *gin.Context) {
	user, deviceID, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	var req ResolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	entry, err := h.sync.Resolve(ctx.Request.Context(), user, deviceID, req.ConflictID, req.Resolution, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrConflictNotFound):
			api.AbortWithError(ctx, http.StatusNotFound, api.CodeConflictNotFound, err)
		case errors.Is(err, sync.ErrConflictResolved):
			api.AbortWithError(ctx, http.StatusConflict, api.CodeConflictResolved, err)
		case errors.Is(err, sync.ErrInvalidResolution), errors.Is(err, merge.ErrEmptyManualContent):
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidResolution, err)
		default:
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		}
		return
	}

	ctx.PureJSON(http.StatusOK, &ResolveResponse{Entry: entry})
}

func (h *SyncHandler) Delete(ctx *gin.Context) {
	user, _, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	var req DeleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	if err := h.sync.DeleteEntry(ctx.Request.Context(), user, req.Path); err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.String(http.StatusOK, "")
}
