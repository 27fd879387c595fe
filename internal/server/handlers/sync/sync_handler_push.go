package sync

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dotsync/dotsync/internal/server/handlers/api"
	"github.com/dotsync/dotsync/internal/server/quota"
	"github.com/gin-gonic/gin"
)

func (h *SyncHandler) Push(ctx *gin.Context) {
	user, deviceID, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	var req PushRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}
	if len(req.Entries) == 0 {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("entries cannot be empty"))
		return
	}

	results, err := h.sync.Push(ctx.Request.Context(), user, deviceID, req.Entries)
	if err != nil {
		var rlErr *quota.RateLimitError
		if errors.As(err, &rlErr) {
			ctx.Header("Retry-After", strconv.Itoa(int(rlErr.RetryAfter.Seconds())))
			api.AbortWithError(ctx, http.StatusTooManyRequests, api.CodeRateLimited, err)
			return
		}
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &PushResponse{Results: results})
}
