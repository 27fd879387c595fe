package sync

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dotsync/dotsync/internal/server/handlers/api"
	"github.com/gin-gonic/gin"
)

func (h *SyncHandler) Pull(ctx *gin.Context) {
	user, deviceID, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	since := int64(0)
	if raw := ctx.Query("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid since cursor %q", raw))
			return
		}
		since = parsed
	}

	entries, err := h.sync.Pull(ctx.Request.Context(), user, deviceID, since)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &PullResponse{Entries: entries})
}

func (h *SyncHandler) Feed(ctx *gin.Context) {
	user, deviceID, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	feed, err := h.sync.ChangeFeed(ctx.Request.Context(), user, deviceID)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, feed)
}

func (h *SyncHandler) Status(ctx *gin.Context) {
	user := ctx.GetString("user")
	if user == "" {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeInvalidRequest, fmt.Errorf("user missing"))
		return
	}

	status, err := h.sync.Status(ctx.Request.Context(), user)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, status)
}
