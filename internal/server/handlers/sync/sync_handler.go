package sync

import (
	"fmt"
	"net/http"

	"github.com/dotsync/dotsync/internal/server/handlers/api"
	"github.com/dotsync/dotsync/internal/server/sync"
	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	sync *sync.SyncService
}

func New(syncSvc *sync.SyncService) *SyncHandler {
	return &SyncHandler{sync: syncSvc}
}

// requestIdentity pulls the authenticated user and the calling device out of
// the request. The device id rides on a header so every endpoint sees it.
func requestIdentity(ctx *gin.Context) (user, deviceID string, ok bool) {
	user = ctx.GetString("user")
	if user == "" {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeInvalidRequest, fmt.Errorf("user missing"))
		return "", "", false
	}

	deviceID = ctx.GetHeader("X-Dotsync-Device")
	if deviceID == "" {
		deviceID = ctx.Query("device")
	}
	if deviceID == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("device id missing"))
		return "", "", false
	}

	return user, deviceID, true
}
