package sdk

import (
	"context"
	"strconv"

	"github.com/imroc/req/v3"
)

const (
	v1SyncPush      = "/api/v1/sync/push"
	v1SyncPull      = "/api/v1/sync/pull"
	v1SyncFeed      = "/api/v1/sync/feed"
	v1SyncStatus    = "/api/v1/sync/status"
	v1SyncDelete    = "/api/v1/sync/delete"
	v1SyncConflicts = "/api/v1/sync/conflicts"
	v1SyncResolve   = "/api/v1/sync/resolve"
)

type SyncAPI struct {
	client *req.Client
}

func newSyncAPI(client *req.Client) *SyncAPI {
	return &SyncAPI{client: client}
}

// Push uploads a batch of entries and returns the per-path outcomes.
func (s *SyncAPI) Push(ctx context.Context, entries []*PushEntry) (resp *PushResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(&PushRequest{Entries: entries}).
		SetSuccessResult(&resp).
		Post(v1SyncPush)

	if err := handleAPIError(res, err, "sync push"); err != nil {
		return nil, err
	}

	return resp, nil
}

// Pull downloads every entry from other devices received after since.
func (s *SyncAPI) Pull(ctx context.Context, since int64) (resp *PullResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("since", strconv.FormatInt(since, 10)).
		SetSuccessResult(&resp).
		Get(v1SyncPull)

	if err := handleAPIError(res, err, "sync pull"); err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *SyncAPI) Status(ctx context.Context) (resp *StatusResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1SyncStatus)

	if err := handleAPIError(res, err, "sync status"); err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *SyncAPI) Conflicts(ctx context.Context) (resp *ConflictsResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1SyncConflicts)

	if err := handleAPIError(res, err, "sync conflicts"); err != nil {
		return nil, err
	}

	return resp, nil
}

// Resolve closes a conflict with the chosen strategy. Content is required
// for manual resolution only.
func (s *SyncAPI) Resolve(ctx context.Context, request *ResolveRequest) (resp *ResolveResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(request).
		SetSuccessResult(&resp).
		Post(v1SyncResolve)

	if err := handleAPIError(res, err, "sync resolve"); err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *SyncAPI) Delete(ctx context.Context, path string) error {
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(&DeleteRequest{Path: path}).
		Post(v1SyncDelete)

	return handleAPIError(res, err, "sync delete")
}
