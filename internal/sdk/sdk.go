// Package sdk is the HTTP and websocket client for the dotsync server API.
package sdk

import (
	"time"

	"github.com/imroc/req/v3"
)

// SyncSDK is the main client for the dotsync server.
type SyncSDK struct {
	client  *req.Client
	baseURL string

	Sync   *SyncAPI
	Events *EventsAPI
}

// New creates a client bound to baseURL. The device id rides on a common
// header so the server can attribute every request.
func New(baseURL, deviceID string) (*SyncSDK, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderDeviceId, deviceID).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &SyncSDK{
		client:  client,
		baseURL: baseURL,
		Sync:    newSyncAPI(client),
		Events:  newEventsAPI(client),
	}, nil
}

// Login sets the caller identity. With an access token the server trusts the
// token subject; without one the user rides on a query param (auth-disabled
// servers only).
func (s *SyncSDK) Login(user, accessToken string) {
	if accessToken != "" {
		s.client.SetCommonBearerAuthToken(accessToken)
	} else {
		s.client.SetCommonQueryParam("user", user)
	}
}

// Close terminates all connections and cleans up resources.
func (s *SyncSDK) Close() {
	if s.Events.IsConnected() {
		s.Events.Close()
	}
}
