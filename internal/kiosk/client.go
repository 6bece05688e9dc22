// Package kiosk drives the front-desk API from a camera-equipped terminal:
// it logs in once per device and registers deliveries with a captured photo.
package kiosk

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"frontdesk-backend-go/internal/capture"

	"github.com/go-resty/resty/v2"
)

const deviceHeader = "X-Device-ID"

type Delivery struct {
	ID               string `json:"id"`
	PickupCode       string `json:"pickupCode"`
	PhotoURL         string `json:"photoUrl"`
	ResidentName     string `json:"residentName"`
	NotificationSent bool   `json:"notificationSent"`
}

type apiError struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

type Client struct {
	http     *resty.Client
	deviceID string
	token    string
}

func NewClient(baseURL, deviceID string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader(deviceHeader, deviceID)
	return &Client{http: client, deviceID: deviceID}
}

func (c *Client) Login(ctx context.Context, identifier, secret string) error {
	var out struct {
		AccessToken string `json:"accessToken"`
		DeviceID    string `json:"deviceId"`
	}
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"identifier": identifier, "secret": secret, "deviceId": c.deviceID}).
		SetResult(&out).
		SetError(&failure).
		Post("/api/auth/login")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Code: failure.Code, Message: failure.Message}
	}
	c.token = out.AccessToken
	return nil
}

// Register uploads frame as the delivery photo for residentID.
func (c *Client) Register(ctx context.Context, residentID, notes string, frame capture.Frame) (*Delivery, error) {
	if c.token == "" {
		return nil, &APIError{Status: 401, Code: "unauthenticated", Message: "login first"}
	}
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(frame.Data)

	var out Delivery
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetBody(map[string]string{"residentId": residentID, "notes": notes, "photoDataUrl": dataURL}).
		SetResult(&out).
		SetError(&failure).
		Post("/api/deliveries")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Code: failure.Code, Message: failure.Message}
	}
	return &out, nil
}
