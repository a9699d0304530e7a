package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pantheonmod/pantheon/pkg/deity"
	"github.com/pantheonmod/pantheon/pkg/prayer"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, client *http.Client) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    client,
	}
}

func (c *apiClient) healthy() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *apiClient) submitPrayer(req prayer.Request) (*prayer.Response, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prayer request: %w", err)
	}

	resp, err := c.http.Post(
		c.baseURL+"/v1/prayer",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("prayer rejected: %s", errorResp.Error)
	}

	var prayerResp prayer.Response
	if err := json.Unmarshal(body, &prayerResp); err != nil {
		return nil, fmt.Errorf("failed to parse prayer response: %w", err)
	}
	return &prayerResp, nil
}

func (c *apiClient) effectiveConfig(deityID, prayerType string) (*deity.Effective, error) {
	endpoint := fmt.Sprintf("%s/v1/deities/%s/config?type=%s",
		c.baseURL, url.PathEscape(deityID), url.QueryEscape(prayerType))
	resp, err := c.http.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to get deity config: %s", errorResp.Error)
	}

	var eff deity.Effective
	if err := json.Unmarshal(body, &eff); err != nil {
		return nil, fmt.Errorf("failed to parse config response: %w", err)
	}
	return &eff, nil
}
