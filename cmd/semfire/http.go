package main

// ---------------------------------------------------------------------------
// http.go — HTTP client helpers for API communication
// ---------------------------------------------------------------------------

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

func apiDo(method, url string, payload []byte, apiKey string, timeout time.Duration) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to semfire API at %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return respBody, fmt.Errorf("authentication failed (HTTP %d) — provide --api-key or set SEMFIRE_API_KEY", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("API returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func apiGet(url, apiKey string, timeout time.Duration) ([]byte, error) {
	return apiDo(http.MethodGet, url, nil, apiKey, timeout)
}

func apiPost(url string, payload []byte, apiKey string, timeout time.Duration) ([]byte, error) {
	return apiDo(http.MethodPost, url, payload, apiKey, timeout)
}

func apiPatch(url string, payload []byte, apiKey string, timeout time.Duration) ([]byte, error) {
	return apiDo(http.MethodPatch, url, payload, apiKey, timeout)
}

func apiDelete(url, apiKey string, timeout time.Duration) ([]byte, error) {
	return apiDo(http.MethodDelete, url, nil, apiKey, timeout)
}
