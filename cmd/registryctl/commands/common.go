package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpClient is shared across subcommands to reuse connections.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiError mirrors the {error: {code, message}} envelope registryd returns.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func postJSON(path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := httpClient.Post(addr+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", addr, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func getJSON(path string, query url.Values, out any) error {
	u := addr + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := httpClient.Get(u)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", addr, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr apiError
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
