// Copyright 2024 The Tessera authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// client is a thin, retrying HTTP client talking to a symstat-server.
type client struct {
	baseURL string
	hc      *http.Client
}

func newClient(baseURL string) *client {
	return &client{baseURL: baseURL, hc: &http.Client{Timeout: 5 * time.Second}}
}

type appendRequest struct {
	Symbol string    `json:"symbol"`
	Values []float64 `json:"values"`
}

type stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Last float64 `json:"last"`
	Avg  float64 `json:"avg"`
	Var  float64 `json:"var"`
}

// appendBatch posts values for symbol, retrying transient failures
// with the same backoff policy the teacher uses for its migration
// tool's HTTP calls.
func (c *client) appendBatch(ctx context.Context, symbol string, values []float64) error {
	body, err := json.Marshal(appendRequest{Symbol: symbol, Values: values})
	if err != nil {
		return err
	}
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/append", bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := c.hc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("append: unexpected status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(5),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
}

// getStats fetches the windowed statistics for symbol at window
// exponent k.
func (c *client) getStats(ctx context.Context, symbol string, k int) (stats, error) {
	var out stats
	err := retry.Do(
		func() error {
			url := fmt.Sprintf("%s/v1/stats?symbol=%s&k=%d", c.baseURL, symbol, k)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.hc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("get stats: unexpected status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&out)
		},
		retry.Attempts(5),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
	return out, err
}
