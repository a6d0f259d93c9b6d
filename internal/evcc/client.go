// Package evcc pulls home charging sessions from an evcc instance and
// adapts them into receipts alongside the email-sourced ones.
package evcc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Session is one charging session as reported by the evcc sessions
// API. Energy is in kWh, the charge duration in nanoseconds.
type Session struct {
	ID              int      `json:"id"`
	Created         string   `json:"created"`
	Finished        string   `json:"finished"`
	Loadpoint       string   `json:"loadpoint"`
	Vehicle         string   `json:"vehicle"`
	ChargedEnergy   float64  `json:"chargedEnergy"`
	ChargeDuration  int64    `json:"chargeDuration"`
	SolarPercentage *float64 `json:"solarPercentage"`
	Price           *float64 `json:"price"`
	PricePerKWh     *float64 `json:"pricePerKWh"`
}

// Client talks to the evcc HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Sessions fetches all recorded charging sessions. evcc has shipped
// the payload both as {"result": [...]} and as a bare array, so both
// shapes are accepted.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching evcc sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("evcc returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Result []Session `json:"result"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding evcc response: %w", err)
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Result != nil {
		return envelope.Result, nil
	}

	var sessions []Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("unexpected evcc response shape: %w", err)
	}
	return sessions, nil
}
