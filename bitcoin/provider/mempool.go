// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// MempoolProvider talks to the mempool.space API, an Esplora-family
// explorer sharing Blockstream's broadcast and UTXO endpoint shapes. Fee
// estimates come from its own /v1/fees/recommended endpoint instead.
type MempoolProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewMempoolProvider returns a MempoolProvider for mainnet or testnet.
func NewMempoolProvider(testnet bool) *MempoolProvider {
	base := "https://mempool.space/api"
	if testnet {
		base = "https://mempool.space/testnet/api"
	}
	return &MempoolProvider{
		baseURL:    base,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (p *MempoolProvider) Broadcast(ctx context.Context, txHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/tx", bytes.NewBufferString(txHex))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mempool: broadcast failed, HTTP %d: %s", resp.StatusCode, body.String())
	}

	txid := string(bytes.TrimSpace(body.Bytes()))
	if len(txid) != 64 {
		return "", fmt.Errorf("mempool: unexpected broadcast response %q", txid)
	}

	return txid, nil
}

func (p *MempoolProvider) UTXOs(ctx context.Context, address string) ([]UTXOInfo, error) {
	url := fmt.Sprintf("%s/address/%s/utxo", p.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mempool: utxo lookup failed, HTTP %d", resp.StatusCode)
	}

	var raw []esploraUTXO
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]UTXOInfo, len(raw))
	for i, u := range raw {
		out[i] = UTXOInfo{TxID: u.TxID, Vout: u.Vout, Amount: u.Value}
	}

	return out, nil
}

// recommendedFees mirrors mempool.space's /v1/fees/recommended response.
type recommendedFees struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
	EconomyFee  float64 `json:"economyFee"`
	MinimumFee  float64 `json:"minimumFee"`
}

func (p *MempoolProvider) FeeEstimate(ctx context.Context, targetBlocks int) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/fees/recommended", nil)
	if err != nil {
		return 0, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("mempool: fee estimate failed, HTTP %d", resp.StatusCode)
	}

	var fees recommendedFees
	if err := json.NewDecoder(resp.Body).Decode(&fees); err != nil {
		return 0, err
	}

	switch {
	case targetBlocks <= 1:
		return fees.FastestFee, nil
	case targetBlocks <= 3:
		return fees.HalfHourFee, nil
	case targetBlocks <= 6:
		return fees.HourFee, nil
	default:
		return fees.EconomyFee, nil
	}
}
