//go:build integration

package e2etest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	authority = "authority-account"
	staker    = "staker-1"
	principal = 100_00000000
)

func postJSON(t *testing.T, tm *TestManager, path string, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()

	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(tm.Server.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, tm *TestManager, path string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Get(tm.Server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func TestStakingLifecycle(t *testing.T) {
	tm := StartManager(t)

	resp, _ := postJSON(t, tm, "/v1/admin/init", map[string]any{
		"authority":    authority,
		"apy_rate_bps": 20_000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// custody headroom for the rewards paid out below
	resp, _ = postJSON(t, tm, "/v1/admin/deposit", map[string]any{
		"authority": authority,
		"amount":    1_00000000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, tm, "/v1/stake", map[string]any{
		"account":  staker,
		"amount":   principal,
		"duration": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(principal), data(body)["principal"])

	resp, body = getJSON(t, tm, "/v1/vault")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(principal), data(body)["total_staked"])
	assert.Equal(t, float64(principal+1_00000000), data(body)["custody_balance"])

	// an immediate unstake must be refused while the lock holds
	resp, body = postJSON(t, tm, "/v1/unstake", map[string]any{"account": staker})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "STAKE_STILL_LOCKED", body["error_code"])

	require.Eventually(t, func() bool {
		resp, body := getJSON(t, tm, "/v1/stakes/"+staker+"/eligibility")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		canUnstake, _ := data(body)["can_unstake"].(bool)
		return canUnstake
	}, 10*time.Second, 200*time.Millisecond)

	resp, body = postJSON(t, tm, "/v1/unstake", map[string]any{"account": staker})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payout, _ := data(body)["payout"].(float64)
	assert.GreaterOrEqual(t, payout, float64(principal))

	// the position is gone and the principal has left the vault
	resp, _ = getJSON(t, tm, "/v1/stakes/"+staker)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = getJSON(t, tm, "/v1/vault")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, data(body)["total_staked"])
}

func TestPauseBlocksInflowsOnly(t *testing.T) {
	tm := StartManager(t)

	resp, _ := postJSON(t, tm, "/v1/admin/init", map[string]any{
		"authority":    authority,
		"apy_rate_bps": 5000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = postJSON(t, tm, "/v1/stake", map[string]any{
		"account":  staker,
		"amount":   principal,
		"duration": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, tm, "/v1/admin/pause", map[string]any{"authority": authority})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, tm, "/v1/stake", map[string]any{
		"account":  "staker-2",
		"amount":   principal,
		"duration": 1,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "VAULT_PAUSED", body["error_code"])

	// the existing staker can still exit while paused
	require.Eventually(t, func() bool {
		resp, body := postJSON(t, tm, "/v1/unstake", map[string]any{"account": staker})
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return data(body) != nil
	}, 10*time.Second, 200*time.Millisecond)
}
