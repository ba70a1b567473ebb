package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-rooms/internal/models"
)

func execute(t *testing.T, configBody string, args ...string) (string, string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configBody), 0o600))

	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(append([]string{"--config", path, "--log-level", "error"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTestMatch(t *testing.T) {
	out, _, err := execute(t, "", "test-match", "--from-year", "2026", "--start", "2026-09-05", "--end", "2027-01-30")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "MATCH ("), out)

	out, _, err = execute(t, "", "test-match", "--from-year", "2026", "--name", "41 Weeks", "--start", "2026-09-05", "--end", "2027-06-30")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "NO MATCH ("), out)
}

func TestTestMatch_JSON(t *testing.T) {
	out, _, err := execute(t, "", "--json", "test-match", "--from-year", "2026", "--start", "2026-09-05", "--end", "2027-01-30")
	require.NoError(t, err)
	var v struct {
		Match  bool   `json:"match"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.True(t, v.Match)
	assert.NotEmpty(t, v.Reason)
}

func TestTestMatch_BadDate(t *testing.T) {
	_, _, err := execute(t, "", "test-match", "--start", "05/09/2026")
	assert.Error(t, err)
}

func TestNotify_Stdout(t *testing.T) {
	out, stderr, err := execute(t, "notifications:\n  type: stdout\n", "notify", "--message", "hello rooms")
	require.NoError(t, err)
	assert.Contains(t, out, "📢 NOTIFICATION")
	assert.Contains(t, out, "hello rooms")
	assert.Contains(t, stderr, "Notification dispatched via stdout.")
}

func TestNotify_InvalidNotifierConfig(t *testing.T) {
	_, _, err := execute(t, "notifications:\n  type: webhook\n", "notify")
	assert.Error(t, err)
}

func TestRoot_RejectsUnknownProvider(t *testing.T) {
	_, _, err := execute(t, "", "--provider", "booking", "test-match")
	assert.ErrorContains(t, err, "--provider")
}

func TestRoot_NoProviders(t *testing.T) {
	_, _, err := execute(t, "providers:\n  yugo:\n    enabled: false\n  aparto:\n    enabled: false\n", "test-match")
	assert.ErrorContains(t, err, "no providers enabled")
}

func TestScan_RequiresCity(t *testing.T) {
	_, _, err := execute(t, "", "scan")
	assert.ErrorContains(t, err, "no target city")
}

func TestProbeFilter(t *testing.T) {
	options := []models.RoomOption{
		{PropertyName: "Binary Hub", RoomType: "Gold Ensuite", OptionName: "Semester 1"},
		{PropertyName: "Binary Hub", RoomType: "Bronze", OptionName: "41 Weeks"},
		{PropertyName: "Dorset Point", RoomType: "Gold Studio", OptionName: "Semester 1"},
	}

	got := probeFilter{residence: "binary"}.candidates(options)
	assert.Len(t, got, 2)
	got = probeFilter{room: "GOLD", tenancy: "semester"}.candidates(options)
	require.Len(t, got, 2)
	assert.Equal(t, "Dorset Point", got[1].PropertyName)
	assert.Len(t, probeFilter{}.candidates(options), 3)
	assert.Empty(t, probeFilter{residence: "loom"}.candidates(options))
}

func TestScanAlert(t *testing.T) {
	matches := []models.RoomOption{
		{Provider: "yugo", PropertyName: "Kavanagh", PropertySlug: "kavanagh", RoomType: "Gold Ensuite", OptionName: "Semester 1", Available: true},
		{Provider: "aparto", PropertyName: "Binary Hub", PropertySlug: "binary-hub", RoomType: "Bronze", OptionName: "Semester 1", Available: true},
	}

	fresh := scanAlert(matches, false, nil)
	assert.True(t, strings.HasPrefix(fresh, "🚨 NEW"), fresh)

	partly := scanAlert(matches, false, map[string]bool{matches[0].DedupKey(): true})
	assert.True(t, strings.HasPrefix(partly, "🚨 NEW"), partly)

	known := map[string]bool{matches[0].DedupKey(): true, matches[1].DedupKey(): true}
	all := scanAlert(matches, false, known)
	assert.True(t, strings.HasPrefix(all, "🔁 REMINDER"), all)
}
