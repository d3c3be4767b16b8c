package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command against a temporary config file and
// captures its output.
func executeCommand(t *testing.T, configBody, stdin string, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"+configBody), 0o600))
	t.Cleanup(func() { AppCfg = nil })

	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", path}, args...))

	err := root.ExecuteContext(context.Background())
	return strings.TrimSpace(buf.String()), err
}

func TestDecodeCmd(t *testing.T) {
	out, err := executeCommand(t, "", "", "decode", "Party", "{{EMOJI:1F973}}", "{{EMOJI:UNKNOWN}}")
	require.NoError(t, err)
	assert.Equal(t, "Party \U0001F973 \U0001F4CD", out)
}

func TestDecodeCmdReadsStdin(t *testing.T) {
	out, err := executeCommand(t, "", "Hi {{EMOJI:1F600}}\n", "decode")
	require.NoError(t, err)
	assert.Equal(t, "Hi \U0001F600", out)
}

func TestEncodeCmd(t *testing.T) {
	out, err := executeCommand(t, "", "", "encode", "Thanks :thumbsup:")
	require.NoError(t, err)
	assert.Equal(t, "Thanks {{EMOJI:1F44D}}", out)
}

func TestInspectCmd(t *testing.T) {
	out, err := executeCommand(t, "", "", "inspect", "{{EMOJI:1F600}} {{EMOJI:ABC}}")
	require.NoError(t, err)
	assert.Equal(t, "Contains emojis: true\nCount: 2\n1. 1F600 \U0001F600\n2. ABC \U0001F4CD (fallback)", out)
}

func TestGlyphCmd(t *testing.T) {
	out, err := executeCommand(t, "", "", "glyph", "1F60D")
	require.NoError(t, err)
	assert.Equal(t, "1F60D \U0001F60D (known)", out)

	_, err = executeCommand(t, "", "", "glyph")
	assert.Error(t, err)
}

const sourcesConfig = `
proxies:
  - name: corp
    type: http
    address: 10.0.0.1:3128
    username: relay
default_feed_proxy: corp
sources:
  - name: elm
    url: https://example.org/elm.rss
    chat_id: "-100"
    frequency_seconds: 60
  - name: oak
    url: https://example.org/oak.rss
    chat_id: "@oak"
    proxy: corp
    disabled: true
`

func TestSourceListCmd(t *testing.T) {
	out, err := executeCommand(t, sourcesConfig, "", "source", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Name: elm, URL: https://example.org/elm.rss, Chat: -100, Every: 1m0s, Profile: -, Proxy: - [enabled]")
	assert.Contains(t, out, "Name: oak, URL: https://example.org/oak.rss, Chat: @oak, Every: 5m0s, Profile: -, Proxy: corp [disabled]")
}

func TestProxyListCmd(t *testing.T) {
	out, err := executeCommand(t, sourcesConfig, "", "proxy", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Name: corp, Type: http, Address: 10.0.0.1:3128, Auth: yes [Default feeds]")

	out, err = executeCommand(t, "", "", "proxy", "list")
	require.NoError(t, err)
	assert.Equal(t, "No proxies configured.", out)
}

func TestProxyValidateCmd(t *testing.T) {
	fwd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer fwd.Close()

	cfg := fmt.Sprintf("proxies:\n  - name: local\n    type: http\n    address: %s\n", fwd.Listener.Addr().String())
	out, err := executeCommand(t, cfg, "", "proxy", "validate", "local", "--target", "http://notices.invalid/generate_204")
	require.NoError(t, err)
	assert.Contains(t, out, "Proxy validation successful.")

	_, err = executeCommand(t, cfg, "", "proxy", "validate", "missing")
	assert.ErrorContains(t, err, `proxy "missing" not found`)
}
