package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPrintMasksSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	content := `
Notify:
  Enabled: true
  Email:
    Host: smtp.example.com
    Port: 465
    Username: ops
    Password: hunter2
    From: sentinel@example.com
    To: [ops@example.com]
  Webhook:
    URL: https://hooks.example.com/alert
    Headers:
      Authorization: Bearer token
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "print", "--config", path})
	require.NoError(t, root.Execute())

	text := out.String()
	assert.Contains(t, text, "smtp.example.com")
	assert.Contains(t, text, maskedSecret)
	assert.NotContains(t, text, "hunter2")
	assert.NotContains(t, text, "Bearer token")
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "dev\n", out.String())
}
