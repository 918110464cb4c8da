package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/ppe-go/internal/conf"
)

func TestConfigMasksSecrets(t *testing.T) {
	t.Parallel()
	settings := &conf.Settings{}
	settings.Main.Name = "gate-1"
	settings.MQTT.Password = "hunter2"
	settings.Detector.Confidence = 0.4

	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	assert.NotContains(t, out.String(), "hunter2")
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &parsed))
	assert.Contains(t, out.String(), "gate-1")
	assert.Equal(t, "hunter2", settings.MQTT.Password)
}

func TestConfigShowSecrets(t *testing.T) {
	t.Parallel()
	settings := &conf.Settings{}
	settings.MQTT.Password = "hunter2"

	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--show-secrets"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "hunter2")
}

func TestConfigSave(t *testing.T) {
	t.Parallel()
	settings := &conf.Settings{}
	settings.Main.Name = "gate-2"
	settings.MQTT.Password = "hunter2"
	settings.Detector.Confidence = 0.4
	path := filepath.Join(t.TempDir(), "config.yaml")

	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--save", "--file", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Saved configuration to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gate-2")
	// saved files keep real credentials
	assert.Contains(t, string(data), "hunter2")
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Contains(t, parsed, "detector")
}
