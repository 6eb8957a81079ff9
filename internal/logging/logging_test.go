package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

func TestNewParsesLevel(t *testing.T) {
	assert.Equal(t, New("debug", "text").GetLevel(), logrus.DebugLevel)
	assert.Equal(t, New("warning", "text").GetLevel(), logrus.WarnLevel)
	assert.Equal(t, New("bogus", "text").GetLevel(), logrus.InfoLevel)
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.WithField("tool", "read_file").Info("tool executed")

	var entry map[string]any
	assert.NilError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, entry["tool"], "read_file")
	assert.Equal(t, entry["msg"], "tool executed")
}
