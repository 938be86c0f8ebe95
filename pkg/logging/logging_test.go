package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/safeops/postureboard/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Should write JSON entries with key values", func(t *testing.T) {
		var buf bytes.Buffer
		log, flush, err := logging.New(logging.Options{Level: "info", Writer: &buf})
		require.NoError(t, err)

		log.WithName("server").Info("Report generated", "pipeline", "demo", "score", 87)
		log.V(1).Info("Debug details")
		flush()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Report generated", entry["msg"])
		assert.Equal(t, "server", entry["logger"])
		assert.Equal(t, "demo", entry["pipeline"])
		assert.Equal(t, float64(87), entry["score"])
		assert.NotContains(t, buf.String(), "Debug details")
	})

	t.Run("Should tee to log file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "postureboard.log")
		var buf bytes.Buffer
		log, flush, err := logging.New(logging.Options{File: file, Writer: &buf})
		require.NoError(t, err)

		log.Info("Refresh finished", "pipelines", 3)
		flush()

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"Refresh finished"`)
		assert.Contains(t, buf.String(), "Refresh finished")
	})

	t.Run("Should reject unknown level", func(t *testing.T) {
		_, _, err := logging.New(logging.Options{Level: "chatty"})
		require.Error(t, err)
	})
}
