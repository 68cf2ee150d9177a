package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("add_student", "ok"))

	Observe("add_student", time.Now(), "ok")

	after := testutil.ToFloat64(OperationsTotal.WithLabelValues("add_student", "ok"))
	assert.Equal(t, before+1, after)
}

func TestWriteTextfile(t *testing.T) {
	BackupsTotal.WithLabelValues("create").Inc()
	path := filepath.Join(t.TempDir(), "gradebook.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gradebook_backups_total{action="create"}`)
}
