package admin

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/lessonlens/internal/domain"
)

func TestJobsForKind(t *testing.T) {
	tests := []struct {
		kind    string
		want    []domain.Job
		wantErr bool
	}{
		{"embedding", []domain.Job{domain.ProcessEmbedding{PageID: 4}}, false},
		{"concepts", []domain.Job{domain.ProcessConcepts{PageID: 4}}, false},
		{"ALL", domain.PageJobs(4), false},
		{"", domain.PageJobs(4), false},
		{"images", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, err := jobsForKind(tt.kind, 4)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintJobs_JSON(t *testing.T) {
	processed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := domain.NewQueuedJob("job-1", domain.ProcessEmbedding{PageID: 4}, processed.Add(-time.Minute))
	job.Status = domain.JobStatusCompleted
	job.ProcessedAt = &processed

	var buf bytes.Buffer
	require.NoError(t, printJobs(&buf, "json", []*domain.QueuedJob{job}))

	var out []jobOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "ProcessEmbedding", out[0].Kind)
	assert.Equal(t, int64(4), out[0].PageID)
	assert.Equal(t, "completed", out[0].Status)
	assert.Equal(t, "2026-03-01 12:00:00", out[0].ProcessedAt)
}

func TestPrintJobs_Text(t *testing.T) {
	job := domain.NewQueuedJob("job-2", domain.ProcessConcepts{PageID: 9}, time.Now())
	job.Attempts = 2
	job.Error = "[EXTERNAL_SERVICE_FAILURE] generate failed: timeout"

	var buf bytes.Buffer
	require.NoError(t, printJobs(&buf, "text", []*domain.QueuedJob{job}))

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "job-2")
	assert.Contains(t, out, "ProcessConcepts")
	assert.Contains(t, out, "generate failed: timeout")
}

func TestJobsCmd_Structure(t *testing.T) {
	cmd := JobsCmd()

	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"enqueue", "status"}, names)

	enqueue, _, err := cmd.Find([]string{"enqueue"})
	require.NoError(t, err)
	kind := enqueue.Flags().Lookup("kind")
	require.NotNil(t, kind)
	assert.Equal(t, "all", kind.DefValue)
}

func TestJobsEnqueue_RejectsUnknownKindBeforeConnecting(t *testing.T) {
	cmd := JobsEnqueueCmd()
	cmd.SetArgs([]string{"--page", "4", "--kind", "images"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job kind")
}
