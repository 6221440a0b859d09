package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseJobType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseJobType("parse_document")
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	assert.False(t, r.Supports(JobTypeBackupCSV))

	r.Register(JobTypeBackupCSV, func(_ context.Context, job *Job) (string, error) {
		return "backup for user", nil
	})
	assert.True(t, r.Supports(JobTypeBackupCSV))

	got, err := r.Handle(context.Background(), &Job{Type: JobTypeBackupCSV, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "backup for user", got)

	_, err = r.Handle(context.Background(), &Job{Type: JobTypeNotionSync})
	assert.Error(t, err)
}
