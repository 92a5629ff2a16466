package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smallbiznis/sims/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobsCommandListsEveryJob(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"jobs"})

	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	jobs := scheduler.ProvideJobSet(scheduler.JobParams{}).Jobs()
	require.Len(t, lines, len(jobs)+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	for i, job := range jobs {
		assert.True(t, strings.HasPrefix(lines[i+1], job.Name+" "), lines[i+1])
	}
}

func TestRunCommandRequiresJobName(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})

	assert.Error(t, cmd.Execute())
}
