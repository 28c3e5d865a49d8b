package orchestrator

import (
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func tasksWithStatus(statuses ...model.TaskStatus) []*model.Task {
	tasks := make([]*model.Task, len(statuses))
	for i, s := range statuses {
		tasks[i] = &model.Task{ID: "t", Status: s}
	}
	return tasks
}

func TestComputeExitCode(t *testing.T) {
	tests := []struct {
		name      string
		tasks     []*model.Task
		cancelled bool
		want      int
	}{
		{name: "no tasks", tasks: nil, want: ExitSuccess},
		{name: "all succeeded", tasks: tasksWithStatus(model.TaskSucceeded, model.TaskSucceeded), want: ExitSuccess},
		{name: "some failed", tasks: tasksWithStatus(model.TaskSucceeded, model.TaskFailed), want: ExitPartialFailure},
		{name: "all failed", tasks: tasksWithStatus(model.TaskFailed, model.TaskFailed), want: ExitAllFailed},
		{name: "cancelled overrides failures", tasks: tasksWithStatus(model.TaskFailed), cancelled: true, want: ExitCancelled},
		{name: "skipped does not count as failed", tasks: tasksWithStatus(model.TaskSucceeded, model.TaskSkipped), want: ExitSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeExitCode(tt.tasks, tt.cancelled)
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}
