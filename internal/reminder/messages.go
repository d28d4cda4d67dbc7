package reminder

import (
	"time"

	"github.com/colonyops/taskrelay/internal/core/notify"
	"github.com/colonyops/taskrelay/internal/core/task"
)

func toMessageTask(t task.Task) notify.MessageTask {
	m := notify.MessageTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Tags:        t.Tags,
		Status:      string(t.Status),
		Label:       t.Status.Label(),
	}
	if t.HasDue() {
		m.Due = *t.Due
		m.HasDue = true
	}
	return m
}

func toMessageTasks(tasks []task.Task) []notify.MessageTask {
	out := make([]notify.MessageTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toMessageTask(t))
	}
	return out
}

// digestOrder lists the sections of a digest, in order.
var digestOrder = []task.Status{task.StatusPrincipal, task.StatusPending}

func buildDigest(tasks []task.Task, now time.Time) notify.DigestData {
	byStatus := make(map[task.Status][]task.Task, len(digestOrder))
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	data := notify.DigestData{Now: now}
	for _, status := range digestOrder {
		group := byStatus[status]
		if len(group) == 0 {
			continue
		}
		data.Groups = append(data.Groups, notify.DigestGroup{
			Status: string(status),
			Label:  status.Label(),
			Tasks:  toMessageTasks(group),
		})
		data.Total += len(group)
	}
	return data
}
