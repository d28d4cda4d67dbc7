package notify

import "time"

// MessageTask is the view of a task exposed to message templates.
type MessageTask struct {
	ID          int64
	Title       string
	Description string
	Tags        string
	Status      string
	Label       string
	Due         time.Time
	HasDue      bool
}

// AlertData is the template input for a consolidated urgency alert.
type AlertData struct {
	Now      time.Time
	Critical []MessageTask
	Warning  []MessageTask
}

// DigestGroup is one status section of a digest.
type DigestGroup struct {
	Status string
	Label  string
	Tasks  []MessageTask
}

// DigestData is the template input for the periodic digest. Groups is empty
// when there are no open tasks.
type DigestData struct {
	Now    time.Time
	Groups []DigestGroup
	Total  int
}

// SampleAlertData returns fully populated alert input for template checks.
func SampleAlertData(now time.Time) AlertData {
	return AlertData{
		Now:      now,
		Critical: []MessageTask{sampleTask(1, now.Add(30*time.Minute))},
		Warning:  []MessageTask{sampleTask(2, now.Add(2*time.Hour))},
	}
}

// SampleDigestData returns fully populated digest input for template checks.
func SampleDigestData(now time.Time) DigestData {
	return DigestData{
		Now: now,
		Groups: []DigestGroup{
			{Status: "principal", Label: "In progress", Tasks: []MessageTask{sampleTask(1, now.Add(time.Hour))}},
			{Status: "pending", Label: "Pending", Tasks: []MessageTask{{ID: 2, Title: "sample", Status: "pending", Label: "Pending"}}},
		},
		Total: 2,
	}
}

func sampleTask(id int64, due time.Time) MessageTask {
	return MessageTask{
		ID:     id,
		Title:  "sample",
		Status: "pending",
		Label:  "Pending",
		Due:    due,
		HasDue: true,
	}
}
