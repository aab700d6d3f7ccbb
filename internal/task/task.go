// Package task defines the unit of scheduling work and its outcome.
package task

import "github.com/nicholas-fedor/blobextract/internal/report"

// Task is one path to process at one recursion depth.
type Task struct {
	Path  string
	Depth int
}

// Result accumulates the outcome of processing one Task: further Tasks
// discovered along the way, and Reports describing anything that went
// wrong without aborting the Task.
type Result struct {
	NewTasks []Task
	Reports  []report.Report
}

// AddTask appends a follow-on Task to the result.
func (r *Result) AddTask(t Task) {
	r.NewTasks = append(r.NewTasks, t)
}

// AddReport appends a Report to the result.
func (r *Result) AddReport(rep report.Report) {
	r.Reports = append(r.Reports, rep)
}
