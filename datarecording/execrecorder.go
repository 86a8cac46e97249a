package datarecording

import (
	"os"
	"strings"
	"sync"
	"time"
)

// ExecTable is the table an ExecRecorder writes to.
const ExecTable = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// An ExecRecorder records how a program was run: the command line, the
// working directory, start and end time, and any settings the program
// reports.
type ExecRecorder struct {
	lock     sync.Mutex
	recorder DataRecorder
	entries  []ExecInfo
	ended    bool
}

// NewExecRecorder creates the execution table in recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecTable, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start notes the start time, the command line, and the working directory.
func (e *ExecRecorder) Start() {
	e.add("Start Time", time.Now().Format(execTimeFormat))
	e.add("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err != nil {
		cwd = err.Error()
	}

	e.add("Working Directory", cwd)
}

// Set notes a setting of the execution.
func (e *ExecRecorder) Set(property, value string) {
	e.add(property, value)
}

func (e *ExecRecorder) add(property, value string) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.entries = append(e.entries, ExecInfo{property, value})
}

// End writes everything noted so far with the end time. Only the first call
// has an effect.
func (e *ExecRecorder) End() {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.ended {
		return
	}

	e.ended = true
	e.entries = append(e.entries,
		ExecInfo{"End Time", time.Now().Format(execTimeFormat)})

	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
