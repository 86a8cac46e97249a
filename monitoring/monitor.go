// Package monitoring serves the state of a running paging engine over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/monitoring/web"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor turns a Manager into a server so that its frames, address spaces,
// and counters can be inspected while workloads run.
type Monitor struct {
	manager    *vm.Manager
	portNumber int
	listener   net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterManager registers the Manager to monitor.
func (m *Monitor) RegisterManager(manager *vm.Manager) {
	m.manager = manager
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/stats", m.stats)
	r.HandleFunc("/api/frames", m.listFrames)
	r.HandleFunc("/api/swap", m.swapUsage)
	r.HandleFunc("/api/spaces", m.listSpaces)
	r.HandleFunc("/api/space/{pid}", m.spaceDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.URL())

	router := m.Router()

	go func() {
		err := http.Serve(listener, router)
		if err != nil && !isClosedErr(err) {
			log.Panic(err)
		}
	}()
}

// URL returns the address the monitor serves on. It is empty before the
// server starts.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the monitoring page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.listener == nil {
		return errors.New("monitor is not running")
	}

	return browser.OpenURL(m.URL())
}

// StopServer stops accepting requests.
func (m *Monitor) StopServer() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func (m *Monitor) managerOr503(w http.ResponseWriter) *vm.Manager {
	if m.manager == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, err := w.Write([]byte("No manager registered"))
		dieOnErr(err)
	}

	return m.manager
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	manager := m.managerOr503(w)
	if manager == nil {
		return
	}

	writeJSON(w, manager.Stats())
}

type frameRsp struct {
	PAddr uint64 `json:"paddr"`
	PID   vm.PID `json:"pid"`
	VAddr uint64 `json:"vaddr"`
}

type framesRsp struct {
	Total  int        `json:"total"`
	Free   int        `json:"free"`
	Frames []frameRsp `json:"frames"`
}

func (m *Monitor) listFrames(w http.ResponseWriter, _ *http.Request) {
	manager := m.managerOr503(w)
	if manager == nil {
		return
	}

	rsp := framesRsp{
		Total:  manager.Memory().NumPages(),
		Free:   manager.Memory().NumFree(),
		Frames: []frameRsp{},
	}

	for _, f := range manager.Frames().Snapshot() {
		rsp.Frames = append(rsp.Frames, frameRsp(f))
	}

	writeJSON(w, rsp)
}

type swapRsp struct {
	Used     int `json:"used"`
	Capacity int `json:"capacity"`
}

func (m *Monitor) swapUsage(w http.ResponseWriter, _ *http.Request) {
	manager := m.managerOr503(w)
	if manager == nil {
		return
	}

	writeJSON(w, swapRsp{
		Used:     manager.Swap().Used(),
		Capacity: manager.Swap().Capacity(),
	})
}

type spaceRsp struct {
	PID      vm.PID `json:"pid"`
	NumPages int    `json:"num_pages"`
	Resident int    `json:"resident"`
	Killed   bool   `json:"killed"`
	Exited   bool   `json:"exited"`
}

func (m *Monitor) listSpaces(w http.ResponseWriter, _ *http.Request) {
	manager := m.managerOr503(w)
	if manager == nil {
		return
	}

	rsp := []spaceRsp{}
	for _, as := range manager.Spaces() {
		rsp = append(rsp, spaceRsp{
			PID:      as.PID,
			NumPages: as.PageTable().Len(),
			Resident: as.Directory().NumPresent(),
			Killed:   as.Killed(),
			Exited:   as.Exited(),
		})
	}

	writeJSON(w, rsp)
}

// spaceDetail is what the monitor serializes for one address space.
type spaceDetail struct {
	PID   vm.PID
	Pages []vm.PageInfo
}

func (m *Monitor) spaceDetails(w http.ResponseWriter, r *http.Request) {
	manager := m.managerOr503(w)
	if manager == nil {
		return
	}

	pid, err := strconv.ParseUint(mux.Vars(r)["pid"], 10, 32)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	as, found := manager.Space(vm.PID(pid))
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Address space not found"))
		dieOnErr(err)

		return
	}

	detail := spaceDetail{PID: as.PID}
	for _, page := range as.PageTable().Pages() {
		detail.Pages = append(detail.Pages, page.Info())
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&detail)
	serializer.SetMaxDepth(5)
	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
