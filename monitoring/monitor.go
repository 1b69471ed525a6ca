// Package monitoring turns a running simulation into a web server that shows
// the clock and the pending events and lets a user pause and continue.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/solclock/events"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/monitoring/web"
	"github.com/sarchlab/solclock/timing"
)

// Monitor serves the state of a simulation over HTTP.
type Monitor struct {
	clock      *timing.Clock
	events     *events.Manager
	metrics    http.Handler
	portNumber int
	log        *logrus.Entry

	profileDuration time.Duration

	serverLock sync.Mutex
	server     *http.Server
	addr       string
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		log:             logging.Component(nil, "monitor"),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Zero picks a free
// port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 0 || portNumber > 65535 {
		m.log.WithField("port", portNumber).
			Warn("invalid monitor port, using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(l logrus.FieldLogger) *Monitor {
	m.log = logging.Component(l, "monitor")
	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterClock registers the clock of the simulation.
func (m *Monitor) RegisterClock(c *timing.Clock) {
	m.clock = c
}

// RegisterEventManager registers the event manager of the simulation.
func (m *Monitor) RegisterEventManager(e *events.Manager) {
	m.events = e
}

// RegisterMetrics serves h under /metrics.
func (m *Monitor) RegisterMetrics(h http.Handler) {
	m.metrics = h
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.resume)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/pulse", m.lastPulse)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/time_ratio", m.setTimeRatio).Methods(http.MethodPut, http.MethodPost)
	r.HandleFunc("/api/events", m.listEvents)
	r.HandleFunc("/api/listeners", m.listListeners)
	r.HandleFunc("/api/listener/{name}", m.listenerDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	if m.metrics != nil {
		r.Handle("/metrics", m.metrics)
	}

	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the address.
func (m *Monitor) StartServer() (string, error) {
	if m.clock == nil {
		return "", errors.New("monitor: no clock registered")
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	addr := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	m.serverLock.Lock()
	m.server = server
	m.addr = addr
	m.serverLock.Unlock()

	m.log.WithField("url", addr).Info("monitoring simulation")

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.WithError(err).Error("monitor server stopped")
		}
	}()

	return addr, nil
}

// OpenBrowser opens the monitor page in the default browser.
func (m *Monitor) OpenBrowser() error {
	m.serverLock.Lock()
	addr := m.addr
	m.serverLock.Unlock()

	if addr == "" {
		return errors.New("monitor: server not started")
	}

	return browser.OpenURL(addr)
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.serverLock.Lock()
	server := m.server
	m.server = nil
	m.serverLock.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

func (m *Monitor) pause(w http.ResponseWriter, r *http.Request) {
	m.clock.Pause()
	m.state(w, r)
}

func (m *Monitor) resume(w http.ResponseWriter, r *http.Request) {
	m.clock.Resume()
	m.state(w, r)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.clock.MarsTime())
}

func (m *Monitor) lastPulse(w http.ResponseWriter, _ *http.Request) {
	pulse, ok := m.clock.LastPulse()
	if !ok {
		http.Error(w, "no pulse yet", http.StatusNotFound)
		return
	}

	m.writeJSON(w, pulse)
}

type stateRsp struct {
	State     timing.State `json:"state"`
	TimeRatio float64      `json:"time_ratio"`
	Pending   int          `json:"pending_events"`
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	rsp := stateRsp{
		State:     m.clock.State(),
		TimeRatio: m.clock.TimeRatio(),
	}

	if m.events != nil {
		rsp.Pending = m.events.Len()
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) setTimeRatio(w http.ResponseWriter, r *http.Request) {
	ratio, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		http.Error(w, "invalid value: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := m.clock.SetTimeRatio(ratio); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.state(w, r)
}

func (m *Monitor) listEvents(w http.ResponseWriter, _ *http.Request) {
	if m.events == nil {
		m.writeJSON(w, []events.EventInfo{})
		return
	}

	m.writeJSON(w, m.events.Events())
}

func (m *Monitor) listListeners(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.clock.ListenerNames())
}

func (m *Monitor) listenerDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	listener, ok := m.clock.Listener(name)
	if !ok {
		http.Error(w, "listener not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(listener)
	serializer.SetMaxDepth(1)

	w.Header().Set("Content-Type", "application/json")

	if err := serializer.Serialize(w); err != nil {
		m.log.WithError(err).WithField("listener", name).
			Warn("failed to serialize listener")
	}
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.internalError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.internalError(w, err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		m.log.WithError(err).Debug("failed to write response")
	}
}

func (m *Monitor) internalError(w http.ResponseWriter, err error) {
	m.log.WithError(err).Warn("monitor request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
