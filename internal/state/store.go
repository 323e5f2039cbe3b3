// FilePath: internal/state/store.go
package state

import (
	"sync"
	"time"

	"github.com/pcdvisual/telemetry-hub/internal/models"
)

// Caps bounds the in-memory sequences of a Store.
type Caps struct {
	Recent  int
	History int
	Alerts  int
}

// DefaultCaps returns the caps used when none are configured.
func DefaultCaps() Caps {
	return Caps{Recent: 5, History: 100, Alerts: 50}
}

// Store holds module liveness, detection history, the alert log and the
// active device connection per role. Every exported method is atomic.
type Store struct {
	mu sync.RWMutex

	caps     Caps
	modules  map[models.ModuleName]*models.ModuleStatus
	recent   []models.Detection
	history  []models.Detection
	alerts   []models.SystemAlert
	devices  map[models.Role]models.DeviceConnection
	accepted int
}

func NewStore(caps Caps) *Store {
	def := DefaultCaps()
	if caps.Recent <= 0 {
		caps.Recent = def.Recent
	}
	if caps.History <= 0 {
		caps.History = def.History
	}
	if caps.Alerts <= 0 {
		caps.Alerts = def.Alerts
	}

	return &Store{
		caps: caps,
		modules: map[models.ModuleName]*models.ModuleStatus{
			models.ModulePai:    {},
			models.ModuleSensor: {},
			models.ModuleMotor:  {},
			models.ModuleCamera: {},
		},
		recent:  make([]models.Detection, 0, caps.Recent),
		history: make([]models.Detection, 0, caps.History),
		alerts:  make([]models.SystemAlert, 0, caps.Alerts),
		devices: make(map[models.Role]models.DeviceConnection),
	}
}

func (s *Store) Caps() Caps { return s.caps }

// UpdateModuleStatus applies patch to a single module.
func (s *Store) UpdateModuleStatus(module models.ModuleName, patch models.StatusPatch) bool {
	return s.UpdateModules(models.ModulePatch{Module: module, Patch: patch})
}

// UpdateModules applies all patches or none of them. It returns false when a
// patch names an unknown module.
func (s *Store) UpdateModules(patches ...models.ModulePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range patches {
		if _, ok := s.modules[p.Module]; !ok {
			return false
		}
	}
	for _, p := range patches {
		applyPatch(s.modules[p.Module], p.Patch)
	}
	return true
}

func applyPatch(st *models.ModuleStatus, p models.StatusPatch) {
	if p.Connected != nil {
		st.Connected = *p.Connected
	}
	if p.SeenAt != nil && (st.LastSeen == nil || p.SeenAt.After(*st.LastSeen)) {
		seen := *p.SeenAt
		st.LastSeen = &seen
	}
	if p.Distance != nil {
		st.Distance = models.Float(*p.Distance)
	}
	if p.Level != nil {
		st.Level = models.String(*p.Level)
	}
	if p.RSSI != nil {
		st.RSSI = models.Float(*p.RSSI)
	}
	if p.VibrationLevel != nil {
		st.VibrationLevel = models.Float(*p.VibrationLevel)
	}
	if p.FrameCount != nil {
		st.FrameCount = models.Float(*p.FrameCount)
	}
}

// AppendDetection appends d to the recent window and to the history,
// evicting the oldest entries past each cap.
func (s *Store) AppendDetection(d models.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.Objects = append([]string(nil), d.Objects...)
	s.recent = appendBounded(s.recent, d, s.caps.Recent)
	s.history = appendBounded(s.history, d, s.caps.History)
	s.accepted++
}

func appendBounded(seq []models.Detection, d models.Detection, limit int) []models.Detection {
	if len(seq) >= limit {
		n := copy(seq, seq[len(seq)-limit+1:])
		seq = seq[:n]
	}
	return append(seq, d)
}

// AppendAlert inserts a at the head of the alert log.
func (s *Store) AppendAlert(a models.SystemAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.alerts) < s.caps.Alerts {
		s.alerts = append(s.alerts, models.SystemAlert{})
	}
	copy(s.alerts[1:], s.alerts)
	s.alerts[0] = a
}

// SetDeviceConnection installs h as the active connection for role and
// returns the handle it replaced, if any. A nil h clears the slot.
func (s *Store) SetDeviceConnection(role models.Role, h models.DeviceConnection) models.DeviceConnection {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.devices[role]
	if h == nil {
		delete(s.devices, role)
	} else {
		s.devices[role] = h
	}
	return prev
}

// ReleaseDeviceConnection clears the slot for role only if h is still the
// active handle. It reports whether the slot was cleared.
func (s *Store) ReleaseDeviceConnection(role models.Role, h models.DeviceConnection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.devices[role]
	if !ok || cur != h {
		return false
	}
	delete(s.devices, role)
	return true
}

func (s *Store) DeviceConnection(role models.Role) (models.DeviceConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.devices[role]
	return h, ok
}

// ModuleStatuses returns a deep copy of all module statuses.
func (s *Store) ModuleStatuses() models.ModuleStatuses {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.ModuleStatuses{
		Pai:    cloneStatus(s.modules[models.ModulePai]),
		Sensor: cloneStatus(s.modules[models.ModuleSensor]),
		Motor:  cloneStatus(s.modules[models.ModuleMotor]),
		Camera: cloneStatus(s.modules[models.ModuleCamera]),
	}
}

// ModuleStatus returns a copy of one module's status.
func (s *Store) ModuleStatus(module models.ModuleName) (models.ModuleStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.modules[module]
	if !ok {
		return models.ModuleStatus{}, false
	}
	return cloneStatus(st), true
}

func cloneStatus(st *models.ModuleStatus) models.ModuleStatus {
	out := models.ModuleStatus{Connected: st.Connected}
	if st.LastSeen != nil {
		t := *st.LastSeen
		out.LastSeen = &t
	}
	if st.Distance != nil {
		out.Distance = models.Float(*st.Distance)
	}
	if st.Level != nil {
		out.Level = models.String(*st.Level)
	}
	if st.RSSI != nil {
		out.RSSI = models.Float(*st.RSSI)
	}
	if st.VibrationLevel != nil {
		out.VibrationLevel = models.Float(*st.VibrationLevel)
	}
	if st.FrameCount != nil {
		out.FrameCount = models.Float(*st.FrameCount)
	}
	return out
}

// History returns the detection history, oldest first.
func (s *Store) History() []models.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDetections(s.history)
}

// RecentHistory returns at most n of the newest history entries, oldest first.
func (s *Store) RecentHistory(n int) []models.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n > len(s.history) {
		n = len(s.history)
	}
	return cloneDetections(s.history[len(s.history)-n:])
}

// Recent returns the short detection window, oldest first.
func (s *Store) Recent() []models.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDetections(s.recent)
}

// LatestDetection returns the newest detection, if any.
func (s *Store) LatestDetection() (models.Detection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return models.Detection{}, false
	}
	return cloneDetection(s.history[len(s.history)-1]), true
}

// HistoryCount returns the number of detections currently retained.
func (s *Store) HistoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// AcceptedDetections returns the number of detections ever appended.
func (s *Store) AcceptedDetections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accepted
}

// Alerts returns the alert log, newest first.
func (s *Store) Alerts() []models.SystemAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SystemAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func cloneDetections(in []models.Detection) []models.Detection {
	out := make([]models.Detection, len(in))
	for i, d := range in {
		out[i] = cloneDetection(d)
	}
	return out
}

func cloneDetection(d models.Detection) models.Detection {
	d.Objects = append([]string{}, d.Objects...)
	if d.Confidence != nil {
		d.Confidence = models.Float(*d.Confidence)
	}
	return d
}

// Seen is a convenience patch marking a module connected at t.
func Seen(t time.Time) models.StatusPatch {
	return models.StatusPatch{Connected: models.Bool(true), SeenAt: &t}
}
