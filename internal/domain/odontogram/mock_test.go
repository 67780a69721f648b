package odontogram

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odonto/charting/internal/domain/contribution"
	"github.com/odonto/charting/internal/domain/dentition"
	"github.com/odonto/charting/internal/platform/apperr"
	"github.com/odonto/charting/internal/platform/events"
)

// =========== Mock Repository ===========

type mockRepo struct {
	mu       sync.Mutex
	clock    time.Time
	charts   map[uuid.UUID]Odontogram
	teeth    map[uuid.UUID]ToothRecord
	toothSeq map[uuid.UUID]int
	surfaces map[uuid.UUID]ToothSurface
	plans    map[uuid.UUID]TreatmentPlan
	planSeq  map[uuid.UUID]int
	seq      int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		clock:    time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		charts:   map[uuid.UUID]Odontogram{},
		teeth:    map[uuid.UUID]ToothRecord{},
		toothSeq: map[uuid.UUID]int{},
		surfaces: map[uuid.UUID]ToothSurface{},
		plans:    map[uuid.UUID]TreatmentPlan{},
		planSeq:  map[uuid.UUID]int{},
	}
}

func (m *mockRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockRepo) next() int {
	m.seq++
	return m.seq
}

type repoSnapshot struct {
	charts   map[uuid.UUID]Odontogram
	teeth    map[uuid.UUID]ToothRecord
	toothSeq map[uuid.UUID]int
	surfaces map[uuid.UUID]ToothSurface
	plans    map[uuid.UUID]TreatmentPlan
	planSeq  map[uuid.UUID]int
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *mockRepo) snapshot() repoSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return repoSnapshot{
		charts: copyMap(m.charts), teeth: copyMap(m.teeth), toothSeq: copyMap(m.toothSeq),
		surfaces: copyMap(m.surfaces), plans: copyMap(m.plans), planSeq: copyMap(m.planSeq),
	}
}

func (m *mockRepo) restore(s repoSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charts, m.teeth, m.toothSeq = s.charts, s.teeth, s.toothSeq
	m.surfaces, m.plans, m.planSeq = s.surfaces, s.plans, s.planSeq
}

func (m *mockRepo) Create(_ context.Context, o *Odontogram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.charts {
		if c.PatientID == o.PatientID {
			return apperr.Conflict("patient %d already has an odontogram", o.PatientID)
		}
	}
	o.ID = uuid.New()
	o.Version = 1
	o.CreatedAt = m.tick()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	stored.ToothRecords = nil
	m.charts[o.ID] = stored
	return nil
}

func (m *mockRepo) assemble(o Odontogram) *Odontogram {
	o.ToothRecords = []ToothRecord{}
	var ids []uuid.UUID
	for id, t := range m.teeth {
		if t.OdontogramID == o.ID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return m.toothSeq[ids[i]] < m.toothSeq[ids[j]] })
	for _, id := range ids {
		o.ToothRecords = append(o.ToothRecords, *m.loadTooth(m.teeth[id]))
	}
	return &o
}

func (m *mockRepo) loadTooth(t ToothRecord) *ToothRecord {
	t.Surfaces = []ToothSurface{}
	for _, s := range m.surfaces {
		if s.ToothRecordID == t.ID {
			t.Surfaces = append(t.Surfaces, s)
		}
	}
	sort.Slice(t.Surfaces, func(i, j int) bool { return t.Surfaces[i].SurfaceType < t.Surfaces[j].SurfaceType })
	t.Treatments = m.plansWhere(func(p TreatmentPlan) bool { return p.ToothRecordID == t.ID })
	return &t
}

func (m *mockRepo) plansWhere(keep func(TreatmentPlan) bool) []TreatmentPlan {
	out := []TreatmentPlan{}
	for _, p := range m.plans {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.planSeq[out[i].ID] < m.planSeq[out[j].ID] })
	return out
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Odontogram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.charts[id]
	if !ok {
		return nil, apperr.NotFound("odontogram %s not found", id)
	}
	return m.assemble(o), nil
}

func (m *mockRepo) GetLatestByPatient(_ context.Context, patientID int64) (*Odontogram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Odontogram
	for _, o := range m.charts {
		if o.PatientID != patientID {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			cp := o
			latest = &cp
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("no odontogram for patient %d", patientID)
	}
	return m.assemble(*latest), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID int64, limit, offset int) ([]*Odontogram, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Odontogram
	for _, o := range m.charts {
		if o.PatientID == patientID {
			out = append(out, m.assemble(o))
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateNotes(_ context.Context, o *Odontogram, expected *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.charts[o.ID]
	if !ok || (expected != nil && cur.Version != *expected) {
		return apperr.Conflict("odontogram %s was modified concurrently", o.ID)
	}
	cur.GeneralNotes = o.GeneralNotes
	cur.Version++
	cur.UpdatedAt = m.tick()
	m.charts[o.ID] = cur
	o.Version, o.UpdatedAt = cur.Version, cur.UpdatedAt
	return nil
}

func (m *mockRepo) Touch(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.charts[id]
	if !ok {
		return apperr.NotFound("odontogram %s not found", id)
	}
	cur.UpdatedAt = m.tick()
	m.charts[id] = cur
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.charts[id]; !ok {
		return apperr.NotFound("odontogram %s not found", id)
	}
	delete(m.charts, id)
	for tid, t := range m.teeth {
		if t.OdontogramID != id {
			continue
		}
		for sid, s := range m.surfaces {
			if s.ToothRecordID == tid {
				delete(m.surfaces, sid)
			}
		}
		for pid, p := range m.plans {
			if p.ToothRecordID == tid {
				delete(m.plans, pid)
			}
		}
		delete(m.teeth, tid)
	}
	return nil
}

func (m *mockRepo) GetTooth(_ context.Context, odontogramID uuid.UUID, toothNumber string) (*ToothRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teeth {
		if t.OdontogramID == odontogramID && t.ToothNumber == toothNumber {
			return m.loadTooth(t), nil
		}
	}
	return nil, apperr.NotFound("tooth %s has no record on odontogram %s", toothNumber, odontogramID)
}

func (m *mockRepo) CreateTooth(_ context.Context, t *ToothRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.teeth {
		if cur.OdontogramID == t.OdontogramID && cur.ToothNumber == t.ToothNumber {
			return false, nil
		}
	}
	t.ID = uuid.New()
	t.Version = 1
	t.CreatedAt = m.tick()
	t.UpdatedAt = t.CreatedAt
	stored := *t
	stored.Surfaces, stored.Treatments = nil, nil
	m.teeth[t.ID] = stored
	m.toothSeq[t.ID] = m.next()
	return true, nil
}

func (m *mockRepo) UpdateTooth(_ context.Context, t *ToothRecord, expected *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.teeth[t.ID]
	if !ok || (expected != nil && cur.Version != *expected) {
		return apperr.Conflict("tooth %s was modified concurrently", t.ToothNumber)
	}
	cur.Status, cur.Notes = t.Status, t.Notes
	cur.Version++
	cur.UpdatedAt = m.tick()
	m.teeth[t.ID] = cur
	t.Version, t.UpdatedAt = cur.Version, cur.UpdatedAt
	return nil
}

func (m *mockRepo) GetSurface(_ context.Context, toothRecordID uuid.UUID, surfaceType dentition.SurfaceType) (*ToothSurface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.surfaces {
		if s.ToothRecordID == toothRecordID && s.SurfaceType == surfaceType {
			cp := s
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("surface %s not recorded", surfaceType)
}

func (m *mockRepo) CreateSurface(_ context.Context, s *ToothSurface) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.surfaces {
		if cur.ToothRecordID == s.ToothRecordID && cur.SurfaceType == s.SurfaceType {
			return false, nil
		}
	}
	s.ID = uuid.New()
	s.Version = 1
	s.CreatedAt = m.tick()
	s.UpdatedAt = s.CreatedAt
	m.surfaces[s.ID] = *s
	return true, nil
}

func (m *mockRepo) UpdateSurface(_ context.Context, s *ToothSurface, expected *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.surfaces[s.ID]
	if !ok || (expected != nil && cur.Version != *expected) {
		return apperr.Conflict("surface %s was modified concurrently", s.SurfaceType)
	}
	cur.Status, cur.Notes = s.Status, s.Notes
	cur.Version++
	cur.UpdatedAt = m.tick()
	m.surfaces[s.ID] = cur
	s.Version, s.UpdatedAt = cur.Version, cur.UpdatedAt
	return nil
}

func (m *mockRepo) GetTreatment(_ context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, apperr.NotFound("treatment plan %s not found", id)
	}
	return &p, nil
}

func (m *mockRepo) CreateTreatment(_ context.Context, p *TreatmentPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teeth[p.ToothRecordID]
	if !ok {
		return errors.New("foreign key violation: tooth_record")
	}
	p.ID = uuid.New()
	p.Version = 1
	p.OdontogramID, p.ToothNumber = t.OdontogramID, t.ToothNumber
	p.CreatedAt = m.tick()
	p.UpdatedAt = p.CreatedAt
	m.plans[p.ID] = *p
	m.planSeq[p.ID] = m.next()
	return nil
}

func (m *mockRepo) UpdateTreatment(_ context.Context, p *TreatmentPlan, expected *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.plans[p.ID]
	if !ok || cur.Status.Terminal() || (expected != nil && cur.Version != *expected) {
		return apperr.Conflict("treatment plan %s was modified concurrently", p.ID)
	}
	cur.Status, cur.CompletedDate = p.Status, p.CompletedDate
	cur.Version++
	cur.UpdatedAt = m.tick()
	m.plans[p.ID] = cur
	p.Version, p.UpdatedAt = cur.Version, cur.UpdatedAt
	return nil
}

func (m *mockRepo) ListTreatments(_ context.Context, odontogramID uuid.UUID, statuses []TreatmentStatus) ([]TreatmentPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plansWhere(func(p TreatmentPlan) bool {
		if p.OdontogramID != odontogramID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, s := range statuses {
			if p.Status == s {
				return true
			}
		}
		return false
	}), nil
}

// =========== Mock Ledger Repository ===========

type mockLedgerRepo struct {
	mu      sync.Mutex
	items   []contribution.Contribution
	clock   time.Time
	failing bool
}

func (m *mockLedgerRepo) Append(_ context.Context, c *contribution.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("ledger unavailable")
	}
	c.ID = uuid.New()
	c.Seq = int64(len(m.items) + 1)
	m.clock = m.clock.Add(time.Second)
	c.ContributionDate = m.clock
	m.items = append(m.items, *c)
	return nil
}

func (m *mockLedgerRepo) ListByOdontogram(_ context.Context, odontogramID uuid.UUID, f contribution.Filter, limit, offset int) ([]*contribution.Contribution, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*contribution.Contribution
	for _, c := range m.items {
		if c.OdontogramID != odontogramID || (f.ActionType != "" && c.ActionType != f.ActionType) {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	total := len(out)
	if limit > 0 && offset < len(out) {
		end := offset + limit
		if end > len(out) {
			end = len(out)
		}
		out = out[offset:end]
	}
	return out, total, nil
}

func (m *mockLedgerRepo) count(odontogramID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.items {
		if c.OdontogramID == odontogramID {
			n++
		}
	}
	return n
}

// =========== Transactor ===========

// snapshotTx restores both stores when fn fails, like a rolled back
// transaction would.
type snapshotTx struct {
	repo   *mockRepo
	ledger *mockLedgerRepo
}

func (s snapshotTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := s.repo.snapshot()
	s.ledger.mu.Lock()
	items := append([]contribution.Contribution(nil), s.ledger.items...)
	s.ledger.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.repo.restore(snap)
		s.ledger.mu.Lock()
		s.ledger.items = items
		s.ledger.mu.Unlock()
		return err
	}
	return nil
}

// =========== Publisher ===========

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ContributionRecorded
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.ContributionRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Backend() string { return "test" }
func (p *recordingPublisher) Close() error    { return nil }
