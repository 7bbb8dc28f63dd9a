package store

import (
	"context"
	"sync"
	"time"

	"amuguard/internal/model"
)

// memoryStore backs tests and DSN-less runs. The same conditional-insert
// contract as the SQL stores holds, guarded by the mutex.
type memoryStore struct {
	mu            sync.Mutex
	farms         map[string]model.Farm
	farmOrder     []string
	events        []model.UsageEvent
	amuAlerts     []model.AMUAlert
	diseaseAlerts []model.DiseaseAlert
	nextID        int64
}

func NewMemory() Store {
	return &memoryStore{farms: make(map[string]model.Farm), nextID: 1}
}

func (s *memoryStore) Init(ctx context.Context) error { return nil }
func (s *memoryStore) Close() error                   { return nil }

func (s *memoryStore) ListFarms(ctx context.Context) ([]model.Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Farm, 0, len(s.farmOrder))
	for _, id := range s.farmOrder {
		out = append(out, s.farms[id])
	}
	return out, nil
}

func (s *memoryStore) UpsertFarm(ctx context.Context, farm model.Farm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.farms[farm.ID]; !ok {
		s.farmOrder = append(s.farmOrder, farm.ID)
	}
	s.farms[farm.ID] = farm
	return nil
}

func (s *memoryStore) InsertUsageEvent(ctx context.Context, ev model.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = nowUTC()
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memoryStore) CountUsageEvents(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.events {
		if ev.FarmID != farmID {
			continue
		}
		if status != "" && ev.Status != status {
			continue
		}
		if inRange(ev.StartDate, from, to) {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) CountUsageByFarm(ctx context.Context, status model.UsageStatus, from, to time.Time) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, ev := range s.events {
		if status != "" && ev.Status != status {
			continue
		}
		if inRange(ev.StartDate, from, to) {
			out[ev.FarmID]++
		}
	}
	return out, nil
}

func (s *memoryStore) CountUsageByDrug(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, ev := range s.events {
		if ev.FarmID != farmID {
			continue
		}
		if status != "" && ev.Status != status {
			continue
		}
		if inRange(ev.StartDate, from, to) {
			out[ev.DrugName]++
		}
	}
	return out, nil
}

func (s *memoryStore) FindOpenAMUAlert(ctx context.Context, farmID string, alertType model.AlertType) (*model.AMUAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.amuAlerts {
		a := s.amuAlerts[i]
		if a.FarmID == farmID && a.AlertType == alertType && a.Status == model.StatusNew {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) CreateAMUAlert(ctx context.Context, alert *model.AMUAlert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.amuAlerts {
		if a.FarmID == alert.FarmID && a.AlertType == alert.AlertType && a.Status == model.StatusNew {
			return false, nil
		}
	}
	now := nowUTC()
	alert.ID = s.nextID
	s.nextID++
	alert.Status = model.StatusNew
	alert.CreatedAt = now
	alert.UpdatedAt = now
	s.amuAlerts = append(s.amuAlerts, *alert)
	return true, nil
}

func (s *memoryStore) UpdateAMUAlertStatus(ctx context.Context, id int64, status model.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.amuAlerts {
		if s.amuAlerts[i].ID != id {
			continue
		}
		if !validTransition(s.amuAlerts[i].Status, status) {
			return ErrInvalidTransition
		}
		s.amuAlerts[i].Status = status
		s.amuAlerts[i].UpdatedAt = nowUTC()
		return nil
	}
	return ErrNotFound
}

func (s *memoryStore) ListAMUAlerts(ctx context.Context, limit int) ([]model.AMUAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AMUAlert, 0, len(s.amuAlerts))
	for i := len(s.amuAlerts) - 1; i >= 0; i-- {
		out = append(out, s.amuAlerts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memoryStore) FindOpenDiseaseAlert(ctx context.Context, farmID, diseaseName string) (*model.DiseaseAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.diseaseAlerts {
		a := s.diseaseAlerts[i]
		if a.FarmID == farmID && a.DiseaseName == diseaseName && a.Status == model.StatusNew {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) CreateDiseaseAlert(ctx context.Context, alert *model.DiseaseAlert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.diseaseAlerts {
		if a.FarmID == alert.FarmID && a.DiseaseName == alert.DiseaseName && a.Status == model.StatusNew {
			return false, nil
		}
	}
	alert.ID = s.nextID
	s.nextID++
	alert.Status = model.StatusNew
	alert.CreatedAt = nowUTC()
	s.diseaseAlerts = append(s.diseaseAlerts, *alert)
	return true, nil
}

func (s *memoryStore) ListDiseaseAlerts(ctx context.Context, limit int) ([]model.DiseaseAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DiseaseAlert, 0, len(s.diseaseAlerts))
	for i := len(s.diseaseAlerts) - 1; i >= 0; i-- {
		out = append(out, s.diseaseAlerts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}
