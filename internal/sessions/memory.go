package sessions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository used for unit tests and local runs
// without MongoDB. Mutations take the write lock, so the conditional-update
// semantics match the Mongo implementation.
type MemoryRepo struct {
	mu     sync.RWMutex
	store  map[string]*Session // by id
	byHash map[string]string   // tokenHash -> id
	byJTI  map[string]string   // jwtJti -> id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		store:  make(map[string]*Session),
		byHash: make(map[string]string),
		byJTI:  make(map[string]string),
	}
}

func copySession(s *Session) *Session {
	c := *s
	if s.DeviceInfo != nil {
		di := *s.DeviceInfo
		c.DeviceInfo = &di
	}
	return &c
}

func (m *MemoryRepo) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if prevID, ok := m.byHash[s.TokenHash]; ok {
		if prev := m.store[prevID]; prev != nil && now.Before(prev.ExpiresAt) {
			return ErrDuplicateToken
		}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	m.store[s.ID] = copySession(s)
	m.byHash[s.TokenHash] = s.ID
	m.byJTI[s.JwtJTI] = s.ID
	return nil
}

func (m *MemoryRepo) GetByTokenHash(ctx context.Context, hash string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHash[hash]
	if !ok {
		return nil, nil
	}
	s := m.store[id]
	if s == nil || !s.Active(time.Now().UTC()) {
		return nil, nil
	}
	return copySession(s), nil
}

func (m *MemoryRepo) GetByJTI(ctx context.Context, jti string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byJTI[jti]
	if !ok {
		return nil, nil
	}
	s := m.store[id]
	if s == nil {
		return nil, nil
	}
	return copySession(s), nil
}

func (m *MemoryRepo) RevokeByID(ctx context.Context, id, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.IsRevoked {
		return false, nil
	}
	if ownerID != "" && s.UserID != ownerID {
		return false, nil
	}
	s.IsRevoked = true
	s.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepo) RevokeByJTIs(ctx context.Context, jtis []string) (int64, error) {
	if len(jtis) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, jti := range jtis {
		id, ok := m.byJTI[jti]
		if !ok {
			continue
		}
		if s := m.store[id]; s != nil && !s.IsRevoked {
			s.IsRevoked = true
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) RevokeAllForUser(ctx context.Context, userID, exceptID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, s := range m.store {
		if s.UserID != userID || s.IsRevoked || s.ID == exceptID {
			continue
		}
		s.IsRevoked = true
		s.UpdatedAt = now
		n++
	}
	return n, nil
}

func (m *MemoryRepo) PurgeExpired(ctx context.Context, expiredBefore, revokedBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.store {
		if s.ExpiresAt.Before(expiredBefore) || (s.IsRevoked && s.CreatedAt.Before(revokedBefore)) {
			delete(m.store, id)
			if m.byHash[s.TokenHash] == id {
				delete(m.byHash, s.TokenHash)
			}
			if m.byJTI[s.JwtJTI] == id {
				delete(m.byJTI, s.JwtJTI)
			}
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) ListActiveForUser(ctx context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now().UTC()
	out := []*Session{}
	for _, s := range m.store {
		if s.UserID == userID && s.Active(now) {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Session{}
	for _, s := range m.store {
		if s.UserID == userID {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) StatsForUser(ctx context.Context, userID string) (*Stats, error) {
	rows, err := m.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return aggregateStats(rows, time.Now().UTC()), nil
}

// aggregateStats computes Stats from raw rows; shared with tests and kept in
// one place so both repository implementations agree on the definitions.
func aggregateStats(rows []*Session, now time.Time) *Stats {
	st := &Stats{TotalSessions: len(rows)}
	devices := map[string]struct{}{}
	var durationSum float64
	var durationN int
	for _, s := range rows {
		if s.Active(now) {
			st.ActiveSessions++
		}
		if s.IsRevoked {
			st.RevokedSessions++
		}
		if !s.ExpiresAt.After(now) {
			st.ExpiredSessions++
		}
		if s.DeviceInfo != nil && s.DeviceInfo.DeviceType != "" {
			devices[s.DeviceInfo.DeviceType] = struct{}{}
		}
		if st.MostRecentActivity == nil || s.CreatedAt.After(*st.MostRecentActivity) {
			t := s.CreatedAt
			st.MostRecentActivity = &t
		}
		// average duration over the last 30 days: min(expiresAt, updatedAt|now) - createdAt
		if s.CreatedAt.After(now.Add(-30 * 24 * time.Hour)) {
			end := s.UpdatedAt
			if end.IsZero() {
				end = now
			}
			if s.ExpiresAt.Before(end) {
				end = s.ExpiresAt
			}
			durationSum += end.Sub(s.CreatedAt).Hours()
			durationN++
		}
	}
	st.UniqueDevices = len(devices)
	if durationN > 0 {
		avg := durationSum / float64(durationN)
		st.AvgDurationHours = &avg
	}
	return st
}
