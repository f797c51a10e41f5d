package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// MemoryStore is an in-memory implementation of every store interface.
// WithinTx snapshots all collections and restores them when fn fails, so it
// behaves like the transactional relational backend. After DisableRollback it
// behaves like the document backend instead.
type MemoryStore struct {
	mu sync.Mutex

	users         map[string]models.User
	profiles      map[string]models.AdventurerProfile
	skills        map[string]models.AdventurerSkill
	orgs          map[string]models.NpcOrganization
	quests        map[string]models.Quest
	certs         map[string]models.Certificate
	notifications map[string]models.Notification

	clock      time.Time
	inTx       bool
	noRollback bool
	failOn     map[string]error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]models.User),
		profiles:      make(map[string]models.AdventurerProfile),
		skills:        make(map[string]models.AdventurerSkill),
		orgs:          make(map[string]models.NpcOrganization),
		quests:        make(map[string]models.Quest),
		certs:         make(map[string]models.Certificate),
		notifications: make(map[string]models.Notification),
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		failOn:        make(map[string]error),
	}
}

// Stores returns the store bundle backed by m.
func (m *MemoryStore) Stores() store.Stores {
	return store.Stores{
		Users:         &memUsers{m},
		Adventurers:   &memAdventurers{m},
		Organizations: &memOrganizations{m},
		Quests:        &memQuests{m},
		Certificates:  &memCertificates{m},
		Notifications: &memNotifications{m},
		Tx:            m,
	}
}

// Health always succeeds.
func (m *MemoryStore) Health(_ context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close(_ context.Context) error { return nil }

// FailOn makes the named operation (e.g. "quests.Update") return err until cleared with nil.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, op)
		return
	}
	m.failOn[op] = err
}

// DisableRollback makes WithinTx keep the writes of a failed fn.
func (m *MemoryStore) DisableRollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noRollback = true
}

// WithinTx runs fn and rolls every collection back if it returns an error.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if m.inTx || m.noRollback {
		m.mu.Unlock()
		return fn(ctx)
	}
	snap := m.snapshot()
	m.inTx = true
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inTx = false
	if err != nil {
		m.restore(snap)
	}
	return err
}

type snapshot struct {
	users         map[string]models.User
	profiles      map[string]models.AdventurerProfile
	skills        map[string]models.AdventurerSkill
	orgs          map[string]models.NpcOrganization
	quests        map[string]models.Quest
	certs         map[string]models.Certificate
	notifications map[string]models.Notification
}

func (m *MemoryStore) snapshot() snapshot {
	return snapshot{
		users:         copyMap(m.users),
		profiles:      copyMap(m.profiles),
		skills:        copyMap(m.skills),
		orgs:          copyMap(m.orgs),
		quests:        copyMap(m.quests),
		certs:         copyMap(m.certs),
		notifications: copyMap(m.notifications),
	}
}

func (m *MemoryStore) restore(s snapshot) {
	m.users = s.users
	m.profiles = s.profiles
	m.skills = s.skills
	m.orgs = s.orgs
	m.quests = s.quests
	m.certs = s.certs
	m.notifications = s.notifications
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// tick advances the fake clock so every write gets a distinct, ordered timestamp.
func (m *MemoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *MemoryStore) fail(op string) error {
	if err, ok := m.failOn[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type memUsers struct{ m *MemoryStore }

func (s *memUsers) Create(_ context.Context, user *models.User) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("users.Create"); err != nil {
		return err
	}

	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return duplicate("user")
		}
	}
	if user.ID == "" {
		user.ID = models.NewID()
	}
	user.CreatedAt = m.tick()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == strings.ToLower(email) }, email)
}

func (s *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == strings.ToLower(username) }, username)
}

func (s *memUsers) find(match func(models.User) bool, key string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, notFound("user", key)
}

type memAdventurers struct{ m *MemoryStore }

func (s *memAdventurers) Create(_ context.Context, profile *models.AdventurerProfile) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.UserID == profile.UserID {
			return duplicate("adventurer profile")
		}
	}
	if profile.ID == "" {
		profile.ID = models.NewID()
	}
	profile.CreatedAt = m.tick()
	profile.UpdatedAt = profile.CreatedAt
	m.profiles[profile.ID] = *profile
	return nil
}

func (s *memAdventurers) GetByUserID(_ context.Context, userID string) (*models.AdventurerProfile, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.profiles {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, notFound("adventurer profile for user", userID)
}

func (s *memAdventurers) UpdateDetails(_ context.Context, profile *models.AdventurerProfile) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("adventurers.UpdateDetails"); err != nil {
		return err
	}
	stored, ok := m.profiles[profile.ID]
	if !ok {
		return notFound("adventurer profile", profile.ID)
	}
	stored.Title = profile.Title
	stored.Bio = profile.Bio
	stored.ClassName = profile.ClassName
	stored.Attributes = profile.Attributes
	stored.UpdatedAt = m.tick()
	profile.UpdatedAt = stored.UpdatedAt
	m.profiles[profile.ID] = stored
	return nil
}

func (s *memAdventurers) AddXP(_ context.Context, userID string, xp int64) (*models.AdventurerProfile, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("adventurers.AddXP"); err != nil {
		return nil, err
	}
	for id, p := range m.profiles {
		if p.UserID != userID {
			continue
		}
		p.XP += xp
		p.QuestsCompleted++
		p.UpdatedAt = m.tick()
		m.profiles[id] = p
		return &p, nil
	}
	return nil, notFound("adventurer profile for user", userID)
}

func (s *memAdventurers) SetRank(_ context.Context, profileID string, xp int64, rank models.Rank) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.profiles[profileID]
	if !ok || p.XP != xp {
		return nil
	}
	p.Rank = rank
	s.m.profiles[profileID] = p
	return nil
}

func (s *memAdventurers) ListTopByXP(_ context.Context, limit int) ([]models.AdventurerProfile, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.AdventurerProfile, 0, len(s.m.profiles))
	for _, p := range s.m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return page(out, limit, 0), nil
}

func (s *memAdventurers) CreateSkill(_ context.Context, skill *models.AdventurerSkill) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sk := range m.skills {
		if sk.AdventurerID == skill.AdventurerID && sk.Name == skill.Name {
			return duplicate("skill")
		}
	}
	if skill.ID == "" {
		skill.ID = models.NewID()
	}
	skill.CreatedAt = m.tick()
	skill.UpdatedAt = skill.CreatedAt
	m.skills[skill.ID] = *skill
	return nil
}

func (s *memAdventurers) GetSkill(_ context.Context, id string) (*models.AdventurerSkill, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sk, ok := s.m.skills[id]
	if !ok {
		return nil, notFound("skill", id)
	}
	return &sk, nil
}

func (s *memAdventurers) ListSkills(_ context.Context, adventurerID string) ([]models.AdventurerSkill, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.AdventurerSkill{}
	for _, sk := range s.m.skills {
		if sk.AdventurerID == adventurerID {
			out = append(out, sk)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *memAdventurers) UpdateSkill(_ context.Context, skill *models.AdventurerSkill) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skills[skill.ID]; !ok {
		return notFound("skill", skill.ID)
	}
	for _, sk := range m.skills {
		if sk.ID != skill.ID && sk.AdventurerID == skill.AdventurerID && sk.Name == skill.Name {
			return duplicate("skill")
		}
	}
	skill.UpdatedAt = m.tick()
	m.skills[skill.ID] = *skill
	return nil
}

func (s *memAdventurers) DeleteSkill(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.skills[id]; !ok {
		return notFound("skill", id)
	}
	delete(s.m.skills, id)
	return nil
}

type memOrganizations struct{ m *MemoryStore }

func (s *memOrganizations) Create(_ context.Context, org *models.NpcOrganization) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.UserID == org.UserID || o.Slug == org.Slug {
			return duplicate("organization")
		}
	}
	if org.ID == "" {
		org.ID = models.NewID()
	}
	org.CreatedAt = m.tick()
	org.UpdatedAt = org.CreatedAt
	m.orgs[org.ID] = *org
	return nil
}

func (s *memOrganizations) GetByID(_ context.Context, id string) (*models.NpcOrganization, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.orgs[id]
	if !ok {
		return nil, notFound("organization", id)
	}
	return &o, nil
}

func (s *memOrganizations) GetByUserID(_ context.Context, userID string) (*models.NpcOrganization, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, o := range s.m.orgs {
		if o.UserID == userID {
			return &o, nil
		}
	}
	return nil, notFound("organization for user", userID)
}

func (s *memOrganizations) UpdateProfile(_ context.Context, org *models.NpcOrganization) error {
	return s.update(org, func(stored *models.NpcOrganization) {
		stored.Name = org.Name
		stored.Description = org.Description
		stored.Website = org.Website
		stored.Location = org.Location
		stored.ContactEmail = org.ContactEmail
	})
}

func (s *memOrganizations) UpdateModeration(_ context.Context, org *models.NpcOrganization) error {
	return s.update(org, func(stored *models.NpcOrganization) {
		stored.Verified = org.Verified
		stored.IsFlagged = org.IsFlagged
		stored.FlagReason = org.FlagReason
	})
}

func (s *memOrganizations) UpdateTrust(_ context.Context, org *models.NpcOrganization) error {
	return s.update(org, func(stored *models.NpcOrganization) {
		stored.TrustScore = org.TrustScore
		stored.TrustTier = org.TrustTier
	})
}

// update copies the fields set by apply onto the stored organization.
func (s *memOrganizations) update(org *models.NpcOrganization, apply func(stored *models.NpcOrganization)) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("organizations.Update"); err != nil {
		return err
	}
	stored, ok := m.orgs[org.ID]
	if !ok {
		return notFound("organization", org.ID)
	}
	apply(&stored)
	stored.UpdatedAt = m.tick()
	org.UpdatedAt = stored.UpdatedAt
	m.orgs[org.ID] = stored
	return nil
}

func (s *memOrganizations) List(_ context.Context, filter store.OrganizationFilter) ([]models.NpcOrganization, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.NpcOrganization{}
	for _, o := range s.m.orgs {
		if filter.Verified != nil && o.Verified != *filter.Verified {
			continue
		}
		if filter.Flagged != nil && o.IsFlagged != *filter.Flagged {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), int64(len(out)), nil
}

type memQuests struct{ m *MemoryStore }

func (s *memQuests) Create(_ context.Context, quest *models.Quest) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if quest.ID == "" {
		quest.ID = models.NewID()
	}
	if quest.Tags == nil {
		quest.Tags = []string{}
	}
	quest.CreatedAt = m.tick()
	quest.UpdatedAt = quest.CreatedAt
	m.quests[quest.ID] = *quest
	return nil
}

func (s *memQuests) GetByID(_ context.Context, id string) (*models.Quest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.quests[id]
	if !ok {
		return nil, notFound("quest", id)
	}
	return &q, nil
}

func (s *memQuests) Update(_ context.Context, quest *models.Quest) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("quests.Update"); err != nil {
		return err
	}
	if _, ok := m.quests[quest.ID]; !ok {
		return notFound("quest", quest.ID)
	}
	quest.UpdatedAt = m.tick()
	m.quests[quest.ID] = *quest
	return nil
}

func (s *memQuests) MarkCompleted(_ context.Context, id string, at time.Time) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("quests.MarkCompleted"); err != nil {
		return err
	}
	q, ok := m.quests[id]
	if !ok {
		return notFound("quest", id)
	}
	if q.Status != models.QuestPosted && q.Status != models.QuestInProgress {
		return fmt.Errorf("quest %s is %s: %w", id, q.Status, store.ErrConflict)
	}
	q.Status = models.QuestCompleted
	q.CompletedAt = &at
	q.UpdatedAt = m.tick()
	m.quests[id] = q
	return nil
}

func (s *memQuests) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.quests[id]; !ok {
		return notFound("quest", id)
	}
	delete(s.m.quests, id)
	return nil
}

func (s *memQuests) ListByCreator(_ context.Context, creatorID string, status models.QuestStatus) ([]models.Quest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.Quest{}
	for _, q := range s.m.quests {
		if q.CreatedBy != creatorID || (status != "" && q.Status != status) {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memCertificates struct{ m *MemoryStore }

func (s *memCertificates) Create(_ context.Context, cert *models.Certificate) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("certificates.Create"); err != nil {
		return err
	}
	for _, c := range m.certs {
		if c.QuestID == cert.QuestID || c.ScrollID == cert.ScrollID {
			return duplicate("certificate")
		}
	}
	if cert.ID == "" {
		cert.ID = models.NewID()
	}
	m.certs[cert.ID] = *cert
	return nil
}

func (s *memCertificates) GetByQuestID(_ context.Context, questID string) (*models.Certificate, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.certs {
		if c.QuestID == questID {
			return &c, nil
		}
	}
	return nil, notFound("certificate for quest", questID)
}

func (s *memCertificates) ListByAdventurer(_ context.Context, adventurerID string) ([]models.Certificate, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.Certificate{}
	for _, c := range s.m.certs {
		if c.AdventurerID == adventurerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

// CertificateCount returns how many certificates exist.
func (m *MemoryStore) CertificateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.certs)
}

type memNotifications struct{ m *MemoryStore }

func (s *memNotifications) Create(_ context.Context, n *models.Notification) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("notifications.Create"); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = models.NewID()
	}
	n.CreatedAt = m.tick()
	m.notifications[n.ID] = *n
	return nil
}

func (s *memNotifications) GetByID(_ context.Context, id string) (*models.Notification, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n, ok := s.m.notifications[id]
	if !ok {
		return nil, notFound("notification", id)
	}
	return &n, nil
}

func (s *memNotifications) ListByUser(_ context.Context, userID string, filter store.NotificationFilter) ([]models.Notification, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range s.m.notifications {
		if n.UserID != userID || (filter.UnreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *memNotifications) MarkRead(_ context.Context, id string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n, ok := s.m.notifications[id]
	if !ok || n.Read {
		return nil
	}
	n.Read = true
	n.ReadAt = &at
	s.m.notifications[id] = n
	return nil
}

func (s *memNotifications) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var changed int64
	for id, n := range s.m.notifications {
		if n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &at
		s.m.notifications[id] = n
		changed++
	}
	return changed, nil
}

func (s *memNotifications) CountUnread(_ context.Context, userID string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var count int64
	for _, n := range s.m.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *memNotifications) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var purged int64
	for id, n := range s.m.notifications {
		if n.Read && n.CreatedAt.Before(cutoff) {
			delete(s.m.notifications, id)
			purged++
		}
	}
	return purged, nil
}
