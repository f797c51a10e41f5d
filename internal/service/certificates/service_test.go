package certificates

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/pkg/logger"
	"github.com/tavern-guild/tavern/test/mocks"
)

type fakeArchiver struct {
	archived []string
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, cert *models.Certificate) error {
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, cert.ScrollID)
	return nil
}

var scrollPattern = regexp.MustCompile(`^SOD-[0-9A-Z]+-[0-9A-F]{6}$`)

func TestNewScrollID(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a := NewScrollID(at)
	b := NewScrollID(at)

	assert.Regexp(t, scrollPattern, a)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "SOD-LVNRM2O0-"), a)
}

func TestIssue_OncePerQuest(t *testing.T) {
	mem := mocks.NewMemoryStore()
	svc := NewService(mem.Stores(), nil, logger.Nop())
	ctx := context.Background()

	quest := &models.Quest{ID: "q1", Title: "Slay the wyrm", Difficulty: models.DifficultyEpic}
	in := IssueInput{AdventurerID: "adv", Quest: quest, OrganizationName: "Ravenhold", XPAwarded: 700, RankAtIssue: models.RankC}

	cert, err := svc.Issue(ctx, in)
	require.NoError(t, err)
	assert.Regexp(t, scrollPattern, cert.ScrollID)
	assert.Equal(t, "Ravenhold", cert.OrganizationName)
	assert.Equal(t, models.DifficultyEpic, cert.Difficulty)

	_, err = svc.Issue(ctx, in)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, 1, mem.CertificateCount())

	list, err := svc.ListForAdventurer(ctx, "adv")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	found, err := svc.ForQuest(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, cert.ScrollID, found.ScrollID)

	_, err = svc.ForQuest(ctx, "q2")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestArchive_BestEffort(t *testing.T) {
	archiver := &fakeArchiver{}
	svc := NewService(mocks.NewMemoryStore().Stores(), archiver, logger.Nop())
	cert := &models.Certificate{ScrollID: "SOD-1-ABCDEF"}

	svc.Archive(context.Background(), cert)
	assert.Equal(t, []string{"SOD-1-ABCDEF"}, archiver.archived)

	archiver.err = errors.New("bucket gone")
	assert.NotPanics(t, func() { svc.Archive(context.Background(), cert) })

	noArchive := NewService(mocks.NewMemoryStore().Stores(), nil, logger.Nop())
	assert.NotPanics(t, func() { noArchive.Archive(context.Background(), cert) })
}
