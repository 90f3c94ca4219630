package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	donationmodels "fasela/internal/donation/models"
	handovermodels "fasela/internal/handover/models"
	orgmodels "fasela/internal/organization/models"
	"fasela/internal/report/service/mocks"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
	"fasela/pkg/testutil"
)

func expectEmptyLedger(source *mocks.MockDataSource) {
	source.EXPECT().ListCases(gomock.Any(), gomock.Any()).Return([]*orgmodels.Case{}, nil).AnyTimes()
	source.EXPECT().ListDonations(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*donationmodels.Donation{}, nil).AnyTimes()
	source.EXPECT().ListHandovers(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*handovermodels.Handover{}, nil).AnyTimes()
}

func TestDashboard_DegradesOnLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockDataSource(ctrl)
	orgID := id.NewOrganizationID()

	source.EXPECT().ListCases(gomock.Any(), orgID).Return([]*orgmodels.Case{}, nil).AnyTimes()
	source.EXPECT().ListDonations(gomock.Any(), orgID, nil).Return(nil, errors.New("connection reset"))

	svc := New(source)
	dashboard, err := svc.Dashboard(testutil.AdminContext(orgID), orgID)
	require.NoError(t, err)
	assert.True(t, dashboard.Degraded)
	assert.Equal(t, orgID, dashboard.OrganizationID)
	assert.Empty(t, dashboard.RecentMonths)
}

func TestOrganizationSummary_PropagatesLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockDataSource(ctrl)
	orgID := id.NewOrganizationID()

	source.EXPECT().ListCases(gomock.Any(), orgID).Return(nil, errors.New("connection reset")).AnyTimes()
	source.EXPECT().ListDonations(gomock.Any(), orgID, nil).Return([]*donationmodels.Donation{}, nil).AnyTimes()
	source.EXPECT().ListHandovers(gomock.Any(), orgID, nil).Return([]*handovermodels.Handover{}, nil).AnyTimes()

	_, err := New(source).OrganizationSummary(testutil.AdminContext(orgID), orgID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePersistence))
}

func TestCaseSummary_MapsMissingCase(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockDataSource(ctrl)
	caseID := id.NewCaseID()
	source.EXPECT().FindCase(gomock.Any(), caseID).Return(nil, sentinel.ErrNotFound)

	_, err := New(source).CaseSummary(testutil.AdminContext(id.NewOrganizationID()), caseID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCachedReports(t *testing.T) {
	orgID := id.NewOrganizationID()
	ctx := testutil.AdminContext(orgID)

	t.Run("hit skips the data source", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockDataSource(ctrl)
		c := mocks.NewMockCache(ctrl)

		c.EXPECT().Generation(gomock.Any(), orgID).Return(int64(4), nil)
		c.EXPECT().Get(gomock.Any(), orgID, int64(4), "summary").
			Return([]byte(`{"organization_id":"`+orgID.String()+`","case_count":7}`), true, nil)

		summary, err := New(source, WithCache(c)).OrganizationSummary(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, 7, summary.CaseCount)
	})

	t.Run("miss stores under the generation read before building", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockDataSource(ctrl)
		c := mocks.NewMockCache(ctrl)
		expectEmptyLedger(source)

		gomock.InOrder(
			c.EXPECT().Generation(gomock.Any(), orgID).Return(int64(2), nil),
			c.EXPECT().Get(gomock.Any(), orgID, int64(2), "summary").Return(nil, false, nil),
			c.EXPECT().Set(gomock.Any(), orgID, int64(2), "summary", gomock.Any()).Return(nil),
		)

		summary, err := New(source, WithCache(c)).OrganizationSummary(ctx, orgID)
		require.NoError(t, err)
		assert.Zero(t, summary.CaseCount)
	})

	t.Run("unavailable cache falls back to building", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockDataSource(ctrl)
		c := mocks.NewMockCache(ctrl)
		expectEmptyLedger(source)

		c.EXPECT().Generation(gomock.Any(), orgID).Return(int64(0), sentinel.ErrUnavailable)

		report, err := New(source, WithCache(c)).MonthlyHandovers(ctx, orgID, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, report.Months)
	})

	t.Run("failed write still returns the report", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockDataSource(ctrl)
		c := mocks.NewMockCache(ctrl)
		expectEmptyLedger(source)

		c.EXPECT().Generation(gomock.Any(), orgID).Return(int64(0), nil)
		c.EXPECT().Get(gomock.Any(), orgID, int64(0), "dashboard").Return(nil, false, nil)
		c.EXPECT().Set(gomock.Any(), orgID, int64(0), "dashboard", gomock.Any()).Return(errors.New("timeout"))

		dashboard, err := New(source, WithCache(c)).Dashboard(ctx, orgID)
		require.NoError(t, err)
		assert.False(t, dashboard.Degraded)
	})

	t.Run("degraded dashboards are not cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockDataSource(ctrl)
		c := mocks.NewMockCache(ctrl)
		source.EXPECT().ListCases(gomock.Any(), orgID).Return(nil, errors.New("down")).AnyTimes()
		source.EXPECT().ListDonations(gomock.Any(), orgID, nil).Return([]*donationmodels.Donation{}, nil).AnyTimes()
		source.EXPECT().ListHandovers(gomock.Any(), orgID, nil).Return([]*handovermodels.Handover{}, nil).AnyTimes()

		c.EXPECT().Generation(gomock.Any(), orgID).Return(int64(0), nil)
		c.EXPECT().Get(gomock.Any(), orgID, int64(0), "dashboard").Return(nil, false, nil)

		dashboard, err := New(source, WithCache(c)).Dashboard(ctx, orgID)
		require.NoError(t, err)
		assert.True(t, dashboard.Degraded)
	})
}

func TestLoad_UsesOneSnapshotForTheLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockDataSource(ctrl)
	orgID := id.NewOrganizationID()
	runner := &recordingRunner{}

	source.EXPECT().ListCases(gomock.Any(), orgID).Return([]*orgmodels.Case{}, nil)
	source.EXPECT().ListDonations(gomock.Any(), orgID, nil).Return([]*donationmodels.Donation{}, nil)
	source.EXPECT().ListHandovers(gomock.Any(), orgID, nil).Return([]*handovermodels.Handover{}, nil)

	_, err := New(source, WithTxRunner(runner)).Integrity(testutil.AdminContext(orgID), orgID)
	require.NoError(t, err)
	assert.Equal(t, 2, runner.units())
	assert.Equal(t, 1, runner.snapshots())
}

func TestIntegrityReportIsNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockDataSource(ctrl)
	c := mocks.NewMockCache(ctrl)
	orgID := id.NewOrganizationID()
	expectEmptyLedger(source)

	report, err := New(source, WithCache(c)).Integrity(testutil.AdminContext(orgID), orgID)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
}

type recordingRunner struct {
	mu       sync.Mutex
	count    int
	snapshot int
}

func (r *recordingRunner) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	r.mu.Lock()
	r.count++
	if tx.Snapshot(ctx) {
		r.snapshot++
	}
	r.mu.Unlock()
	return fn(ctx)
}

func (r *recordingRunner) units() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *recordingRunner) snapshots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}
