package service

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beasiswaku_backend/internals/features/scholarship/applications/model"
)

// driveLog runs ops through Transition and records each change the way
// the service would store it.
func driveLog(t *testing.T, ops []Operation) (model.ApplicationModel, []model.StatusHistoryModel) {
	t.Helper()
	app := appIn(model.StatusDraft)
	app.ApplicationHistorySeq = 1
	rows := []model.StatusHistoryModel{entry(t, app.ApplicationID, 1, Change{Operation: OpCreate, To: model.StatusDraft, ActorID: officer, At: t0})}

	now := t0
	for _, op := range ops {
		now = now.Add(time.Hour)
		next, ch, err := Transition(app, op, validInput(op, now), now)
		require.NoError(t, err, "%s", op)
		next.ApplicationHistorySeq = app.ApplicationHistorySeq + 1
		rows = append(rows, entry(t, app.ApplicationID, next.ApplicationHistorySeq, ch))
		app = next
	}
	return app, rows
}

func entry(t *testing.T, appID uuid.UUID, seq int64, ch Change) model.StatusHistoryModel {
	t.Helper()
	body, err := sonic.Marshal(ch.Payload)
	require.NoError(t, err)
	return model.StatusHistoryModel{
		StatusHistoryID:            uuid.New(),
		StatusHistoryApplicationID: appID,
		StatusHistorySeq:           seq,
		StatusHistoryOperation:     string(ch.Operation),
		StatusHistoryFromStatus:    ch.From,
		StatusHistoryStatus:        ch.To,
		StatusHistoryActorID:       ch.ActorID,
		StatusHistoryPayload:       body,
		StatusHistoryCreatedAt:     ch.At,
	}
}

var happyPath = []Operation{
	OpSubmit, OpStartReview, OpFlagForCompliance, OpResolveCompliance, OpReview,
	OpApproveForVerification, OpVerifyEnrollment, OpScheduleInterview, OpCompleteInterview,
	OpEndorseToSSC, OpApprove, OpProcess, OpRelease,
}

func TestReplayMatchesLiveState(t *testing.T) {
	app, rows := driveLog(t, happyPath)

	got, err := Replay(rows)
	require.NoError(t, err)
	assert.True(t, ProjectionOf(app).Equal(got), "live %+v replayed %+v", ProjectionOf(app), got)
	assert.Equal(t, model.StatusDisbursed, got.Status)
	assert.Equal(t, int64(len(happyPath)+1), got.Seq)
	assert.Nil(t, got.ComplianceNote)
	require.NotNil(t, got.InterviewScore)
	assert.Equal(t, 82, *got.InterviewScore)
}

func TestReplayIsIdempotentAndOrderFree(t *testing.T) {
	app, rows := driveLog(t, happyPath)
	want := ProjectionOf(app)

	twice, err := Replay(append(append([]model.StatusHistoryModel(nil), rows...), rows...))
	require.NoError(t, err)
	assert.True(t, want.Equal(twice))

	shuffled := append([]model.StatusHistoryModel(nil), rows...)
	for i, j := 0, len(shuffled)-1; i < j; i, j = i+1, j-1 {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	reversed, err := Replay(shuffled)
	require.NoError(t, err)
	assert.True(t, want.Equal(reversed))

	// folding a prefix and then the whole log lands on the same state
	p, err := Replay(rows[:4])
	require.NoError(t, err)
	for _, r := range rows {
		p, err = ApplyEntry(p, r)
		require.NoError(t, err)
	}
	assert.True(t, want.Equal(p))
}

func TestReplayRejectsGaps(t *testing.T) {
	_, rows := driveLog(t, []Operation{OpSubmit, OpReview, OpReject})

	_, err := Replay(append([]model.StatusHistoryModel{rows[0]}, rows[2:]...))
	assert.ErrorContains(t, err, "history gap")

	_, err = Replay(rows[1:])
	assert.Error(t, err)
}

func TestReplayCarriesRejectionAndCycles(t *testing.T) {
	app, rows := driveLog(t, []Operation{
		OpSubmit, OpReview, OpApproveForVerification, OpVerifyEnrollment, OpScheduleInterview,
		OpCompleteInterview, OpEndorseToSSC, OpReturnForRevision, OpResolveCompliance, OpReject,
	})

	got, err := Replay(rows)
	require.NoError(t, err)
	assert.True(t, ProjectionOf(app).Equal(got))
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "incomplete transcript", *got.RejectionReason)
	assert.Equal(t, 1, got.SSCCycle)
}

func TestReplayBadPayload(t *testing.T) {
	_, rows := driveLog(t, []Operation{OpSubmit})
	rows[1].StatusHistoryPayload = []byte("{not json")
	_, err := Replay(rows)
	assert.ErrorContains(t, err, "decode payload")
}
