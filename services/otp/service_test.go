package otp

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/throttle"
	"github.com/tech-arch1tect/bilim/testutils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type account struct {
	ID     uint `gorm:"primaryKey"`
	Email  string
	Active bool
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	clock    *testutils.Clock
	notifier *testutils.RecordingNotifier
	store    *throttle.MemoryStore
	applied  int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:       testutils.SetupTestDB(t, &VerificationRequest{}, &account{}),
		clock:    testutils.NewClock(testutils.Epoch),
		notifier: &testutils.RecordingNotifier{},
		store:    throttle.NewMemoryStore(),
	}
	f.store.SetClock(f.clock.Now)
	t.Cleanup(func() { f.store.Close() })

	cfg := testutils.GetTestConfig()
	f.svc = NewService(&cfg.OTP, f.db, f.store, f.notifier, nil)
	f.svc.SetClock(f.clock.Now)

	f.svc.RegisterHandler(ActionRegistration, func(tx *gorm.DB, req *VerificationRequest, outcome *Outcome) error {
		atomic.AddInt32(&f.applied, 1)
		return tx.Model(&account{}).Where("id = ?", req.SubjectID).Update("active", true).Error
	})
	f.svc.RegisterHandler(ActionEmailChange, func(tx *gorm.DB, req *VerificationRequest, outcome *Outcome) error {
		atomic.AddInt32(&f.applied, 1)
		return tx.Model(&account{}).Where("id = ?", req.SubjectID).Update("email", req.Payload).Error
	})

	return f
}

func (f *fixture) account(t *testing.T, email string) *account {
	t.Helper()
	a := &account{Email: email}
	require.NoError(t, f.db.Create(a).Error)
	return a
}

func (f *fixture) reload(t *testing.T, a *account) *account {
	t.Helper()
	var fresh account
	require.NoError(t, f.db.First(&fresh, a.ID).Error)
	return &fresh
}

func (f *fixture) fixedCodes(codes ...string) {
	var i int32 = -1
	f.svc.SetCodeGenerator(func() (string, error) {
		n := atomic.AddInt32(&i, 1)
		return codes[int(n)%len(codes)], nil
	})
}

func (f *fixture) issue(t *testing.T, a *account, action Action) *VerificationRequest {
	t.Helper()
	req, err := f.svc.Issue(context.Background(), IssueRequest{SubjectID: a.ID, Action: action, Recipient: a.Email})
	require.NoError(t, err)
	return req
}

func (f *fixture) at(offset time.Duration) {
	f.clock.Set(testutils.Epoch.Add(offset))
}

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{6}$`)

	for i := 0; i < 2000; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestIssue_StoresOneRowPerSubjectAndAction(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")

	f.issue(t, a, ActionRegistration)
	f.issue(t, a, ActionRegistration)
	f.issue(t, a, ActionEmailChange)

	var count int64
	require.NoError(t, f.db.Model(&VerificationRequest{}).Where("subject_id = ?", a.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestIssue_NewCodeInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fixedCodes("111111", "222222")
	a := f.account(t, "a@bilim.test")

	f.issue(t, a, ActionRegistration)
	f.issue(t, a, ActionRegistration)

	_, err := f.svc.Verify(ctx, a.ID, ActionRegistration, "111111")
	assert.ErrorIs(t, err, ErrInvalid)

	outcome, err := f.svc.Verify(ctx, a.ID, ActionRegistration, "222222")
	require.NoError(t, err)
	assert.Equal(t, a.ID, outcome.SubjectID)
}

func TestIssue_QueuesCodeWithoutBlocking(t *testing.T) {
	f := newFixture(t)
	f.fixedCodes("482913")
	a := f.account(t, "a@bilim.test")

	req, err := f.svc.Issue(context.Background(), IssueRequest{
		SubjectID: a.ID,
		Action:    ActionRegistration,
		Recipient: a.Email,
		Device:    "Chrome on Windows",
	})
	require.NoError(t, err)
	assert.Equal(t, "482913", req.Code)

	messages := f.notifier.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "a@bilim.test", messages[0].To)
	assert.Equal(t, "Confirm your registration", messages[0].Subject)
	assert.Contains(t, messages[0].Body, "482913")
	assert.Contains(t, messages[0].Body, "5 minutes")
	assert.Contains(t, messages[0].Body, "Chrome on Windows")
}

func TestIssue_NotifierFailureDoesNotFailIssuance(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("queue full")
	a := f.account(t, "a@bilim.test")

	req, err := f.svc.Issue(context.Background(), IssueRequest{SubjectID: a.ID, Action: ActionRegistration, Recipient: a.Email})

	require.NoError(t, err)
	assert.NotZero(t, req.ID)
}

func TestIssue_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Issue(ctx, IssueRequest{SubjectID: 1, Action: "login", Recipient: "a@bilim.test"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = f.svc.Issue(ctx, IssueRequest{SubjectID: 1, Action: ActionRegistration})
	assert.ErrorIs(t, err, ErrMissingRecipient)
}

func TestVerify_ConsumesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	req := f.issue(t, a, ActionRegistration)

	_, err := f.svc.Verify(ctx, a.ID, ActionRegistration, req.Code)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, a.ID, ActionRegistration, req.Code)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.applied))

	var stored VerificationRequest
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.True(t, stored.Consumed)
	require.NotNil(t, stored.ConsumedAt)
}

func TestVerify_ConcurrentSubmissionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	req := f.issue(t, a, ActionRegistration)

	var successes int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Verify(context.Background(), a.ID, ActionRegistration, req.Code); err == nil {
				atomic.AddInt32(&successes, 1)
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.applied))
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	tests := []struct {
		name    string
		offset  time.Duration
		wantErr error
	}{
		{"one second before window", 299 * time.Second, nil},
		{"exactly at window", 300 * time.Second, ErrExpired},
		{"after window", 301 * time.Second, ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.account(t, "a@bilim.test")
			req := f.issue(t, a, ActionRegistration)

			f.at(tt.offset)
			_, err := f.svc.Verify(context.Background(), a.ID, ActionRegistration, req.Code)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, f.reload(t, a).Active)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, f.reload(t, a).Active)
		})
	}
}

func TestVerify_ExpiredCodeIsNotReissued(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	req := f.issue(t, a, ActionRegistration)
	f.notifier.Reset()

	f.at(10 * time.Minute)
	_, err := f.svc.Verify(context.Background(), a.ID, ActionRegistration, req.Code)

	assert.ErrorIs(t, err, ErrExpired)
	assert.Zero(t, f.notifier.Count())

	pending, err := f.svc.Pending(context.Background(), a.ID, ActionRegistration)
	require.NoError(t, err)
	assert.Equal(t, req.ID, pending.ID)
}

func TestVerify_WrongCodeRecordsAttempt(t *testing.T) {
	f := newFixture(t)
	f.fixedCodes("123456")
	a := f.account(t, "a@bilim.test")
	req := f.issue(t, a, ActionRegistration)

	_, err := f.svc.Verify(context.Background(), a.ID, ActionRegistration, "654321")
	assert.ErrorIs(t, err, ErrInvalid)

	var stored VerificationRequest
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, 1, stored.Attempts)
	assert.False(t, stored.Consumed)
	assert.False(t, f.reload(t, a).Active)
}

func TestVerify_AttemptLockout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fixedCodes("123456", "777777")
	a := f.account(t, "a@bilim.test")
	f.issue(t, a, ActionRegistration)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Verify(ctx, a.ID, ActionRegistration, "000000")
		require.ErrorIs(t, err, ErrInvalid)
	}

	_, err := f.svc.Verify(ctx, a.ID, ActionRegistration, "123456")
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
	assert.False(t, f.reload(t, a).Active)

	f.at(61 * time.Second)
	_, err = f.svc.Resend(ctx, a.ID, ActionRegistration)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, a.ID, ActionRegistration, "777777")
	require.NoError(t, err)
}

func TestVerify_LockoutDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.maxAttempts = 0
	f.fixedCodes("123456")
	a := f.account(t, "a@bilim.test")
	f.issue(t, a, ActionRegistration)

	for i := 0; i < 20; i++ {
		_, err := f.svc.Verify(ctx, a.ID, ActionRegistration, "000000")
		require.ErrorIs(t, err, ErrInvalid)
	}

	_, err := f.svc.Verify(ctx, a.ID, ActionRegistration, "123456")
	assert.NoError(t, err)
}

func TestVerify_HandlerFailureRollsBackConsumption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	req := f.issue(t, a, ActionRegistration)

	boom := errors.New("activation failed")
	f.svc.RegisterHandler(ActionRegistration, func(tx *gorm.DB, req *VerificationRequest, outcome *Outcome) error {
		if err := tx.Model(&account{}).Where("id = ?", req.SubjectID).Update("active", true).Error; err != nil {
			return err
		}
		return boom
	})

	_, err := f.svc.Verify(ctx, a.ID, ActionRegistration, req.Code)
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.reload(t, a).Active)

	pending, err := f.svc.Pending(ctx, a.ID, ActionRegistration)
	require.NoError(t, err)
	assert.False(t, pending.Consumed)

	f.svc.RegisterHandler(ActionRegistration, func(tx *gorm.DB, req *VerificationRequest, outcome *Outcome) error {
		return tx.Model(&account{}).Where("id = ?", req.SubjectID).Update("active", true).Error
	})
	_, err = f.svc.Verify(ctx, a.ID, ActionRegistration, req.Code)
	require.NoError(t, err)
	assert.True(t, f.reload(t, a).Active)
}

func TestVerify_RejectionLogsAtInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := testutils.GetTestConfig()
	svc := NewService(&cfg.OTP, f.db, f.store, f.notifier, logging.NewFromZap(zap.New(core)))
	svc.SetClock(f.clock.Now)

	taken := errors.New("address taken")
	boom := errors.New("disk full")
	svc.RegisterHandler(ActionRegistration, func(*gorm.DB, *VerificationRequest, *Outcome) error {
		return Reject(taken)
	})
	svc.RegisterHandler(ActionEmailChange, func(*gorm.DB, *VerificationRequest, *Outcome) error {
		return boom
	})

	a := f.account(t, "a@bilim.test")
	reg, err := svc.Issue(ctx, IssueRequest{SubjectID: a.ID, Action: ActionRegistration, Recipient: a.Email})
	require.NoError(t, err)
	change, err := svc.Issue(ctx, IssueRequest{SubjectID: a.ID, Action: ActionEmailChange, Recipient: "b@bilim.test", Payload: "b@bilim.test"})
	require.NoError(t, err)

	_, err = svc.Verify(ctx, a.ID, ActionRegistration, reg.Code)
	assert.ErrorIs(t, err, taken)
	var rejection *Rejection
	assert.ErrorAs(t, err, &rejection)

	rejected := logs.FilterMessage("verification rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.InfoLevel, rejected[0].Level)
	assert.Equal(t, "address taken", rejected[0].ContextMap()["reason"])
	assert.Zero(t, logs.FilterMessage("verification failed").Len())

	_, err = svc.Verify(ctx, a.ID, ActionEmailChange, change.Code)
	assert.ErrorIs(t, err, boom)
	failed := logs.FilterMessage("verification failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
}

func TestVerify_PayloadReachesHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "old@bilim.test")

	req, err := f.svc.Issue(ctx, IssueRequest{
		SubjectID: a.ID,
		Action:    ActionEmailChange,
		Recipient: "new@bilim.test",
		Payload:   "new@bilim.test",
	})
	require.NoError(t, err)
	f.notifier.Reset()

	outcome, err := f.svc.Verify(ctx, a.ID, ActionEmailChange, req.Code)
	require.NoError(t, err)

	assert.Equal(t, "new@bilim.test", outcome.Payload)
	assert.Equal(t, "new@bilim.test", f.reload(t, a).Email)

	messages := f.notifier.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Your email address was changed", messages[0].Subject)
}

func TestVerify_ConfirmationFailureKeepsSuccess(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	req := f.issue(t, a, ActionRegistration)
	f.notifier.Err = errors.New("queue full")

	_, err := f.svc.Verify(context.Background(), a.ID, ActionRegistration, req.Code)

	require.NoError(t, err)
	assert.True(t, f.reload(t, a).Active)
}

func TestVerify_UnknownActionAndMissingHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Verify(ctx, 1, "login", "123456")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = f.svc.Verify(ctx, 1, ActionPasswordReset, "123456")
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestVerify_NotFoundWithoutRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), 99, ActionRegistration, "123456")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTryIssue_ConcurrentRequestsSendOnce(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")

	var issued, throttled int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.TryIssue(context.Background(), IssueRequest{SubjectID: a.ID, Action: ActionPasswordReset, Recipient: a.Email})
			switch {
			case err == nil:
				atomic.AddInt32(&issued, 1)
			case errors.Is(err, ErrThrottled):
				atomic.AddInt32(&throttled, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), issued)
	assert.Equal(t, int32(19), throttled)
	assert.Equal(t, 1, f.notifier.Count())
}

func TestTryIssue_ReleasesMarkerWhenIssuanceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	in := IssueRequest{SubjectID: a.ID, Action: ActionPasswordReset, Recipient: a.Email}

	f.svc.SetCodeGenerator(func() (string, error) { return "", errors.New("entropy unavailable") })
	_, err := f.svc.TryIssue(ctx, in)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrThrottled)

	f.svc.SetCodeGenerator(GenerateCode)
	_, err = f.svc.TryIssue(ctx, in)
	assert.NoError(t, err)
}

func TestResend_CooldownBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	f.at(-2 * time.Minute)
	f.issue(t, a, ActionRegistration)

	f.at(0)
	_, err := f.svc.Resend(ctx, a.ID, ActionRegistration)
	require.NoError(t, err)

	f.at(59 * time.Second)
	_, err = f.svc.Resend(ctx, a.ID, ActionRegistration)
	assert.ErrorIs(t, err, ErrThrottled)

	retry, err := f.svc.RetryAfter(ctx, a.ID, ActionRegistration)
	require.NoError(t, err)
	assert.Equal(t, time.Second, retry)

	f.at(60 * time.Second)
	_, err = f.svc.Resend(ctx, a.ID, ActionRegistration)
	assert.NoError(t, err)
}

func TestResend_ReusesRecipientAndPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "old@bilim.test")

	_, err := f.svc.Issue(ctx, IssueRequest{
		SubjectID: a.ID,
		Action:    ActionEmailChange,
		Recipient: "new@bilim.test",
		Payload:   "new@bilim.test",
		Device:    "Firefox on Linux",
	})
	require.NoError(t, err)

	f.at(2 * time.Minute)
	req, err := f.svc.Resend(ctx, a.ID, ActionEmailChange)
	require.NoError(t, err)

	assert.Equal(t, "new@bilim.test", req.Recipient)
	assert.Equal(t, "new@bilim.test", req.Payload)
	assert.Equal(t, "Firefox on Linux", req.Device)
	assert.Equal(t, 2, f.notifier.Count())
}

func TestResend_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Resend(context.Background(), 42, ActionRegistration)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Resend(context.Background(), 42, "bogus")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestScenario_VerifyWithinWindowThenReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fixedCodes("123456")
	a := f.account(t, "u@bilim.test")
	f.issue(t, a, ActionRegistration)

	f.at(290 * time.Second)
	outcome, err := f.svc.Verify(ctx, a.ID, ActionRegistration, "123456")
	require.NoError(t, err)
	assert.Equal(t, ActionRegistration, outcome.Action)
	assert.True(t, f.reload(t, a).Active)

	var stored VerificationRequest
	require.NoError(t, f.db.Where("subject_id = ?", a.ID).First(&stored).Error)
	assert.True(t, stored.Consumed)

	f.at(291 * time.Second)
	_, err = f.svc.Verify(ctx, a.ID, ActionRegistration, "123456")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.applied))
}

func TestScenario_VerifyAfterWindow(t *testing.T) {
	f := newFixture(t)
	f.fixedCodes("123456")
	a := f.account(t, "u@bilim.test")
	f.issue(t, a, ActionRegistration)

	f.at(301 * time.Second)
	_, err := f.svc.Verify(context.Background(), a.ID, ActionRegistration, "123456")

	assert.ErrorIs(t, err, ErrExpired)
	assert.False(t, f.reload(t, a).Active)
	assert.Zero(t, atomic.LoadInt32(&f.applied))
}

func TestScenario_ResendTimeline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fixedCodes("111111", "222222", "333333")
	a := f.account(t, "u@bilim.test")
	f.at(-5 * time.Minute)
	f.issue(t, a, ActionRegistration)

	f.at(0)
	first, err := f.svc.Resend(ctx, a.ID, ActionRegistration)
	require.NoError(t, err)
	require.Equal(t, "222222", first.Code)

	f.at(30 * time.Second)
	_, err = f.svc.Resend(ctx, a.ID, ActionRegistration)
	assert.ErrorIs(t, err, ErrThrottled)

	f.at(61 * time.Second)
	second, err := f.svc.Resend(ctx, a.ID, ActionRegistration)
	require.NoError(t, err)
	assert.Equal(t, "333333", second.Code)

	_, err = f.svc.Verify(ctx, a.ID, ActionRegistration, "222222")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.svc.Verify(ctx, a.ID, ActionRegistration, "333333")
	assert.NoError(t, err)
}

func TestPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")

	_, err := f.svc.Pending(ctx, a.ID, ActionRegistration)
	assert.ErrorIs(t, err, ErrNotFound)

	req := f.issue(t, a, ActionRegistration)
	pending, err := f.svc.Pending(ctx, a.ID, ActionRegistration)
	require.NoError(t, err)
	assert.Equal(t, req.ID, pending.ID)
	assert.Equal(t, testutils.Epoch.Add(5*time.Minute), pending.ExpiresAt(f.svc.CodeTTL()).UTC())
}

func TestCleanupConsumed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	consumed := f.account(t, "consumed@bilim.test")
	req := f.issue(t, consumed, ActionRegistration)
	_, err := f.svc.Verify(ctx, consumed.ID, ActionRegistration, req.Code)
	require.NoError(t, err)

	stale := f.account(t, "stale@bilim.test")
	f.issue(t, stale, ActionRegistration)

	f.at(50 * time.Minute)
	fresh := f.account(t, "fresh@bilim.test")
	f.issue(t, fresh, ActionRegistration)

	f.at(time.Hour + time.Second)
	deleted, err := f.svc.CleanupConsumed(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = f.svc.Pending(ctx, fresh.ID, ActionRegistration)
	assert.NoError(t, err)
}

func TestDeleteForSubject(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a@bilim.test")
	f.issue(t, a, ActionRegistration)
	f.issue(t, a, ActionEmailChange)

	require.NoError(t, DeleteForSubject(f.db, a.ID))

	var count int64
	require.NoError(t, f.db.Model(&VerificationRequest{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestParseAction(t *testing.T) {
	for _, action := range Actions() {
		parsed, err := ParseAction(action.String())
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}

	parsed, err := ParseAction("email-change")
	require.NoError(t, err)
	assert.Equal(t, ActionEmailChange, parsed)

	_, err = ParseAction("login")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDescribeDevice(t *testing.T) {
	chrome := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	assert.Equal(t, "Chrome on Windows", DescribeDevice(chrome))
	assert.Equal(t, "", DescribeDevice(""))
}

func TestFormatTTL(t *testing.T) {
	assert.Equal(t, "5 minutes", formatTTL(5*time.Minute))
	assert.Equal(t, "1 minute", formatTTL(time.Minute))
	assert.Equal(t, "1m30s", formatTTL(90*time.Second))
}
