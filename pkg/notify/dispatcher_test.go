package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/email"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

var cfg = notify.Config{AppURL: "https://app.example.com/"}

var alice = notify.Recipient{Email: "alice@example.com", Name: "Alice"}

func TestDispatcher_SendEveryKind(t *testing.T) {
	t.Parallel()

	suspendOn := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	for _, kind := range notify.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			sender := &mockSender{}
			sender.On("Send", mock.Anything, mock.MatchedBy(func(m email.Message) bool {
				return m.To == alice.Email && m.Tag == string(kind) && m.Subject != "" &&
					assert.Contains(t, m.HTML, "Hello Alice,")
			})).Return("pm-1", nil).Once()

			d := notify.NewDispatcher(sender, cfg, notify.WithLogger(logger.Discard()))
			res := d.Send(context.Background(), kind, alice, notify.Data{PlanName: "Pro", SuspendOn: &suspendOn})

			assert.True(t, res.Delivered)
			assert.Equal(t, "pm-1", res.MessageID)
			assert.Equal(t, kind, res.Kind)
			assert.NoError(t, res.Err)
			sender.AssertExpectations(t)
		})
	}
}

func TestDispatcher_RendersLinksAndDates(t *testing.T) {
	t.Parallel()

	var html string
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		html = args.Get(1).(email.Message).HTML
	}).Return("pm-2", nil)

	suspendOn := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	d := notify.NewDispatcher(sender, cfg, notify.WithLogger(logger.Discard()))
	res := d.Send(context.Background(), notify.KindPaymentReminderDay3, alice, notify.Data{PlanName: "Pro", SuspendOn: &suspendOn})
	require.True(t, res.Delivered)

	assert.Contains(t, html, "https://app.example.com/account/billing/update-payment")
	assert.Contains(t, html, "May 15, 2025")
	assert.Contains(t, html, "the Pro plan")
}

func TestDispatcher_CancellationWording(t *testing.T) {
	t.Parallel()

	render := func(data notify.Data) string {
		var html string
		sender := &mockSender{}
		sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			html = args.Get(1).(email.Message).HTML
		}).Return("id", nil)
		notify.NewDispatcher(sender, cfg, notify.WithLogger(logger.Discard())).
			Send(context.Background(), notify.KindCancellationConfirmed, alice, data)
		return html
	}

	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	atPeriodEnd := render(notify.Data{PlanName: "Pro", PeriodEnd: &end})
	assert.Contains(t, atPeriodEnd, "until June 30, 2025")
	assert.NotContains(t, atPeriodEnd, "30 days")

	immediate := render(notify.Data{PlanName: "Pro", Immediate: true})
	assert.Contains(t, immediate, "ended today")
	assert.Contains(t, immediate, "30 days")
	assert.Contains(t, immediate, "https://app.example.com/pricing")
}

func TestDispatcher_EscapesUserInput(t *testing.T) {
	t.Parallel()

	var html string
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		html = args.Get(1).(email.Message).HTML
	}).Return("id", nil)

	notify.NewDispatcher(sender, cfg, notify.WithLogger(logger.Discard())).
		Send(context.Background(), notify.KindServiceRestored, notify.Recipient{Email: "x@example.com", Name: "<script>"}, notify.Data{})
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestDispatcher_Failures(t *testing.T) {
	t.Parallel()

	t.Run("provider error", func(t *testing.T) {
		t.Parallel()

		sender := &mockSender{}
		sender.On("Send", mock.Anything, mock.Anything).Return("", email.ErrFailedToSendEmail)
		res := notify.NewDispatcher(sender, cfg, notify.WithLogger(logger.Discard())).
			Send(context.Background(), notify.KindSuspensionConfirmed, alice, notify.Data{})
		assert.False(t, res.Delivered)
		assert.ErrorIs(t, res.Err, notify.ErrDeliveryFailed)
		assert.ErrorIs(t, res.Err, email.ErrFailedToSendEmail)
	})

	t.Run("no email address", func(t *testing.T) {
		t.Parallel()

		sender := &mockSender{}
		res := notify.NewDispatcher(sender, cfg, notify.WithLogger(logger.Discard())).
			Send(context.Background(), notify.KindSuspensionConfirmed, notify.Recipient{}, notify.Data{})
		assert.ErrorIs(t, res.Err, notify.ErrNoRecipient)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		sender := &mockSender{}
		res := notify.NewDispatcher(sender, cfg, notify.WithLogger(logger.Discard())).
			Send(context.Background(), notify.Kind("welcome"), alice, notify.Data{})
		assert.ErrorIs(t, res.Err, notify.ErrUnknownKind)
		assert.False(t, notify.Kind("welcome").Valid())
	})
}

func TestDispatcher_DryRun(t *testing.T) {
	t.Parallel()

	dry := cfg
	dry.DryRun = true
	res := notify.NewDispatcher(nil, dry, notify.WithLogger(logger.Discard())).
		Send(context.Background(), notify.KindPaymentReminderDay7, alice, notify.Data{})
	assert.True(t, res.Delivered)
	assert.Equal(t, notify.DryRunMessageID, res.MessageID)

	assert.Panics(t, func() { notify.NewDispatcher(nil, cfg) })
}

func TestUserNotifier(t *testing.T) {
	t.Parallel()

	dry := cfg
	dry.DryRun = true
	d := notify.NewDispatcher(nil, dry, notify.WithLogger(logger.Discard()))

	t.Run("resolves recipient", func(t *testing.T) {
		t.Parallel()

		n := notify.NewUserNotifier(notify.RecipientResolverFunc(func(context.Context, uuid.UUID) (notify.Recipient, error) {
			return alice, nil
		}), d, logger.Discard())
		res := n.Notify(context.Background(), uuid.New(), notify.KindServiceRestored, notify.Data{})
		assert.True(t, res.Delivered)
	})

	t.Run("lookup failure", func(t *testing.T) {
		t.Parallel()

		n := notify.NewUserNotifier(notify.RecipientResolverFunc(func(context.Context, uuid.UUID) (notify.Recipient, error) {
			return notify.Recipient{}, errors.New("profiles unavailable")
		}), d, logger.Discard())
		res := n.Notify(context.Background(), uuid.New(), notify.KindServiceRestored, notify.Data{})
		assert.False(t, res.Delivered)
		assert.ErrorIs(t, res.Err, notify.ErrRecipientLookup)
		assert.Equal(t, notify.KindServiceRestored, res.Kind)
	})
}

func TestConfig(t *testing.T) {
	t.Parallel()

	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, notify.Config{AppURL: "app.example.com"}.Validate(), notify.ErrInvalidConfig)
	assert.Equal(t, "https://app.example.com/account/billing", cfg.BillingURL())
}
