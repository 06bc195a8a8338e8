package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	campaignmodels "invoice_recovery/internal/api/campaign/models"
	clientmodels "invoice_recovery/internal/api/client/models"
	invoicemodels "invoice_recovery/internal/api/invoice/models"

	"invoice_recovery/internal/escalation"
	"invoice_recovery/internal/render"
	"invoice_recovery/internal/scheduling"
)

var dispatchNow = time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeRecordStore struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]*campaignmodels.ReminderRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: map[primitive.ObjectID]*campaignmodels.ReminderRecord{}}
}

func (s *fakeRecordStore) Append(_ context.Context, record campaignmodels.ReminderRecord) (campaignmodels.ReminderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = primitive.NewObjectID()
	record.DeliveryStatus = campaignmodels.RecordStatusPending
	s.records[record.ID] = &record
	return record, nil
}

func (s *fakeRecordStore) MarkSent(_ context.Context, id primitive.ObjectID, externalID string, sentAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	rec.DeliveryStatus = campaignmodels.RecordStatusSent
	rec.ExternalMessageID = externalID
	rec.SentAt = &sentAt
	return nil
}

func (s *fakeRecordStore) MarkFailed(_ context.Context, id primitive.ObjectID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	rec.DeliveryStatus = campaignmodels.RecordStatusFailed
	rec.ErrorMessage = errMsg
	return nil
}

func (s *fakeRecordStore) byChannel(channel string) *campaignmodels.ReminderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Channel == channel {
			return rec
		}
	}
	return nil
}

func (s *fakeRecordStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeEmailSender struct {
	err  error
	sent int
}

func (f *fakeEmailSender) Send(_ context.Context, _, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent++
	return nil
}

type fakeWhatsAppSender struct {
	err  error
	sent int
}

func (f *fakeWhatsAppSender) SendMessage(_ context.Context, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent++
	return "wamid.test.001", nil
}

// ---- fixture ----

func newDispatchInput(channel string, offerDiscount bool) Input {
	clientID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	invoiceID := primitive.NewObjectID()

	return Input{
		Campaign: &campaignmodels.ReminderCampaign{
			ID:                  primitive.NewObjectID(),
			InvoiceID:           invoiceID,
			ClientID:            clientID,
			OwnerOrganizationID: orgID,
			CurrentStage:        string(escalation.StageStandard),
			Channel:             channel,
			Status:              campaignmodels.CampaignStatusActive,
		},
		Invoice: &invoicemodels.Invoice{
			ID:            invoiceID,
			ClientID:      clientID,
			InvoiceNumber: "INV-2024-0042",
			Amount:        1250,
			Currency:      "BRL",
			DueDate:       dispatchNow.AddDate(0, 0, -7).UnixMilli(),
			Status:        invoicemodels.InvoiceStatusPending,
			PaymentLink:   "https://pay.example.com/inv-42",
		},
		Client: &clientmodels.Client{
			ID:          clientID,
			Name:        "Minh Anh",
			Email:       "minhanh@example.com",
			PhoneNumber: "+5511987654321",
		},
		Strategy: scheduling.SendStrategy{
			Channel:       channel,
			OfferDiscount: offerDiscount,
			DiscountRate:  5,
		},
		Stage: escalation.StageStandard,
	}
}

// ---- tests ----

func TestDispatch_PartialChannelFailure(t *testing.T) {
	records := newFakeRecordStore()
	email := &fakeEmailSender{}
	whatsapp := &fakeWhatsAppSender{err: fmt.Errorf("provider quá tải")}

	d := NewDispatcher(render.NewTemplateRenderer(), records, email, whatsapp, scheduling.FixedClock{T: dispatchNow})
	success, err := d.Dispatch(context.Background(), newDispatchInput(behaviormodels.ChannelBoth, false))

	require.NoError(t, err)
	// Email thành công → overall success dù WhatsApp fail
	assert.True(t, success)
	assert.Equal(t, 2, records.count())

	emailRec := records.byChannel(behaviormodels.ChannelEmail)
	require.NotNil(t, emailRec)
	assert.Equal(t, campaignmodels.RecordStatusSent, emailRec.DeliveryStatus)
	assert.NotNil(t, emailRec.SentAt)

	waRec := records.byChannel(behaviormodels.ChannelWhatsApp)
	require.NotNil(t, waRec)
	assert.Equal(t, campaignmodels.RecordStatusFailed, waRec.DeliveryStatus)
	assert.Contains(t, waRec.ErrorMessage, "quá tải")
}

func TestDispatch_AllChannelsFail(t *testing.T) {
	records := newFakeRecordStore()
	email := &fakeEmailSender{err: fmt.Errorf("SMTP không kết nối được")}
	whatsapp := &fakeWhatsAppSender{err: fmt.Errorf("provider lỗi")}

	d := NewDispatcher(render.NewTemplateRenderer(), records, email, whatsapp, scheduling.FixedClock{T: dispatchNow})
	success, err := d.Dispatch(context.Background(), newDispatchInput(behaviormodels.ChannelBoth, false))

	require.NoError(t, err)
	assert.False(t, success)
	// Mỗi channel vẫn để lại một record failed trong audit trail
	assert.Equal(t, 2, records.count())
	assert.Equal(t, campaignmodels.RecordStatusFailed, records.byChannel(behaviormodels.ChannelEmail).DeliveryStatus)
	assert.Equal(t, campaignmodels.RecordStatusFailed, records.byChannel(behaviormodels.ChannelWhatsApp).DeliveryStatus)
}

func TestDispatch_MissingPhoneIsPartialError(t *testing.T) {
	records := newFakeRecordStore()
	email := &fakeEmailSender{}
	whatsapp := &fakeWhatsAppSender{}

	in := newDispatchInput(behaviormodels.ChannelBoth, false)
	in.Client.PhoneNumber = ""

	d := NewDispatcher(render.NewTemplateRenderer(), records, email, whatsapp, scheduling.FixedClock{T: dispatchNow})
	success, err := d.Dispatch(context.Background(), in)

	require.NoError(t, err)
	assert.True(t, success)

	waRec := records.byChannel(behaviormodels.ChannelWhatsApp)
	require.NotNil(t, waRec)
	assert.Equal(t, campaignmodels.RecordStatusFailed, waRec.DeliveryStatus)
	assert.Contains(t, waRec.ErrorMessage, "số điện thoại")
	assert.Equal(t, 0, whatsapp.sent)
}

func TestDispatch_UnconfiguredTransportDegrades(t *testing.T) {
	records := newFakeRecordStore()
	email := &fakeEmailSender{}

	// WhatsApp transport không được cấu hình (nil): email vẫn đi bình thường
	d := NewDispatcher(render.NewTemplateRenderer(), records, email, nil, scheduling.FixedClock{T: dispatchNow})
	success, err := d.Dispatch(context.Background(), newDispatchInput(behaviormodels.ChannelBoth, false))

	require.NoError(t, err)
	assert.True(t, success)
	assert.Equal(t, campaignmodels.RecordStatusFailed, records.byChannel(behaviormodels.ChannelWhatsApp).DeliveryStatus)
	assert.Equal(t, campaignmodels.RecordStatusSent, records.byChannel(behaviormodels.ChannelEmail).DeliveryStatus)
}

func TestDispatch_DiscountSentenceIncluded(t *testing.T) {
	records := newFakeRecordStore()
	email := &fakeEmailSender{}

	d := NewDispatcher(render.NewTemplateRenderer(), records, email, nil, scheduling.FixedClock{T: dispatchNow})
	success, err := d.Dispatch(context.Background(), newDispatchInput(behaviormodels.ChannelEmail, true))

	require.NoError(t, err)
	assert.True(t, success)

	rec := records.byChannel(behaviormodels.ChannelEmail)
	require.NotNil(t, rec)
	assert.True(t, strings.Contains(rec.Content, "5.0%"), "nội dung phải chứa discount rate")
}

func TestDispatch_RecordCarriesStageAndTone(t *testing.T) {
	records := newFakeRecordStore()
	email := &fakeEmailSender{}

	d := NewDispatcher(render.NewTemplateRenderer(), records, email, nil, scheduling.FixedClock{T: dispatchNow})
	_, err := d.Dispatch(context.Background(), newDispatchInput(behaviormodels.ChannelEmail, false))

	require.NoError(t, err)
	rec := records.byChannel(behaviormodels.ChannelEmail)
	require.NotNil(t, rec)
	assert.Equal(t, string(escalation.StageStandard), rec.Stage)
	assert.Equal(t, escalation.ToneProfessional, rec.Tone)
	assert.Equal(t, "minhanh@example.com", rec.Recipient)
	assert.NotEmpty(t, rec.Subject)
}

func TestDispatch_InvalidStageRejected(t *testing.T) {
	records := newFakeRecordStore()
	d := NewDispatcher(render.NewTemplateRenderer(), records, &fakeEmailSender{}, nil, scheduling.FixedClock{T: dispatchNow})

	in := newDispatchInput(behaviormodels.ChannelEmail, false)
	in.Stage = escalation.StageStopped

	success, err := d.Dispatch(context.Background(), in)
	assert.Error(t, err)
	assert.False(t, success)
	assert.Equal(t, 0, records.count())
}
