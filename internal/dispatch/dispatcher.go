// Package dispatch render nội dung reminder và gửi qua các transport channels,
// ghi audit trail (ReminderRecord) cho từng lần thử gửi trên từng channel.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	campaignmodels "invoice_recovery/internal/api/campaign/models"
	clientmodels "invoice_recovery/internal/api/client/models"
	invoicemodels "invoice_recovery/internal/api/invoice/models"

	"invoice_recovery/internal/escalation"
	"invoice_recovery/internal/logger"
	"invoice_recovery/internal/render"
	"invoice_recovery/internal/scheduling"
)

// EmailSender là contract của email transport
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// WhatsAppSender là contract của WhatsApp transport.
// Trả về message id của provider để match webhook delivered/read.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber, text string) (string, error)
}

// RecordStore là contract ghi audit trail của các lần gửi
type RecordStore interface {
	Append(ctx context.Context, record campaignmodels.ReminderRecord) (campaignmodels.ReminderRecord, error)
	MarkSent(ctx context.Context, recordID primitive.ObjectID, externalMessageID string, sentAtMillis int64) error
	MarkFailed(ctx context.Context, recordID primitive.ObjectID, errorMessage string) error
}

// Input chứa toàn bộ dữ kiện đã resolve cho một lần dispatch
type Input struct {
	Campaign *campaignmodels.ReminderCampaign
	Invoice  *invoicemodels.Invoice
	Client   *clientmodels.Client
	Strategy scheduling.SendStrategy
	Stage    escalation.Stage
}

// Dispatcher render và gửi reminder qua các channel của campaign.
// Mỗi channel một ReminderRecord, ghi pending trước khi gửi;
// partial failure của một channel không làm fail channel còn lại.
type Dispatcher struct {
	renderer render.TextRenderer
	records  RecordStore
	email    EmailSender
	whatsapp WhatsAppSender
	clock    scheduling.Clock
	log      *logrus.Logger
}

// NewDispatcher tạo mới Dispatcher. email/whatsapp được phép nil khi
// transport tương ứng không được cấu hình — channel đó sẽ ghi nhận partial error.
func NewDispatcher(renderer render.TextRenderer, records RecordStore, email EmailSender, whatsapp WhatsAppSender, clock scheduling.Clock) *Dispatcher {
	if clock == nil {
		clock = scheduling.NewRealClock()
	}
	return &Dispatcher{
		renderer: renderer,
		records:  records,
		email:    email,
		whatsapp: whatsapp,
		clock:    clock,
		log:      logger.GetAppLogger(),
	}
}

// Dispatch render nội dung theo stage của campaign và gửi qua các channel cấu hình.
// Trả về true nếu ít nhất một channel gửi thành công.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input) (bool, error) {
	cfg, ok := escalation.Config(in.Stage)
	if !ok {
		return false, fmt.Errorf("stage %q không có cấu hình gửi", in.Stage)
	}

	msg, err := d.renderMessage(ctx, in, cfg)
	if err != nil {
		return false, err
	}

	channels := resolveChannels(in.Campaign.Channel)
	anySuccess := false
	for _, channel := range channels {
		if d.sendOnChannel(ctx, in, cfg, msg, channel) {
			anySuccess = true
		}
	}
	return anySuccess, nil
}

// renderMessage build render request từ dữ kiện invoice và gọi renderer
func (d *Dispatcher) renderMessage(ctx context.Context, in Input, cfg escalation.StageConfig) (*render.Message, error) {
	now := d.clock.Now()
	daysOverdue := 0
	if in.Invoice.DueDate > 0 && in.Invoice.DueDate < now.UnixMilli() {
		daysOverdue = int(now.Sub(time.UnixMilli(in.Invoice.DueDate)).Hours() / 24)
	}

	return d.renderer.Render(ctx, render.Request{
		Tone:          cfg.Tone,
		Stage:         string(in.Stage),
		ClientName:    in.Client.Name,
		InvoiceNumber: in.Invoice.InvoiceNumber,
		Amount:        in.Invoice.Amount,
		Currency:      in.Invoice.Currency,
		DueDate:       time.UnixMilli(in.Invoice.DueDate),
		DaysOverdue:   daysOverdue,
		PaymentLink:   in.Invoice.PaymentLink,
		OfferDiscount: in.Strategy.OfferDiscount,
		DiscountRate:  in.Strategy.DiscountRate,
	})
}

// sendOnChannel ghi record pending, gửi qua một channel và cập nhật kết quả.
// Trả về true nếu channel này gửi thành công.
func (d *Dispatcher) sendOnChannel(ctx context.Context, in Input, cfg escalation.StageConfig, msg *render.Message, channel string) bool {
	recipient, content := d.resolveRecipient(in.Client, msg, channel)

	record, err := d.records.Append(ctx, campaignmodels.ReminderRecord{
		CampaignID:          in.Campaign.ID,
		InvoiceID:           in.Invoice.ID,
		ClientID:            in.Client.ID,
		OwnerOrganizationID: in.Campaign.OwnerOrganizationID,
		Stage:               string(in.Stage),
		Tone:                cfg.Tone,
		Channel:             channel,
		Recipient:           recipient,
		Subject:             msg.Subject,
		Content:             content,
	})
	if err != nil {
		d.log.WithError(err).WithField("campaignId", in.Campaign.ID.Hex()).
			Error("❌ [DISPATCH] Không ghi được audit record, bỏ qua channel")
		return false
	}

	externalID, sendErr := d.attemptSend(ctx, channel, recipient, msg)
	if sendErr != nil {
		if err := d.records.MarkFailed(ctx, record.ID, sendErr.Error()); err != nil {
			d.log.WithError(err).Error("❌ [DISPATCH] Không cập nhật được record failed")
		}
		d.log.WithError(sendErr).WithFields(logrus.Fields{
			"campaignId": in.Campaign.ID.Hex(),
			"channel":    channel,
		}).Warn("⚠️ [DISPATCH] Gửi reminder thất bại trên channel")
		return false
	}

	if err := d.records.MarkSent(ctx, record.ID, externalID, d.clock.Now().UnixMilli()); err != nil {
		d.log.WithError(err).Error("❌ [DISPATCH] Không cập nhật được record sent")
	}
	d.log.WithFields(logrus.Fields{
		"campaignId": in.Campaign.ID.Hex(),
		"channel":    channel,
		"stage":      in.Stage,
	}).Info("📨 [DISPATCH] Đã gửi reminder")
	return true
}

// resolveRecipient chọn người nhận và nội dung theo channel
func (d *Dispatcher) resolveRecipient(client *clientmodels.Client, msg *render.Message, channel string) (recipient, content string) {
	switch channel {
	case behaviormodels.ChannelWhatsApp:
		return client.PhoneNumber, msg.Subject + "\n\n" + msg.BodyText
	default:
		return client.Email, msg.BodyHTML
	}
}

// attemptSend gửi qua transport tương ứng. Transport nil hoặc người nhận trống
// được ghi nhận là partial error của channel đó, không phải lỗi fatal.
func (d *Dispatcher) attemptSend(ctx context.Context, channel, recipient string, msg *render.Message) (string, error) {
	switch channel {
	case behaviormodels.ChannelWhatsApp:
		if d.whatsapp == nil {
			return "", fmt.Errorf("WhatsApp transport chưa được cấu hình")
		}
		if recipient == "" {
			return "", fmt.Errorf("client không có số điện thoại WhatsApp")
		}
		return d.whatsapp.SendMessage(ctx, recipient, msg.Subject+"\n\n"+msg.BodyText)
	default:
		if d.email == nil {
			return "", fmt.Errorf("email transport chưa được cấu hình")
		}
		if recipient == "" {
			return "", fmt.Errorf("client không có địa chỉ email")
		}
		return "", d.email.Send(ctx, recipient, msg.Subject, msg.BodyHTML)
	}
}

// SendPaymentReceipt gửi email xác nhận đã nhận thanh toán khi campaign kết thúc
// vì invoice được thanh toán. Best-effort: lỗi chỉ được log, không chặn transition.
func (d *Dispatcher) SendPaymentReceipt(ctx context.Context, invoice *invoicemodels.Invoice, client *clientmodels.Client) error {
	if d.email == nil || client.Email == "" {
		return nil
	}
	subject := fmt.Sprintf("Đã nhận thanh toán hóa đơn %s", invoice.InvoiceNumber)
	body := fmt.Sprintf(
		`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;">`+
			`<h2 style="color:#2E7D32;">✅ %s</h2>`+
			`<p>Chào %s,</p>`+
			`<p>Chúng tôi đã nhận được thanh toán cho hóa đơn %s (%s). Cảm ơn bạn!</p>`+
			`</div>`,
		subject, client.Name, invoice.InvoiceNumber, render.FormatAmount(invoice.Amount, invoice.Currency))
	return d.email.Send(ctx, client.Email, subject, body)
}

// resolveChannels trả về danh sách channel cần thử theo cấu hình campaign
func resolveChannels(channel string) []string {
	switch channel {
	case behaviormodels.ChannelBoth:
		return []string{behaviormodels.ChannelEmail, behaviormodels.ChannelWhatsApp}
	case behaviormodels.ChannelWhatsApp:
		return []string{behaviormodels.ChannelWhatsApp}
	default:
		return []string{behaviormodels.ChannelEmail}
	}
}
