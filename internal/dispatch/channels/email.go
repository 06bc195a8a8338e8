// Package channels chứa các transport gửi reminder: email (SMTP) và WhatsApp (HTTP provider).
// Mọi lần gửi đều bị chặn bởi timeout; timeout được coi là dispatch failure, không phải lỗi fatal.
package channels

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// EmailChannel gửi email qua SMTP bằng gomail.
type EmailChannel struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
}

// NewEmailChannel tạo mới EmailChannel
func NewEmailChannel(host string, port int, username, password, from string, timeout time.Duration) *EmailChannel {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmailChannel{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		timeout: timeout,
	}
}

// Send gửi một email HTML. Chặn tối đa theo timeout đã cấu hình;
// gomail không nhận context nên phần chờ được bọc qua channel.
func (c *EmailChannel) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("không có địa chỉ email người nhận")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return fmt.Errorf("gửi email tới %s quá thời gian chờ: %w", to, sendCtx.Err())
	}
}
