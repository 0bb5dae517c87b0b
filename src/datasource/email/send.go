// send.go
package email

import (
	"DeliveryInsight/src/config"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"path/filepath"

	"github.com/jordan-wright/email"
)

// buildReport 组装报表邮件，attachmentPath 为空时只发正文
func buildReport(cfg *config.Config, attachmentPath, body string) (*email.Email, error) {
	if len(cfg.SendEmail.To) == 0 {
		return nil, fmt.Errorf("未配置收件人")
	}

	e := email.NewEmail()
	e.From = cfg.SendEmail.Username
	e.To = cfg.SendEmail.To
	e.Subject = cfg.SendEmail.Subject
	if e.Subject == "" {
		e.Subject = "配送数据分析报表"
	}
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return nil, fmt.Errorf("添加附件 %s 失败: %w", filepath.Base(attachmentPath), err)
		}
	}
	return e, nil
}

// SendReport 通过 SMTP(TLS) 发送报表邮件
func SendReport(cfg *config.Config, attachmentPath, body string) error {
	e, err := buildReport(cfg, attachmentPath, body)
	if err != nil {
		return err
	}

	addr := cfg.SendEmail.Server
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// 未写端口时默认 465
		host = addr
		addr = net.JoinHostPort(addr, "465")
	}

	auth := smtp.PlainAuth("", cfg.SendEmail.Username, cfg.SendEmail.Password, host)
	if err := e.SendWithTLS(addr, auth, &tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}
