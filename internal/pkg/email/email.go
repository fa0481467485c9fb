package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/payslip"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxRetries = 3

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type payslipMailer struct {
	cfg       config.SMTPConfig
	templates *template.Template
	send      sendFunc
	backoff   time.Duration
}

// NewPayslipMailer creates a notifier that emails the payslip PDF to the employee.
func NewPayslipMailer(cfg config.SMTPConfig) (payroll.PayslipNotifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &payslipMailer{
		cfg:       cfg,
		templates: tmpl,
		send:      smtp.SendMail,
		backoff:   time.Second,
	}, nil
}

type payslipEmailData struct {
	EmployeeName string
	Period       string
	GrossSalary  string
	Deductions   string
	NetSalary    string
	FromName     string
}

// NotifyPayslip sends the approved payslip to notice.Recipient
func (s *payslipMailer) NotifyPayslip(ctx context.Context, notice payroll.PayslipNotice) error {
	if !validator.IsValidEmail(notice.Recipient) {
		return fmt.Errorf("invalid payslip recipient %q", notice.Recipient)
	}

	// Skip sending if SMTP is not configured
	if s.cfg.Host == "" {
		slog.Warn("SMTP not configured, skipping payslip email", "to", notice.Recipient, "period", notice.Period)
		return nil
	}

	message, err := s.buildMessage(notice)
	if err != nil {
		return err
	}

	return s.deliver(ctx, notice.Recipient, message)
}

func (s *payslipMailer) buildMessage(notice payroll.PayslipNotice) ([]byte, error) {
	data := payslipEmailData{
		EmployeeName: notice.EmployeeName,
		Period:       notice.Period,
		GrossSalary:  notice.Payslip.GrossSalary,
		Deductions:   notice.Payslip.TotalDeductions,
		NetSalary:    notice.Payslip.NetSalary,
		FromName:     s.cfg.FromName,
	}

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, "payslip.html", data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	pdf, err := payslip.Render(notice.Payslip)
	if err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	mw := multipart.NewWriter(&msg)

	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.cfg.FromName, s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", notice.Recipient)
	fmt.Fprintf(&msg, "Subject: Payslip %s\r\n", notice.Period)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="UTF-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write(body.Bytes()); err != nil {
		return nil, err
	}

	filename := notice.Payslip.Filename()
	pdfPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/pdf"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filename)},
	})
	if err != nil {
		return nil, err
	}
	if _, err := pdfPart.Write(wrapBase64(pdf)); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return msg.Bytes(), nil
}

// wrapBase64 encodes data with 76-column lines.
func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for len(encoded) > 76 {
		out.WriteString(encoded[:76])
		out.WriteString("\r\n")
		encoded = encoded[76:]
	}
	out.WriteString(encoded)
	return out.Bytes()
}

func (s *payslipMailer) deliver(ctx context.Context, to string, message []byte) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := s.send(addr, auth, s.cfg.From, []string{to}, message)
		if err == nil {
			slog.Info("Payslip email sent", "to", to, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.Error("Failed to send payslip email",
			"to", to,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		// Exponential backoff: 1s, 2s
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("payslip email cancelled: %w", ctx.Err())
			case <-time.After(s.backoff << (attempt - 1)):
			}
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
