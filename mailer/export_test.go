package mailer

import "net/smtp"

// SetSendMail replaces the SMTP transport of s
func SetSendMail(s *SMTPSender, fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.sendMail = fn
}
