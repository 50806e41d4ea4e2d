// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package notify sends best-effort email alerts for conditions an
// unattended shimrunner deployment wants surfaced quickly: a FIFO
// overrun mid-experiment, or the trigger monitor going quiet past its
// expected liveness window. Alerting failures are logged, never
// propagated -- a flaky mail server must not abort a running
// experiment.
package notify // import "github.com/lincolncb/shimrunner/notify"

import (
	"crypto/tls"
	"fmt"
	"log"

	mail "gopkg.in/gomail.v2"
)

// Mailer sends alert emails through one SMTP server to a fixed set of
// recipients.
type Mailer struct {
	From string
	To   []string

	Host string
	Port int
	User string
	Pass string

	msg *log.Logger
}

// NewMailer builds a Mailer; msg receives a line on every send
// attempt, success or failure. A nil msg uses log.Default().
func NewMailer(host string, port int, user, pass, from string, to []string, msg *log.Logger) *Mailer {
	if msg == nil {
		msg = log.Default()
	}
	return &Mailer{From: from, To: to, Host: host, Port: port, User: user, Pass: pass, msg: msg}
}

// Ready reports whether the Mailer has enough configuration to
// actually attempt a send.
func (m *Mailer) Ready() bool {
	return m != nil && m.Host != "" && m.Port != 0 && m.User != "" && m.Pass != "" && len(m.To) > 0
}

// AlertOverrun reports FIFO overrun events on a drain stream; overruns
// is the number of drain polls that saw the FIFO full flag.
func (m *Mailer) AlertOverrun(stream string, board int, overruns int) {
	m.send(
		fmt.Sprintf("[shimrunner] FIFO overrun: %s board %d", stream, board),
		fmt.Sprintf("stream: %s\nboard: %d\noverrun events: %d", stream, board, overruns),
	)
}

// AlertStall reports the trigger monitor going quiet before reaching
// its expected count.
func (m *Mailer) AlertStall(expected, observed uint32) {
	m.send(
		"[shimrunner] trigger monitor stalled",
		fmt.Sprintf("expected: %d\nobserved: %d", expected, observed),
	)
}

func (m *Mailer) send(subject, body string) {
	if !m.Ready() {
		m.msg.Printf("notify: could not send alert %q: mailer not configured", subject)
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("Bcc", m.To...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dial := mail.NewDialer(m.Host, m.Port, m.User, m.Pass)
	dial.TLSConfig = &tls.Config{InsecureSkipVerify: true}

	if err := dial.DialAndSend(msg); err != nil {
		m.msg.Printf("notify: could not send alert %q: %v", subject, err)
		return
	}
	m.msg.Printf("notify: sent alert %q", subject)
}
