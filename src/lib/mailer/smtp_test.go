package mailer

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"ticketing/src/config"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openRelay accepts one plaintext SMTP session without AUTH and hands back the DATA it received.
func openRelay(t *testing.T) (int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(line string) { fmt.Fprintf(conn, "%s\r\n", line) }

		reply("220 relay.local ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 relay.local")
			case cmd == "DATA":
				reply("354 end with <CR><LF>.<CR><LF>")
				var body strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				received <- body.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, received
}

func relayConfig(port int) config.Mail {
	return config.Mail{
		Driver:    "smtp",
		Host:      "127.0.0.1",
		Port:      port,
		From:      "tickets@example.com",
		FromName:  "Event Tickets",
		TLSPolicy: "none",
	}
}

func TestSMTPTransportWithoutCredentials(t *testing.T) {
	port, received := openRelay(t)
	tr, err := NewSMTPTransport(relayConfig(port), 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, tr.Send(context.Background(), ticketMessage()))
	select {
	case body := <-received:
		assert.Contains(t, body, "Your Event Ticket")
		assert.Contains(t, body, "ticket.pdf")
	case <-time.After(2 * time.Second):
		t.Fatal("relay received no message")
	}
}

func TestSMTPTransportWithCredentialsNeedsAuth(t *testing.T) {
	port, _ := openRelay(t)
	cfg := relayConfig(port)
	cfg.Username = "apikey"
	cfg.Password = "secret"
	tr, err := NewSMTPTransport(cfg, 2*time.Second)
	require.NoError(t, err)

	// the relay does not offer AUTH, so configured credentials cannot be used
	assert.Error(t, tr.Send(context.Background(), ticketMessage()))
}

func TestNewSMTPTransportRequiresHost(t *testing.T) {
	_, err := NewSMTPTransport(config.Mail{Driver: "smtp", Port: 587}, time.Second)
	assert.Error(t, err)

	_, err = NewSMTPTransport(config.Mail{Driver: "sendgrid", Port: 587}, time.Second)
	assert.NoError(t, err)
}
