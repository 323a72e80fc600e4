/*
Package main is an interactive terminal client for the chat server.

Every line read from stdin is sent as a chat message. Lines starting with a
slash are commands: /peers lists the logged-in users, /ping measures a round
trip and /quit leaves. Incoming messages are printed as they arrive.
*/
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quichat/internal/app/client"
	"quichat/internal/app/protocol"
	"quichat/internal/pkg/certs"
	"quichat/internal/pkg/logx"
	"quichat/internal/pkg/randx"
	"quichat/internal/transport"
)

const requestTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", "localhost:4433", "server address")
	certFile := flag.String("cert", "cert.der", "DER certificate of the server to trust")
	serverName := flag.String("server-name", "localhost", "TLS server name")
	name := flag.String("name", "", "user name (random when empty)")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	logx.InitGlobalLogger(true, level)

	if *name == "" {
		nick, err := randx.UserNickname()
		if err != nil {
			logx.Fatal(err, "Failed to generate a nickname")
		}
		*name = nick
	}

	tlsConf, err := certs.ClientConfigFromFile(*serverName, *certFile)
	if err != nil {
		logx.Fatal(err, "Failed to load server certificate", "path", *certFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	c, err := client.Dial(dialCtx, *addr, tlsConf, transport.DefaultOptions)
	cancel()
	if err != nil {
		logx.Fatal(err, "Failed to connect", "addr", *addr)
	}

	err = run(ctx, c, *name, os.Stdin, os.Stdout)
	_ = c.Close()
	if err != nil {
		logx.Fatal(err, "Client stopped with error")
	}
}

// run logs in and then relays stdin lines and incoming messages until the
// input ends, the user quits or the connection is lost.
func run(ctx context.Context, c *client.Client, name string, in io.Reader, out io.Writer) error {
	loginCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	me, err := c.Login(loginCtx, name)
	cancel()
	if err != nil {
		return fmt.Errorf("login as %q: %w", name, err)
	}
	logx.Logger().Debug().Str("session_id", me.SessionID.String()).Msg("Logged in")
	fmt.Fprintf(out, "Logged in as %s. Type /peers, /ping or /quit.\n", me.Name)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- c.Listen(ctx, func(msgs []protocol.ChatMessage) {
			for _, m := range msgs {
				fmt.Fprintln(out, formatMessage(m))
			}
		})
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-listenErr:
			if err != nil {
				return fmt.Errorf("connection lost: %w", err)
			}
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, c, out, strings.TrimSpace(line))
			if err != nil {
				var statusErr *protocol.StatusError
				if !errors.As(err, &statusErr) {
					return err
				}
				fmt.Fprintf(out, "! %s\n", statusErr.Message)
			}
			if quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, c *client.Client, out io.Writer, line string) (quit bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch line {
	case "":
		return false, nil

	case "/quit":
		return true, nil

	case "/peers":
		peers, err := c.Peers(ctx)
		if err != nil {
			return false, err
		}
		names := make([]string, len(peers))
		for i, p := range peers {
			names[i] = p.Name
		}
		fmt.Fprintf(out, "* online: %s\n", strings.Join(names, ", "))
		return false, nil

	case "/ping":
		start := time.Now()
		seq, err := c.Ping(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "* pong %d in %s\n", seq, time.Since(start).Round(time.Microsecond))
		return false, nil
	}

	return false, c.Send(ctx, line)
}

func formatMessage(m protocol.ChatMessage) string {
	if m.Sender == nil {
		return "* " + m.Text
	}
	return fmt.Sprintf("<%s> %s", m.Sender.Name, m.Text)
}
