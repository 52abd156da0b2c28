package obd

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

func TestTCPDialerDefaultPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TCPDialer{}.Dial(ctx, "192.168.0.10")
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got: %v", err)
	}
	if !strings.Contains(err.Error(), "192.168.0.10:"+DefaultTCPPort) {
		t.Errorf("expected the default port in %q", err)
	}

	_, err = TCPDialer{}.Dial(ctx, "192.168.0.10:23")
	if err == nil || strings.Contains(err.Error(), DefaultTCPPort) {
		t.Errorf("expected the given port to be kept, got: %v", err)
	}
}

func TestTCPTransportRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	transport, err := TCPDialer{DialTimeout: time.Second, ReadTimeout: 20 * time.Millisecond}.
		Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error from Dial(): %v", err)
	}
	defer transport.Close()
	peer, ok := <-accepted
	if !ok {
		t.Fatal("adapter side was not accepted")
	}

	buf := make([]byte, 16)

	t.Run("Nothing available within the read timeout", func(t *testing.T) {
		start := time.Now()
		n, err := transport.Read(buf)
		if n != 0 || err != nil {
			t.Errorf("expected (0, nil), got (%d, %v)", n, err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("read blocked for %v", elapsed)
		}
	})

	t.Run("Bytes written by the adapter are read", func(t *testing.T) {
		if _, err := peer.Write([]byte("OK\r\r>")); err != nil {
			t.Fatalf("write: %v", err)
		}
		var got []byte
		deadline := time.Now().Add(time.Second)
		for len(got) < 5 && time.Now().Before(deadline) {
			n, err := transport.Read(buf)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got = append(got, buf[:n]...)
		}
		if string(got) != "OK\r\r>" {
			t.Errorf("expected %q, got %q", "OK\r\r>", got)
		}
	})

	t.Run("Writes reach the adapter", func(t *testing.T) {
		if _, err := transport.Write([]byte("ATZ\r")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		peer.SetReadDeadline(time.Now().Add(time.Second))
		got := make([]byte, 4)
		if _, err := io.ReadFull(peer, got); err != nil {
			t.Fatalf("adapter read: %v", err)
		}
		if string(got) != "ATZ\r" {
			t.Errorf("expected %q, got %q", "ATZ\r", got)
		}
	})

	t.Run("Closed by the adapter", func(t *testing.T) {
		peer.Close()
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			n, err := transport.Read(buf)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					t.Errorf("expected io.EOF, got: %v", err)
				}
				return
			}
			if n > 0 {
				t.Fatalf("unexpected bytes %q", buf[:n])
			}
		}
		t.Error("expected the closed connection to be reported")
	})
}
