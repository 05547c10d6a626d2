package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	samerr "gosam/internal/errors"
	"gosam/util"
)

// sshServer is a minimal in-process SSH server that accepts public-key
// logins (when allow is set) and serves direct-tcpip channels.
type sshServer struct {
	addr *net.TCPAddr
}

func startSSHServer(t *testing.T, allow bool) *sshServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hostKey, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			if !allow {
				return nil, errors.New("denied")
			}
			return &ssh.Permissions{}, nil
		},
	}
	cfg.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(c, cfg)
		}
	}()
	return &sshServer{addr: ln.Addr().(*net.TCPAddr)}
}

func serveSSH(c net.Conn, cfg *ssh.ServerConfig) {
	conn, chans, reqs, err := ssh.NewServerConn(c, cfg)
	if err != nil {
		c.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "direct-tcpip" {
			nc.Reject(ssh.UnknownChannelType, "unsupported") //nolint:errcheck
			continue
		}
		var target struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nc.ExtraData(), &target); err != nil {
			nc.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		up, err := net.Dial("tcp", net.JoinHostPort(target.Host, strconv.Itoa(int(target.Port))))
		if err != nil {
			nc.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		ch, creqs, err := nc.Accept()
		if err != nil {
			up.Close()
			continue
		}
		go ssh.DiscardRequests(creqs)
		go func() {
			defer ch.Close()
			defer up.Close()
			go io.Copy(up, ch) //nolint:errcheck
			io.Copy(ch, up)    //nolint:errcheck
		}()
	}
}

func (s *sshServer) config(t *testing.T) *SSHConfig {
	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath)
	return &SSHConfig{
		User:        "router",
		Host:        "127.0.0.1",
		Port:        s.addr.Port,
		KeyPath:     keyPath,
		ConnTimeout: 5 * time.Second,
	}
}

// echoServer stands in for a bridge bound to the gateway's loopback.
func echoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}()
		}
	}()
	return ln.Addr().String()
}

func TestSSHTunnel_DialThroughGateway(t *testing.T) {
	srv := startSSHServer(t, true)
	target := echoServer(t)

	tun := NewSSHTunnel(srv.config(t), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tun.Close()
	if !tun.IsAlive() {
		t.Fatal("tunnel should be alive after Connect")
	}

	conn, err := tun.Dial(ctx, "tcp", target)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("HELLO VERSION\n")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len("HELLO VERSION\n"))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "HELLO VERSION\n" {
		t.Errorf("echo = %q", buf)
	}

	if err := tun.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if tun.IsAlive() {
		t.Error("tunnel should not be alive after Close")
	}
	if _, err := tun.Dial(ctx, "tcp", target); !errors.Is(err, samerr.ErrNotConnected) {
		t.Errorf("Dial after Close = %v, want ErrNotConnected", err)
	}
}

func TestSSHTunnel_AuthRejected(t *testing.T) {
	srv := startSSHServer(t, false)
	tun := NewSSHTunnel(srv.config(t), nil)

	err := tun.Connect(context.Background())
	if !errors.Is(err, samerr.ErrAuthFailed) {
		t.Fatalf("Connect = %v, want ErrAuthFailed", err)
	}
	var se *samerr.SSHError
	if !errors.As(err, &se) || se.Op != "handshake" {
		t.Errorf("want SSHError with Op handshake, got %v", err)
	}
}

func TestSSHTunnel_UnknownHostKey(t *testing.T) {
	srv := startSSHServer(t, true)
	cfg := srv.config(t)
	cfg.StrictHostKey = true
	cfg.KnownHosts = filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(cfg.KnownHosts, nil, 0600); err != nil {
		t.Fatal(err)
	}

	err := NewSSHTunnel(cfg, nil).Connect(context.Background())
	if !errors.Is(err, samerr.ErrHostKeyMismatch) {
		t.Fatalf("Connect = %v, want ErrHostKeyMismatch", err)
	}
}

func TestSSHTunnel_DialRefused(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	cfg := &SSHConfig{Host: "127.0.0.1", Port: port, KeyPath: filepath.Join(t.TempDir(), "k")}
	writeTestKey(t, cfg.KeyPath)

	err = NewSSHTunnel(cfg, nil).Connect(context.Background())
	var se *samerr.SSHError
	if !errors.As(err, &se) || se.Op != "dial" {
		t.Fatalf("Connect = %v, want SSHError with Op dial", err)
	}
}
