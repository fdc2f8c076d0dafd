package proxy_test

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/hermesgo/internal/auth"
	"github.com/udisondev/hermesgo/internal/config"
	"github.com/udisondev/hermesgo/internal/opcode"
	"github.com/udisondev/hermesgo/internal/protocol"
	"github.com/udisondev/hermesgo/internal/proxy"
	"github.com/udisondev/hermesgo/internal/testutil"
	"github.com/udisondev/hermesgo/internal/version"
	"github.com/udisondev/hermesgo/internal/world"
)

func proxyConfig(t *testing.T, authAddr string, build version.Build) config.Proxy {
	t.Helper()
	host, port, err := net.SplitHostPort(authAddr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := config.DefaultProxy()
	cfg.AuthHost = host
	cfg.AuthPort = p
	cfg.Build = uint32(build)
	cfg.Username = "test"
	cfg.Password = "test"
	cfg.HandshakeTimeout = 5 * time.Second
	cfg.KeepaliveInterval = 10 * time.Millisecond
	return cfg
}

func newProxy(t *testing.T, cfg config.Proxy) *proxy.Proxy {
	t.Helper()
	p, err := proxy.New(cfg, proxy.WithReconnectDelay(10*time.Millisecond))
	require.NoError(t, err)
	return p
}

// worldRealm serves scripted world connections; serve runs per accepted conn.
func worldRealm(t *testing.T, serve func(net.Conn)) (addr string, accepted *atomic.Int32) {
	t.Helper()
	listener, addr := testutil.ListenTCP(t)
	accepted = new(atomic.Int32)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				defer conn.Close()
				serve(testutil.NewConnWithDeadline(conn, 5*time.Second))
			}()
		}
	}()
	return addr, accepted
}

func TestPickRealm(t *testing.T) {
	realms := []auth.Realm{
		{ID: 1, Name: "Down", Flags: auth.RealmFlagOffline},
		{ID: 2, Name: "Nostalrius"},
		{ID: 3, Name: "Kronos"},
	}

	tests := []struct {
		name    string
		realm   string
		wantID  byte
		wantErr bool
	}{
		{"first online", "", 2, false},
		{"by name", "kronos", 3, false},
		{"offline", "Down", 0, true},
		{"unknown", "Elysium", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proxy.PickRealm(realms, tt.realm)
			if tt.wantErr {
				require.ErrorIs(t, err, proxy.ErrNoRealm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	_, err := proxy.PickRealm(nil, "")
	require.ErrorIs(t, err, proxy.ErrNoRealm)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultProxy()
	_, err := proxy.New(cfg)
	require.ErrorIs(t, err, config.ErrMissingCredentials)

	cfg.Username, cfg.Password = "u", "p"
	cfg.AddonFixes = "/nonexistent/dir/fixes.yaml"
	_, err = proxy.New(cfg)
	require.Error(t, err, "configured fix file must exist")

	cfg.AddonFixes = ""
	p, err := proxy.New(cfg)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestProxy_Login(t *testing.T) {
	srv := testutil.NewAuthServer()
	srv.AddAccount("TEST", "TEST")
	srv.Realms = []auth.Realm{{ID: 4, Name: "Icecrown", Address: "127.0.0.1:8085"}}
	addr := srv.Start(t)

	p := newProxy(t, proxyConfig(t, addr, version.V3_3_5a))
	key, realms, err := p.Login(testutil.Context(t, 5*time.Second))
	require.NoError(t, err)

	want, ok := srv.SessionKey("TEST")
	require.True(t, ok)
	assert.Equal(t, want, key)
	require.Len(t, realms, 1)
	assert.Equal(t, "Icecrown", realms[0].Name)

	stored, ok := p.Sessions().Load("test", time.Hour)
	require.True(t, ok)
	assert.Equal(t, key, stored)
}

func TestProxy_Login_ReusesSessionKey(t *testing.T) {
	var key auth.SessionKey
	copy(key[:], testutil.SequenceBytes(0x42, auth.SessionKeySize))

	// у сервера нет аккаунта: пройти можно только через reconnect
	srv := testutil.NewAuthServer()
	srv.SetSessionKey("TEST", key)
	addr := srv.Start(t)

	p := newProxy(t, proxyConfig(t, addr, version.V2_4_3))
	p.Sessions().Store("test", key)

	got, _, err := p.Login(testutil.Context(t, 5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestProxy_Login_FallsBackToLogon(t *testing.T) {
	srv := testutil.NewAuthServer()
	srv.AddAccount("TEST", "TEST")
	addr := srv.Start(t)

	p := newProxy(t, proxyConfig(t, addr, version.V1_12_1))
	p.Sessions().Store("test", auth.SessionKey{1, 2, 3})

	key, _, err := p.Login(testutil.Context(t, 5*time.Second))
	require.NoError(t, err)

	want, _ := srv.SessionKey("TEST")
	assert.Equal(t, want, key)
	stored, ok := p.Sessions().Load("test", time.Hour)
	require.True(t, ok)
	assert.Equal(t, want, stored)
}

func TestProxy_Login_DropsExpiredSessions(t *testing.T) {
	srv := testutil.NewAuthServer()
	srv.AddAccount("TEST", "TEST")
	addr := srv.Start(t)

	cfg := proxyConfig(t, addr, version.V1_12_1)
	cfg.SessionTTL = time.Millisecond
	p := newProxy(t, cfg)

	p.Sessions().Store("other", auth.SessionKey{7})
	time.Sleep(5 * time.Millisecond)

	_, _, err := p.Login(testutil.Context(t, 5*time.Second))
	require.NoError(t, err)

	_, ok := p.Sessions().Load("other", 0)
	assert.False(t, ok, "expired key of another account is dropped")
	assert.Equal(t, 1, p.Sessions().Count())
}

func TestProxy_Run(t *testing.T) {
	for _, build := range version.Supported() {
		t.Run(build.String(), func(t *testing.T) {
			info, err := version.Lookup(build)
			require.NoError(t, err)

			srv := testutil.NewAuthServer()
			srv.AddAccount("TEST", "TEST")

			pinged := make(chan struct{})
			realmAddr, _ := worldRealm(t, func(conn net.Conn) {
				key, _ := srv.SessionKey("TEST")
				ws := testutil.NewWorldServer(conn, info, key)
				if ws.Handshake() != nil {
					return
				}
				if _, err := ws.Expect(opcode.ClientPing); err == nil {
					close(pinged)
				}
				// держим соединение, пока клиент не закроет
				for {
					if _, _, err := ws.Read(); err != nil {
						return
					}
				}
			})
			srv.Realms = []auth.Realm{{ID: 1, Name: "Test", Address: realmAddr}}

			p := newProxy(t, proxyConfig(t, srv.Start(t), build))

			var hooked atomic.Bool
			p.OnSession(func(*world.Session) error {
				hooked.Store(true)
				return nil
			})

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- p.Run(ctx) }()

			select {
			case <-pinged:
			case <-time.After(5 * time.Second):
				t.Fatal("no keepalive ping")
			}
			assert.True(t, hooked.Load())

			cancel()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return")
			}
		})
	}
}

func TestProxy_Run_RefusedNotRetried(t *testing.T) {
	info, err := version.Lookup(version.V2_4_3)
	require.NoError(t, err)

	srv := testutil.NewAuthServer()
	srv.AddAccount("TEST", "TEST")
	realmAddr, accepted := worldRealm(t, func(conn net.Conn) {
		key, _ := srv.SessionKey("TEST")
		ws := testutil.NewWorldServer(conn, info, key)
		ws.ResponseCode = 0x15
		_ = ws.Handshake()
		_, _, _ = ws.Read()
	})
	srv.Realms = []auth.Realm{{ID: 1, Name: "Test", Address: realmAddr}}

	p := newProxy(t, proxyConfig(t, srv.Start(t), version.V2_4_3))
	err = p.Run(testutil.Context(t, 5*time.Second))

	require.Error(t, err)
	assert.True(t, world.IsRefused(err), "got %v", err)
	assert.Equal(t, int32(1), accepted.Load())
}

func TestProxy_Run_RejectedLogin(t *testing.T) {
	srv := testutil.NewAuthServer()
	srv.AddAccount("TEST", "OTHER")

	p := newProxy(t, proxyConfig(t, srv.Start(t), version.V1_12_1))
	err := p.Run(testutil.Context(t, 5*time.Second))

	var rejected *auth.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, auth.ResultIncorrectPassword, rejected.Result)
}

func TestProxy_Run_RetriesLostSession(t *testing.T) {
	srv := testutil.NewAuthServer()
	srv.AddAccount("TEST", "TEST")
	// мир сразу рвёт соединение
	realmAddr, accepted := worldRealm(t, func(net.Conn) {})
	srv.Realms = []auth.Realm{{ID: 1, Name: "Test", Address: realmAddr}}

	p := newProxy(t, proxyConfig(t, srv.Start(t), version.V1_12_1))
	err := p.Run(testutil.Context(t, 5*time.Second))

	require.ErrorIs(t, err, protocol.ErrConnectionClosed)
	assert.Equal(t, int32(4), accepted.Load(), "first attempt plus three reconnects")
}
