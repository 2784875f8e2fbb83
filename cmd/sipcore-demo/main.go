// Command sipcore-demo wires the session package to a real sipgo
// transport for manual smoke testing: it answers inbound calls
// automatically and, given -dial, places one outbound call and hangs
// up once confirmed. It is not a production softphone, only the
// thinnest host this library needs to prove it compiles end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"

	"github.com/sebas/sipcore/events"
	"github.com/sebas/sipcore/session"
)

func main() {
	bindAddr := flag.String("bind", "127.0.0.1", "UDP bind address")
	port := flag.Int("port", 5060, "UDP bind port")
	dial := flag.String("dial", "", "SIP URI to call on startup, e.g. sip:bob@127.0.0.1:5070")
	anonymous := flag.Bool("anonymous", false, "place the outbound call anonymously")
	flag.Parse()

	ua, err := sipgo.NewUA()
	if err != nil {
		slog.Error("failed to create user agent", "error", err)
		os.Exit(1)
	}
	defer ua.Close()

	srv, err := sipgo.NewServer(ua)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	client, err := sipgo.NewClient(ua)
	if err != nil {
		slog.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	contact := sip.Uri{Scheme: "sip", User: "sipcore-demo", Host: *bindAddr, Port: *port}
	cfg := session.DefaultConfig()
	sessionUA := &session.UA{
		Contact: contact,
		Client:  client,
		Config:  cfg,
		Logger:  slog.Default(),
	}

	reg := newSessionRegistry()

	srv.OnRequest(sip.INVITE, func(req *sip.Request, tx sip.ServerTransaction) {
		cid := req.CallID()
		if cid == nil {
			return
		}
		if s := reg.get(cid.String()); s != nil {
			s.ReceiveRequest(context.Background(), req, tx)
			return
		}
		s := newInboundSession(sessionUA, reg)
		reg.put(cid.String(), s)
		s.ReceiveRequest(context.Background(), req, tx)
		go answerAutomatically(s, req, tx)
	})
	forEachInDialogMethod(func(method sip.RequestMethod) {
		srv.OnRequest(method, func(req *sip.Request, tx sip.ServerTransaction) {
			cid := req.CallID()
			if cid == nil {
				return
			}
			if s := reg.get(cid.String()); s != nil {
				s.ReceiveRequest(context.Background(), req, tx)
			}
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		listenAddr := fmt.Sprintf("%s:%d", *bindAddr, *port)
		slog.Info("sipcore-demo listening", "addr", listenAddr)
		if err := srv.ListenAndServe(ctx, "udp", listenAddr); err != nil {
			slog.Error("server error", "error", err)
		}
	}()

	if *dial != "" {
		var target sip.Uri
		if err := sip.ParseUri(*dial, &target); err != nil {
			slog.Error("invalid -dial target", "error", err)
		} else {
			go placeCall(ctx, sessionUA, reg, target, *anonymous)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")
	cancel()
	time.Sleep(200 * time.Millisecond)
}

func forEachInDialogMethod(register func(sip.RequestMethod)) {
	for _, m := range []sip.RequestMethod{sip.ACK, sip.BYE, sip.CANCEL, sip.UPDATE, sip.INFO, sip.NOTIFY, sip.REFER} {
		register(m)
	}
}

// sessionRegistry keys in-progress Sessions by Call-ID, the demo's
// stand-in for whatever call-routing table an embedding application
// would already have.
type sessionRegistry struct {
	mu       sync.Mutex
	byCallID map[string]*session.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byCallID: make(map[string]*session.Session)}
}

func (r *sessionRegistry) put(callID string, s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCallID[callID] = s
}

func (r *sessionRegistry) get(callID string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCallID[callID]
}

func (r *sessionRegistry) delete(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byCallID, callID)
}

func newInboundSession(ua *session.UA, reg *sessionRegistry) *session.Session {
	s := session.New(ua, session.Options{PeerConnection: newStaticPeerConnection(40000)})
	logLifecycle(s)
	s.On(events.Ended, func(any) { reg.delete(s.DialogCallID()) })
	s.On(events.Failed, func(any) { reg.delete(s.DialogCallID()) })
	return s
}

// answerAutomatically accepts every inbound call after a short delay,
// standing in for whatever ringing/accept policy an embedder applies.
func answerAutomatically(s *session.Session, req *sip.Request, tx sip.ServerTransaction) {
	time.Sleep(300 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Answer(ctx, req, tx); err != nil {
		slog.Warn("demo: failed to answer", "error", err)
	}
}

func placeCall(ctx context.Context, ua *session.UA, reg *sessionRegistry, target sip.Uri, anonymous bool) {
	s := session.New(ua, session.Options{PeerConnection: newStaticPeerConnection(40002)})
	logLifecycle(s)

	confirmed := make(chan struct{})
	s.On(events.Confirmed, func(any) {
		select {
		case <-confirmed:
		default:
			close(confirmed)
		}
	})

	s.On(events.Ended, func(any) { reg.delete(s.DialogCallID()) })
	s.On(events.Failed, func(any) { reg.delete(s.DialogCallID()) })

	if err := s.Connect(ctx, session.ConnectOptions{Target: target, Anonymous: anonymous}); err != nil {
		slog.Error("demo: call failed", "error", err)
		return
	}
	reg.put(s.DialogCallID(), s)

	select {
	case <-confirmed:
	case <-time.After(10 * time.Second):
		slog.Warn("demo: call never confirmed")
		return
	}

	slog.Info("demo: call confirmed, hanging up in 5s")
	time.Sleep(5 * time.Second)
	if err := s.Terminate(ctx); err != nil {
		slog.Warn("demo: terminate failed", "error", err)
	}
}

func logLifecycle(s *session.Session) {
	s.On(events.Accepted, func(any) { slog.Info("session accepted", "session_id", s.ID()) })
	s.On(events.Confirmed, func(any) { slog.Info("session confirmed", "session_id", s.ID()) })
	s.On(events.Ended, func(e any) { slog.Info("session ended", "session_id", s.ID(), "event", e) })
	s.On(events.Failed, func(e any) { slog.Info("session failed", "session_id", s.ID(), "event", e) })
}
