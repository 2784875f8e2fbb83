package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sebas/sipcore/media"
)

// staticPeerConnection is a stand-in media engine for manual smoke
// testing: it never touches real audio transport (an explicit
// Non-goal of the session core), it only produces syntactically valid
// SDP bodies so the offer/answer state machine has something real to
// drive. An embedder wires a genuine WebRTC/RTP engine behind the same
// media.PeerConnection contract in production.
type staticPeerConnection struct {
	localPort int32
	state     atomic.Value // media.SignalingState
	onIce     func(string)
}

func newStaticPeerConnection(localPort int) *staticPeerConnection {
	pc := &staticPeerConnection{localPort: int32(localPort)}
	pc.state.Store(media.SignalingStable)
	return pc
}

func (p *staticPeerConnection) CreateOffer(ctx context.Context) (media.Description, error) {
	return media.Description{Type: "offer", SDP: p.sdpBody()}, nil
}

func (p *staticPeerConnection) CreateAnswer(ctx context.Context) (media.Description, error) {
	return media.Description{Type: "answer", SDP: p.sdpBody()}, nil
}

func (p *staticPeerConnection) SetLocalDescription(ctx context.Context, desc media.Description) error {
	return nil
}

func (p *staticPeerConnection) SetRemoteDescription(ctx context.Context, desc media.Description) error {
	return nil
}

func (p *staticPeerConnection) SignalingState() media.SignalingState {
	return p.state.Load().(media.SignalingState)
}

func (p *staticPeerConnection) ICEGatheringState() media.GatheringState {
	return media.GatheringComplete
}

func (p *staticPeerConnection) OnICECandidate(fn func(string)) {
	p.onIce = fn
	if fn != nil {
		fn("")
	}
}

func (p *staticPeerConnection) Close() error {
	p.state.Store(media.SignalingClosed)
	return nil
}

func (p *staticPeerConnection) sdpBody() []byte {
	port := atomic.LoadInt32(&p.localPort)
	return []byte(fmt.Sprintf(
		"v=0\r\n"+
			"o=- 0 0 IN IP4 127.0.0.1\r\n"+
			"s=-\r\n"+
			"c=IN IP4 127.0.0.1\r\n"+
			"t=0 0\r\n"+
			"m=audio %d RTP/AVP 0 8\r\n"+
			"a=rtpmap:0 PCMU/8000\r\n"+
			"a=rtpmap:8 PCMA/8000\r\n"+
			"a=sendrecv\r\n", port))
}
