//go:build linux && cgo

package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/webrtc/v4"
)

// newAudioConn builds a connection with local microphone capture (Opus via
// pion/mediadevices and the malgo backend). When no microphone can be
// opened the leg falls back to receive-only so the participant can still
// listen.
func newAudioConn(ctx context.Context) (peerConn, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}
	codecSelector := mediadevices.NewCodecSelector(
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	codecSelector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	// The default disconnectedTimeout of 5 s drops the leg on short NAT
	// hiccups. 30 s gives ICE time to recover unnoticed.
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, err
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
		Codec: codecSelector,
	})
	if err != nil {
		slog.WarnContext(ctx, "microphone capture failed, receive-only", "error", err)
		if err := addRecvAudioTransceiver(pc); err != nil {
			pc.Close()
			return nil, err
		}
		wirePeerConnection(pc)
		return &pionConn{pc: pc}, nil
	}

	tracks := stream.GetTracks()
	for _, track := range tracks {
		if _, err := pc.AddTrack(track); err != nil {
			slog.WarnContext(ctx, "add local track", "error", err)
		}
	}
	wirePeerConnection(pc)

	closeMedia := func() {
		for _, track := range tracks {
			track.Close()
		}
	}
	return &pionConn{pc: pc, closeMedia: closeMedia}, nil
}
