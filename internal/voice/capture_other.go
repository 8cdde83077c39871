//go:build !linux || !cgo

package voice

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// newAudioConn builds a receive-only connection on platforms without a
// capture driver. Microphone capture via pion/mediadevices needs the Linux
// backends (malgo); elsewhere the leg still receives remote audio.
func newAudioConn(_ context.Context) (peerConn, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, err
	}

	if err := addRecvAudioTransceiver(pc); err != nil {
		pc.Close()
		return nil, err
	}
	wirePeerConnection(pc)

	return &pionConn{pc: pc}, nil
}
